// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/iafan/cwalk"
	"github.com/klauspost/pgzip"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// Options contains the global flags shared by every subcommand.
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	verbose := !getFlagBool(cmd, "quiet")
	if logfile != "" {
		addLog(logfile, verbose)
	}
	return &Options{
		NumCPUs: threads,
		Verbose: verbose,

		LogFile:  logfile,
		Log2File: logfile != "",
	}
}

// checkError logs and exits on any non-nil error; the vast majority
// of subcommand validation funnels through this.
func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func getFlagString(cmd *cobra.Command, flag string) string {
	s, err := cmd.Flags().GetString(flag)
	checkError(err)
	return s
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	b, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return b
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	i, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return i
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	i := getFlagInt(cmd, flag)
	if i <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be a positive integer: %d", flag, i))
	}
	return i
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	i := getFlagInt(cmd, flag)
	if i < 0 {
		checkError(fmt.Errorf("value of flag --%s should be a non-negative integer: %d", flag, i))
	}
	return i
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	f, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return f
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	s, err := cmd.Flags().GetStringSlice(flag)
	checkError(err)
	return s
}

// isStdin reports whether file names stdin by the conventional "-".
func isStdin(file string) bool {
	return file == "-"
}

// makeOutDir mirrors the teacher's overwrite-protected output
// directory setup: refuse to touch a non-empty directory unless force
// is set, and never operate directly on the current directory.
func makeOutDir(outDir string, force bool, logname string, verbose bool) {
	pwd, _ := os.Getwd()
	if outDir == "./" || outDir == "." || pwd == filepath.Clean(outDir) {
		checkError(fmt.Errorf("%s should not be the current directory", logname))
	}

	existed, err := pathutil.DirExists(outDir)
	checkError(errors.Wrap(err, outDir))
	if existed {
		empty, err := pathutil.IsEmpty(outDir)
		checkError(errors.Wrap(err, outDir))
		if !empty {
			if !force {
				checkError(fmt.Errorf("%s not empty: %s, use --force to overwrite", logname, outDir))
			}
			if verbose {
				log.Infof("removing old output directory: %s", outDir)
			}
			checkError(os.RemoveAll(outDir))
		} else {
			checkError(os.RemoveAll(outDir))
		}
	}
	checkError(os.MkdirAll(outDir, 0777))
}

// expandPath expands a leading ~ to the user's home directory, the
// way options naming an on-disk config or index path should.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	expanded, err := homedir.Expand(path)
	checkError(err)
	return expanded
}

// outStream opens file for writing (xopen.Wopen, which already
// understands "-" for stdout), optionally wrapping it in a pgzip
// writer at the given compression level. Callers must Flush outfh and
// Close gw (if non-nil) then w, in that order.
func outStream(file string, gzipped bool, compressionLevel int) (outfh *bufio.Writer, gw *pgzip.Writer, w io.WriteCloser, err error) {
	w, err = xopen.Wopen(file)
	if err != nil {
		return nil, nil, nil, err
	}
	if gzipped {
		gw, err = pgzip.NewWriterLevel(w, compressionLevel)
		if err != nil {
			return nil, nil, nil, err
		}
		outfh = bufio.NewWriter(gw)
	} else {
		outfh = bufio.NewWriter(w)
	}
	return outfh, gw, w, nil
}

// getFileListFromDir walks path concurrently with cwalk, collecting
// every file whose name matches pattern.
func getFileListFromDir(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 512)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ParseByteSize parses human-friendly sizes like "256M" or "2G".
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	var mul int64 = 1
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "K"):
		mul = 1 << 10
		s = s[:len(s)-1]
	case strings.HasSuffix(upper, "M"):
		mul = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(upper, "G"):
		mul = 1 << 30
		s = s[:len(s)-1]
	case strings.HasSuffix(upper, "T"):
		mul = 1 << 40
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return int64(v * float64(mul)), nil
}
