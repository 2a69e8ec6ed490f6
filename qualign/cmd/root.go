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

// Package cmd implements the qualign command line: building a quality-aware
// FM-index over a reference, aligning reads against it with bounded,
// backtracking mismatch search, and summarizing the resulting hits.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

// log is the package-level logger shared by every subcommand.
var log *logging.Logger

func init() {
	logging.SetFormatter(logging.MustStringFormatter(`%{color}[%{level:.4s}]%{color:reset} %{message}`))
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	logging.SetBackend(backend)
	log = logging.MustGetLogger("qualign")
}

// RootCmd is the entry point cobra.Command every subcommand attaches to in
// its own init().
var RootCmd = &cobra.Command{
	Use:   "qualign",
	Short: "quality-aware bounded-mismatch short-read alignment",
	Long: `qualign

A quality-aware, bounded-mismatch backtracking aligner core: build an
FM-index over a set of reference sequences, then chase short reads
against it, allowing a configurable number of weighted-quality
mismatches in configurable, position-bounded regions of the read.
`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "j", 0, "number of CPUs to use (0 for all available)")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error log messages")
	RootCmd.PersistentFlags().StringP("log", "", "", "also write log messages to this file")
}

// Execute runs the root command, exiting the process with status 1 on
// error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addLog redirects subsequent log output to file (in addition to
// stderr) and returns the opened handle so callers can defer its
// Close.
func addLog(file string, verbose bool) io.WriteCloser {
	fh, err := os.Create(file)
	checkError(err)

	backend1 := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	backend2 := logging.NewLogBackend(fh, "", 0)
	backend1Leveled := logging.AddModuleLevel(backend1)
	if verbose {
		backend1Leveled.SetLevel(logging.DEBUG, "")
	} else {
		backend1Leveled.SetLevel(logging.ERROR, "")
	}
	logging.SetBackend(backend1Leveled, backend2)
	return fh
}
