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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/qualign/qualign/qualign/fmindex"
	"github.com/qualign/qualign/qualign/reference"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "build a reference image and FM-index from a FASTA file",
	Long: `build

Reads one FASTA file, builds a bit-packed reference image (the
.3.ebwt/.4.ebwt-equivalent pair) and a suffix-array-backed FM-index
over its unambiguous bases, and writes both to --out-dir.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		ftabChars := getFlagNonNegativeInt(cmd, "ftab-chars")

		if len(args) != 1 {
			checkError(fmt.Errorf("build requires exactly one FASTA file argument"))
		}
		file := args[0]

		makeOutDir(outDir, force, "build", opt.Verbose)

		start := time.Now()
		defer func() {
			if opt.Verbose {
				log.Infof("elapsed time: %s", time.Since(start))
			}
		}()

		fastxReader, err := fastx.NewReader(nil, file, "")
		checkError(err)

		var seqs [][]uint8
		var names []string

		var pbs *mpb.Progress
		var bar *mpb.Bar
		if opt.Verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(0,
				mpb.PrependDecorators(
					decor.Name("sequences read: ", decor.WC{W: len("sequences read: "), C: decor.DindentRight}),
				),
			)
		}

		var record *fastx.Record
		for {
			record, err = fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				checkError(err)
				break
			}
			codes := make([]uint8, len(record.Seq.Seq))
			for i, b := range record.Seq.Seq {
				codes[i] = reference.BaseCode(b)
			}
			seqs = append(seqs, codes)
			names = append(names, string(record.ID))
			if opt.Verbose {
				bar.Increment()
			}
		}
		if opt.Verbose {
			pbs.Wait()
		}

		if len(seqs) == 0 {
			checkError(fmt.Errorf("no sequences read from %s", file))
		}

		recs, bases := reference.EncodeSequences(seqs)
		refPath := filepath.Join(outDir, "ref")
		checkError(reference.WriteTo(refPath, recs, bases))

		unambiguous := make([][]uint8, len(seqs))
		for i, s := range seqs {
			filtered := make([]uint8, 0, len(s))
			for _, c := range s {
				if c != reference.Ambiguous {
					filtered = append(filtered, c)
				}
			}
			unambiguous[i] = filtered
		}
		idx := fmindex.BuildMulti(unambiguous, ftabChars)
		checkError(idx.Save(filepath.Join(outDir, "ref.fmi")))

		checkError(writeNames(filepath.Join(outDir, "ref.names"), names))

		if opt.Verbose {
			log.Infof("built index for %d sequences in %s", len(seqs), outDir)
		}
	},
}

func writeNames(file string, names []string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	defer fh.Close()
	for _, n := range names {
		if _, err := fmt.Fprintln(fh, n); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	RootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("out-dir", "o", "", "output directory for the reference image and FM-index")
	buildCmd.Flags().BoolP("force", "f", false, "overwrite a non-empty output directory")
	buildCmd.Flags().IntP("ftab-chars", "", 10, "width of the FM-index's precomputed k-mer shortcut table (0 to disable)")
}
