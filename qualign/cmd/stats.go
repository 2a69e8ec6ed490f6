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
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "summarize an align hits TSV: mismatch-quality mean/stdev and a histogram",
	Long: `stats

Reads a hits TSV written by 'qualign align' and reports the mean and
standard deviation of the weighted Hamming distance across accepted
hits (gonum.org/v1/gonum/stat.MeanStdDev), plus a histogram PNG of the
same distribution (gonum.org/v1/plot) -- the same "convert results to
another representation" role lexicmap/cmd/2blast.go and
lexicmap/cmd/2sam.go play for LexicMap's own search output.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		if len(args) != 1 {
			checkError(fmt.Errorf("stats requires exactly one hits TSV argument"))
		}
		histFile := getFlagString(cmd, "histogram")
		bins := getFlagPositiveInt(cmd, "bins")

		hams, err := readHamColumn(args[0])
		checkError(err)
		if len(hams) == 0 {
			checkError(fmt.Errorf("no data rows found in %s", args[0]))
		}

		mean, std := stat.MeanStdDev(hams, nil)
		fmt.Printf("n\t%d\n", len(hams))
		fmt.Printf("mean_ham\t%.4f\n", mean)
		fmt.Printf("stdev_ham\t%.4f\n", std)

		if histFile != "" {
			checkError(writeHistogram(histFile, hams, bins))
			if opt.Verbose {
				log.Infof("wrote histogram to %s", histFile)
			}
		}
	},
}

// readHamColumn reads the "ham" column (index 4, 0-based) out of a
// hits TSV written by the align subcommand.
func readHamColumn(file string) ([]float64, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var hams []float64
	scanner := bufio.NewScanner(fh)
	headerLine := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if headerLine {
			headerLine = false
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		v, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			continue
		}
		hams = append(hams, v)
	}
	return hams, scanner.Err()
}

// writeHistogram renders a histogram PNG of values with the given
// number of bins.
func writeHistogram(file string, values []float64, bins int) error {
	p := plot.New()
	p.Title.Text = "weighted Hamming distance of accepted hits"
	p.X.Label.Text = "Hamming distance"
	p.Y.Label.Text = "count"

	v := make(plotter.Values, len(values))
	copy(v, values)

	h, err := plotter.NewHist(v, bins)
	if err != nil {
		return err
	}
	p.Add(h)

	return p.Save(6*vg.Inch, 4*vg.Inch, file)
}

func init() {
	RootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringP("histogram", "H", "", "write a histogram PNG of the Hamming distance distribution here")
	statsCmd.Flags().IntP("bins", "b", 20, "number of histogram bins")
}
