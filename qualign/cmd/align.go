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
	"regexp"
	"sync"
	"time"

	"github.com/qualign/qualign/qualign/backtrack"
	"github.com/qualign/qualign/qualign/fmindex"
	"github.com/qualign/qualign/qualign/reference"
	"github.com/qualign/qualign/qualign/sink"
	"github.com/qualign/qualign/qualign/wyrand"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "align FASTQ reads against a built FM-index",
	Long: `align

Chases each read in the given FASTQ file(s)/directory through a
region-constrained, quality-weighted backtracking search, one
Backtracker per worker goroutine, and writes accepted hits as a
reference-offset-sorted TSV.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		indexDir := getFlagString(cmd, "index")
		outFile := getFlagString(cmd, "out-file")
		seed := uint64(getFlagNonNegativeInt(cmd, "seed"))
		dedup := getFlagBool(cmd, "dedup")

		cfg, err := LoadPolicyConfig(expandPath(getFlagString(cmd, "config")))
		checkError(err)

		unrevOff := overrideUint32IfSet(cmd.Flags().Changed("unrev-off"), uint32(getFlagNonNegativeInt(cmd, "unrev-off")), cfg.UnrevOff)
		oneRevOff := overrideUint32IfSet(cmd.Flags().Changed("one-rev-off"), uint32(getFlagNonNegativeInt(cmd, "one-rev-off")), cfg.OneRevOff)
		twoRevOff := overrideUint32IfSet(cmd.Flags().Changed("two-rev-off"), uint32(getFlagNonNegativeInt(cmd, "two-rev-off")), cfg.TwoRevOff)
		qualThresh := overrideUint32IfSet(cmd.Flags().Changed("qual-thresh"), uint32(getFlagNonNegativeInt(cmd, "qual-thresh")), cfg.QualThresh)
		reportSeedlings := overrideUint32IfSet(cmd.Flags().Changed("report-seedlings"), uint32(getFlagNonNegativeInt(cmd, "report-seedlings")), cfg.ReportSeedlings)
		halfAndHalf := getFlagBool(cmd, "half-and-half")
		if !cmd.Flags().Changed("half-and-half") {
			halfAndHalf = cfg.HalfAndHalf
		}
		if !cmd.Flags().Changed("seed") && cfg.Seed != 0 {
			seed = cfg.Seed
		}

		if len(args) == 0 {
			checkError(fmt.Errorf("align requires at least one FASTQ file or directory argument"))
		}

		start := time.Now()
		defer func() {
			if opt.Verbose {
				log.Infof("elapsed time: %s", time.Since(start))
			}
		}()

		idx, err := fmindex.Load(indexDir + ".fmi")
		checkError(err)
		ref, err := reference.Construct(indexDir)
		checkError(err)
		if !ref.Loaded() {
			log.Warning("no reference image found alongside the index; hits are still located from the FM-index alone")
		}

		files, err := discoverFastqFiles(args, opt.NumCPUs)
		checkError(err)
		if len(files) == 0 {
			checkError(fmt.Errorf("no input files found among: %v", args))
		}

		collector := &sink.Collector{}
		var innerSink backtrack.Sink = collector
		if dedup {
			innerSink = sink.NewDedupSink(collector, idx)
		}
		sharedSink := sink.NewSynchronized(innerSink)

		policy := backtrack.Policy{
			UnrevOff:        unrevOff,
			OneRevOff:       oneRevOff,
			TwoRevOff:       twoRevOff,
			QualThresh:      qualThresh,
			HalfAndHalf:     halfAndHalf,
			ReportSeedlings: reportSeedlings,
		}

		var pbs *mpb.Progress
		var bar *mpb.Bar
		if opt.Verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(0,
				mpb.PrependDecorators(
					decor.Name("reads aligned: ", decor.WC{W: len("reads aligned: "), C: decor.DindentRight}),
				),
			)
		}

		var wg sync.WaitGroup
		tokens := make(chan int, opt.NumCPUs)
		var readIdx uint64

		for _, file := range files {
			fastxReader, err := fastx.NewReader(nil, file, "")
			checkError(err)

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

				name := string(record.ID)
				bases := make([]uint8, len(record.Seq.Seq))
				for i, b := range record.Seq.Seq {
					bases[i] = reference.BaseCode(b)
				}
				qual := append([]byte(nil), record.Seq.Qual...)
				if len(qual) != len(bases) {
					qual = make([]byte, len(bases))
					for i := range qual {
						qual[i] = 73 // missing quality: treat as perfect
					}
				}

				readSeed := seed + readIdx
				readIdx++

				ambiguous := false
				for _, c := range bases {
					if c == reference.Ambiguous {
						ambiguous = true
						break
					}
				}
				if ambiguous || len(bases) == 0 || len(bases) > int(backtrack.SPREAD) {
					if opt.Verbose {
						bar.Increment()
					}
					continue
				}

				tokens <- 1
				wg.Add(1)
				go func(name string, bases []uint8, qual []byte, seed uint64) {
					defer func() {
						<-tokens
						wg.Done()
						if opt.Verbose {
							bar.Increment()
						}
					}()

					bt := backtrack.New(idx, wyrand.New(seed), sharedSink)
					bt.SetPolicy(policy)
					if err := bt.SetQuery(&backtrack.Query{Name: name, Bases: bases, Qual: qual}); err != nil {
						log.Warningf("skipping %s: %v", name, err)
						return
					}
					if opt.Verbose {
						log.Debugf("%s: regions %s", name, backtrack.DescribeRegions(policy, uint32(len(bases))))
					}
					if _, _, err := bt.Backtrack(); err != nil {
						log.Warningf("%s: %v", name, err)
					}
				}(name, bases, qual, readSeed)
			}
		}
		wg.Wait()
		if opt.Verbose {
			pbs.Wait()
		}

		sorts.Quicksort(sortableHits{hits: collector.Hits, idx: idx})

		outfh, err := os.Create(outFile)
		checkError(err)
		defer outfh.Close()

		fmt.Fprintln(outfh, "query\tref\toffset\tqlen\tham\tmismatches")
		for _, h := range collector.Hits {
			refIdx, off := idx.RowToRef(h.Hit.Row)
			fmt.Fprintf(outfh, "%s\t%d\t%d\t%d\t%d\t%v\n", h.Name, refIdx, off, h.Hit.Qlen, h.Hit.Ham, h.Hit.Mismatches)
		}

		if opt.Verbose {
			log.Infof("aligned %d reads, %d accepted hits", readIdx, len(collector.Hits))
		}
	},
}

// sortableHits adapts a []sink.Accepted slice to sort.Interface so it
// can be coordinate-sorted by github.com/twotwotwo/sorts.Quicksort,
// the same parallel sort fmindex.Build uses for its suffix array.
type sortableHits struct {
	hits []sink.Accepted
	idx  *fmindex.BWTIndex
}

func (s sortableHits) Len() int      { return len(s.hits) }
func (s sortableHits) Swap(i, j int) { s.hits[i], s.hits[j] = s.hits[j], s.hits[i] }
func (s sortableHits) Less(i, j int) bool {
	refI, offI := s.idx.RowToRef(s.hits[i].Hit.Row)
	refJ, offJ := s.idx.RowToRef(s.hits[j].Hit.Row)
	if refI != refJ {
		return refI < refJ
	}
	return offI < offJ
}

// discoverFastqFiles expands directories in args into their FASTQ
// members using cwalk the way lexicmap/cmd/util.go's
// getFileListFromDir does, and passes plain file arguments through.
func discoverFastqFiles(args []string, threads int) ([]string, error) {
	pattern := regexp.MustCompile(`(?i)\.(fastq|fq)(\.gz)?$`)
	var files []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, a)
			continue
		}
		dirFiles, err := getFileListFromDir(a, pattern, threads)
		if err != nil {
			return nil, err
		}
		files = append(files, dirFiles...)
	}
	return files, nil
}

func init() {
	RootCmd.AddCommand(alignCmd)

	alignCmd.Flags().StringP("config", "c", "", "TOML file of policy defaults, overridden by any flag given explicitly")
	alignCmd.Flags().StringP("index", "d", "", "index path prefix, as passed to build --out-dir/ref")
	alignCmd.Flags().StringP("out-file", "o", "hits.tsv", "output hits TSV")
	alignCmd.Flags().IntP("seed", "", 1, "base PRNG seed; each read gets seed+its ordinal index")
	alignCmd.Flags().BoolP("dedup", "", true, "reject a hit overlapping one already accepted on the same reference")

	alignCmd.Flags().IntP("unrev-off", "", 0, "unrevisitable region boundary (search depth, counted from the read's 3' end)")
	alignCmd.Flags().IntP("one-rev-off", "", 0, "<=1-mismatch region boundary")
	alignCmd.Flags().IntP("two-rev-off", "", 0, "<=2-mismatch region boundary")
	alignCmd.Flags().IntP("qual-thresh", "", 30, "weighted Hamming distance budget")
	alignCmd.Flags().BoolP("half-and-half", "", false, "require exactly one mismatch in each half of the revisitable region")
	alignCmd.Flags().IntP("report-seedlings", "", 0, "enumerate seedling mismatch sets up to this many mismatches instead of stopping at the first hit (0 disables)")
}
