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
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// PolicyConfig is the on-disk shape of a backtracking policy defaults
// file, loaded before CLI flags are applied so a flag explicitly set
// on the command line always wins.
type PolicyConfig struct {
	QualThresh      uint32 `toml:"qual_thresh"`
	UnrevOff        uint32 `toml:"unrev_off"`
	OneRevOff       uint32 `toml:"one_rev_off"`
	TwoRevOff       uint32 `toml:"two_rev_off"`
	FtabChars       int    `toml:"ftab_chars"`
	HalfAndHalf     bool   `toml:"half_and_half"`
	ReportSeedlings uint32 `toml:"report_seedlings"`
	Seed            uint64 `toml:"seed"`
	Threads         int    `toml:"threads"`
}

// LoadPolicyConfig reads a TOML policy file. A missing file is not an
// error -- it simply yields the zero-value PolicyConfig, matching the
// "CLI flags override config file values" default-then-override
// pattern.
func LoadPolicyConfig(file string) (*PolicyConfig, error) {
	cfg := &PolicyConfig{}
	if file == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, file)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", file)
	}
	return cfg, nil
}

// overrideUint32IfSet returns the flag's value when the flag was explicitly
// set on the command line, and the config file's value otherwise --
// the concrete form of "CLI flags override config file values".
func overrideUint32IfSet(flagSet bool, flagVal uint32, cfgVal uint32) uint32 {
	if flagSet {
		return flagVal
	}
	return cfgVal
}
