// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"sort"
	"strings"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
)

var StatsCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doStats,
	Name:   "stats",
	Usage:  "Computes the tag coverage of a vector corpus",
	Flags: []cli.Flag{
		cliUtils.InputFlag,
		cliUtils.FilterFlag,
		cliUtils.TagsFlag,
		cliUtils.JobsFlag,
	},
})

func doStats(context *cli.Context) error {
	namePattern, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return err
	}
	tags, err := cliUtils.TagsFlag.Fetch(context)
	if err != nil {
		return err
	}

	vectors, failures, err := loadInputs(context.Context, cliUtils.InputFlag.Fetch(context), cliUtils.JobsFlag.Fetch(context))
	if err != nil {
		return err
	}

	stats := tagStatistics{}
	for _, v := range vectors {
		if namePattern.MatchString(v.ID) && tags.Eval(v.HasTag) {
			stats.registerVector(v)
		}
	}

	fmt.Printf("%v", &stats)
	if len(failures) > 0 {
		fmt.Printf("Failed to load %d files\n", len(failures))
	}
	return nil
}

// tagStatistics counts vectors and (vector, variant) pairs per tag.
type tagStatistics struct {
	data map[string]tagInfo
}

type tagInfo struct {
	numVectors uint64
	numPairs   uint64
}

func (s *tagStatistics) registerVector(v *vector.Vector) {
	if s.data == nil {
		s.data = make(map[string]tagInfo)
	}
	for _, tag := range v.Tags {
		stats := s.data[tag]
		stats.numVectors++
		stats.numPairs += uint64(len(v.Variants))
		s.data[tag] = stats
	}
}

func (s *tagStatistics) getNumVectorsFor(tag string) uint64 {
	return s.data[tag].numVectors
}

func (s *tagStatistics) String() string {
	builder := strings.Builder{}

	tags := maps.Keys(s.data)
	sort.Strings(tags)

	builder.WriteString("tag,num_vectors,num_pairs\n")
	for _, tag := range tags {
		info := s.data[tag]
		builder.WriteString(fmt.Sprintf("%s,%d,%d\n", tag, info.numVectors, info.numPairs))
	}
	return builder.String()
}
