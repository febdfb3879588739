// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package selection

import (
	"fmt"
	"regexp"

	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
)

// ReasonSkipped is the skip reason of vectors listed in the skip list.
const ReasonSkipped = "skipped"

// Filter determines which vectors and variants of a run are executed.
// The zero value selects everything but variants requiring capabilities.
type Filter struct {
	// NamePattern, if set, selects vectors whose id matches it.
	NamePattern *regexp.Regexp
	// TagPredicate, if set, selects vectors whose tags satisfy it.
	TagPredicate Predicate
	// Features is the set of enabled capabilities.
	Features map[string]bool
	// SkipList lists ids of vectors reported as skipped without running.
	SkipList map[string]bool
}

// Selection is a (vector, variant) pair scheduled for a run.
type Selection struct {
	// Index is the position of the pair in the resolved work list.
	Index   int
	Vector  *vector.Vector
	Variant vector.Variant
	// Skip is the reason the pair is not executed, empty if it is.
	Skip string
}

func (s Selection) String() string {
	return fmt.Sprintf("%s/%s", s.Vector.ID, s.Variant.ID)
}

// Selects checks whether the filter keeps the given vector at all.
func (f *Filter) Selects(v *vector.Vector) bool {
	if f.NamePattern != nil && !f.NamePattern.MatchString(v.ID) {
		return false
	}
	if f.TagPredicate != nil && !f.TagPredicate.Eval(v.HasTag) {
		return false
	}
	return true
}

// Resolve produces the work list for the given vectors. Pairs are listed in
// the order of the vectors and, within a vector, in variant declaration
// order. The result only depends on the inputs.
func Resolve(vectors []*vector.Vector, filter Filter) []Selection {
	res := []Selection{}
	for _, v := range vectors {
		if !filter.Selects(v) {
			continue
		}
		for _, variant := range v.Variants {
			res = append(res, Selection{
				Index:   len(res),
				Vector:  v,
				Variant: variant,
				Skip:    filter.SkipReason(v, variant),
			})
		}
	}
	return res
}

// SkipReason returns why the given variant of v is not run, or the empty
// string if the filter keeps it.
func (f *Filter) SkipReason(v *vector.Vector, variant vector.Variant) string {
	if f.SkipList[v.ID] {
		return ReasonSkipped
	}
	for _, feature := range variant.Requires {
		if !f.Features[feature] {
			return "requires disabled feature " + feature
		}
	}
	return ""
}
