// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package vector

import (
	"encoding/json"
	"slices"

	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
)

const (
	// ErrMalformedVector is reported for manifests violating the structural
	// requirements of a test vector.
	ErrMalformedVector = fvm.ConstError("malformed vector")
	// ErrUnsupportedFormatVersion is reported for manifests of an unknown
	// or missing format version.
	ErrUnsupportedFormatVersion = fvm.ConstError("unsupported format version")
)

// FormatVersion is the manifest format version produced by this package.
const FormatVersion = 1

// ClassMessage is the only supported vector class: a sequence of messages
// applied to a state tree.
const ClassMessage = "message"

// Vector is a decoded test vector. Vectors are immutable once decoded; all
// slices and maps must be treated as read-only.
type Vector struct {
	ID            string
	Description   string
	Comment       string
	Class         string
	FormatVersion int

	// Tags is the sorted, duplicate-free set of selector tags.
	Tags     []string
	Variants []Variant

	Preconditions  Preconditions
	Messages       []fvm.Message
	Postconditions Postconditions

	// GasTolerance is the absolute deviation of gas used accepted per
	// receipt. Zero requires exact equality.
	GasTolerance fvm.Gas
	// PostconditionExempt vectors only check receipts, not the final state.
	PostconditionExempt bool

	Archive Archive

	// Extra retains unrecognized top-level fields verbatim.
	Extra map[string]json.RawMessage

	// Path is the file the vector was loaded from, if any.
	Path string
}

// Variant is one network configuration a vector is replayed under. Fields
// not declared by the variant itself are filled in from the preconditions.
type Variant struct {
	ID             string
	NetworkVersion fvm.NetworkVersion
	Epoch          fvm.ChainEpoch
	Timestamp      uint64
	BaseFee        fvm.TokenAmount
	CircSupply     fvm.TokenAmount
	// ActorBundle is undefined if the variant uses the default bundle.
	ActorBundle cid.Cid
	// Requires lists the capabilities the variant can only run with.
	Requires []string
}

type Preconditions struct {
	StateRoot  cid.Cid
	Epoch      fvm.ChainEpoch
	Timestamp  uint64
	BaseFee    fvm.TokenAmount
	CircSupply fvm.TokenAmount
	// Randomness is passed through to the machine uninterpreted.
	Randomness json.RawMessage
}

type Postconditions struct {
	StateRoot cid.Cid
	Receipts  []fvm.Receipt
	// ReceiptsRoots is retained but not verified.
	ReceiptsRoots json.RawMessage
}

// Archive references the snapshot the vector is executed on. Exactly one
// of the fields is set.
type Archive struct {
	// Inline is a gzip compressed CARv1 archive embedded in the manifest.
	Inline []byte
	// Ref is the path of an external archive relative to the manifest.
	Ref string
}

// HasTag checks whether the vector carries the given selector tag.
func (v *Vector) HasTag(tag string) bool {
	_, found := slices.BinarySearch(v.Tags, tag)
	return found
}

// Variant looks up a variant by its id.
func (v *Vector) Variant(id string) (Variant, bool) {
	for _, variant := range v.Variants {
		if variant.ID == id {
			return variant, true
		}
	}
	return Variant{}, false
}

// MachineConfig derives the configuration of the machine executing this
// vector under the given variant.
func (v *Vector) MachineConfig(variant Variant) fvm.MachineConfig {
	var randomness []byte
	if len(v.Preconditions.Randomness) > 0 {
		randomness = slices.Clone([]byte(v.Preconditions.Randomness))
	}
	return fvm.MachineConfig{
		NetworkVersion: variant.NetworkVersion,
		Epoch:          variant.Epoch,
		Timestamp:      variant.Timestamp,
		BaseFee:        variant.BaseFee,
		CircSupply:     variant.CircSupply,
		ActorBundle:    variant.ActorBundle,
		Randomness:     randomness,
	}
}

// WithPostconditions creates a copy of the vector expecting the given
// results. The archive is replaced by the given one.
func (v *Vector) WithPostconditions(post Postconditions, archive Archive) *Vector {
	res := *v
	res.Postconditions = post
	res.Archive = archive
	res.Path = ""
	return &res
}
