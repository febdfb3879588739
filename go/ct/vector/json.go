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

	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
)

// The types in this file describe the JSON layout of vector manifests.

type jsonMeta struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

type jsonStateTree struct {
	RootCid *cid.Cid `json:"root_cid"`
}

type jsonVariant struct {
	ID             string             `json:"id"`
	Epoch          *fvm.ChainEpoch    `json:"epoch,omitempty"`
	Timestamp      *uint64            `json:"timestamp,omitempty"`
	NetworkVersion fvm.NetworkVersion `json:"nv"`
	BaseFee        *fvm.TokenAmount   `json:"basefee,omitempty"`
	CircSupply     *fvm.TokenAmount   `json:"circ_supply,omitempty"`
	ActorBundle    *cid.Cid           `json:"actor_bundle,omitempty"`
	Requires       []string           `json:"requires,omitempty"`
}

type jsonPreconditions struct {
	Variants   []jsonVariant   `json:"variants"`
	StateTree  *jsonStateTree  `json:"state_tree"`
	Epoch      fvm.ChainEpoch  `json:"epoch,omitempty"`
	Timestamp  uint64          `json:"timestamp,omitempty"`
	BaseFee    fvm.TokenAmount `json:"basefee"`
	CircSupply fvm.TokenAmount `json:"circ_supply"`
	Randomness json.RawMessage `json:"randomness,omitempty"`
}

type jsonMessage struct {
	Bytes       string         `json:"bytes"`
	EpochOffset fvm.ChainEpoch `json:"epoch_offset,omitempty"`
	Index       *int           `json:"index,omitempty"`
}

type jsonReceipt struct {
	ExitCode fvm.ExitCode `json:"exit_code"`
	Return   []byte       `json:"return"`
	GasUsed  fvm.Gas      `json:"gas_used"`
}

type jsonPostconditions struct {
	StateTree     *jsonStateTree  `json:"state_tree"`
	Receipts      []jsonReceipt   `json:"receipts"`
	ReceiptsRoots json.RawMessage `json:"receipts_roots,omitempty"`
}

// Names of the top-level manifest fields interpreted by this package. All
// other top-level fields are retained in Vector.Extra.
const (
	fieldClass               = "class"
	fieldFormatVersion       = "format_version"
	fieldMeta                = "_meta"
	fieldSelector            = "selector"
	fieldCar                 = "car"
	fieldCarRef              = "car_ref"
	fieldPreconditions       = "preconditions"
	fieldApplyMessages       = "apply_messages"
	fieldPostconditions      = "postconditions"
	fieldGasTolerance        = "gas_tolerance"
	fieldPostconditionExempt = "postcondition_exempt"
)

var knownFields = map[string]bool{
	fieldClass:               true,
	fieldFormatVersion:       true,
	fieldMeta:                true,
	fieldSelector:            true,
	fieldCar:                 true,
	fieldCarRef:              true,
	fieldPreconditions:       true,
	fieldApplyMessages:       true,
	fieldPostconditions:      true,
	fieldGasTolerance:        true,
	fieldPostconditionExempt: true,
}
