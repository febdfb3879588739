// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/fxamacker/cbor/v2"
)

// Methods supported by every ledger actor.
const (
	// MethodSend transfers the message value to the receiver, creating the
	// receiving account if needed.
	MethodSend fvm.MethodNum = 0
	// MethodStore stores the parameters as a block and makes it the head of
	// the receiver. The identifier of the block is returned.
	MethodStore fvm.MethodNum = 2
	// MethodHash iteratively hashes the input given in the parameters and
	// returns the final digest.
	MethodHash fvm.MethodNum = 3
	// MethodAbort fails with the exit code given in the parameters.
	MethodAbort fvm.MethodNum = 4
)

// HashParams are the parameters of MethodHash.
type HashParams struct {
	_      struct{} `cbor:",toarray"`
	Rounds uint64
	Input  []byte
}

// EncodeHashParams produces the parameters of a MethodHash invocation.
func EncodeHashParams(rounds uint64, input []byte) ([]byte, error) {
	return fvm.EncodeCBOR(HashParams{Rounds: rounds, Input: input})
}

// EncodeAbortParams produces the parameters of a MethodAbort invocation.
func EncodeAbortParams(code fvm.ExitCode) ([]byte, error) {
	return fvm.EncodeCBOR(uint64(code))
}

func decodeHashParams(data []byte) (HashParams, error) {
	var res HashParams
	err := cbor.Unmarshal(data, &res)
	return res, err
}

func decodeAbortParams(data []byte) (fvm.ExitCode, error) {
	var code uint64
	if err := cbor.Unmarshal(data, &code); err != nil {
		return 0, err
	}
	return fvm.ExitCode(code), nil
}
