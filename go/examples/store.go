// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"bytes"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
)

// MaxStoreSize bounds the size of blocks written by the store example.
const MaxStoreSize = 1 << 16

// GenerateStorePayload produces a block of the given size by repeating the
// filler pattern. Sizes are clamped to [0, MaxStoreSize].
func GenerateStorePayload(filler []byte, size int) []byte {
	size = min(max(size, 0), MaxStoreSize)
	if size == 0 {
		return []byte{}
	}
	return bytes.Repeat(filler, size/len(filler)+1)[:size]
}

var storeFiller = []byte{0xde, 0xad, 0xbe, 0xef}

// GetStoreExample writes a block of argument bytes as the head of the
// receiver and returns its identifier.
func GetStoreExample() Example {
	return exampleSpec{
		Name:   "store",
		method: ledger.MethodStore,
		params: func(argument int) ([]byte, error) {
			return GenerateStorePayload(storeFiller, argument), nil
		},
		reference: storeRef,
	}.build()
}

func storeRef(argument int) Result {
	id, err := blockstore.Sum(GenerateStorePayload(storeFiller, argument))
	if err != nil {
		return Result{ExitCode: fvm.ErrIllegalState}
	}
	return Result{ExitCode: fvm.Ok, Return: id.Bytes()}
}
