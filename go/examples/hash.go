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
	"github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"golang.org/x/crypto/blake2b"
)

var hashInput = []byte("fvm-conformance")

// GetHashExample computes argument iterative hashes of a fixed input.
func GetHashExample() Example {
	return exampleSpec{
		Name:   "hash",
		method: ledger.MethodHash,
		params: func(argument int) ([]byte, error) {
			return ledger.EncodeHashParams(uint64(max(argument, 0)), hashInput)
		},
		reference: hashRef,
	}.build()
}

func hashRef(x int) Result {
	hash := blake2b.Sum256(hashInput)
	for i := 0; i < x; i++ {
		hash = blake2b.Sum256(hash[:])
	}
	return Result{ExitCode: fvm.Ok, Return: hash[:]}
}
