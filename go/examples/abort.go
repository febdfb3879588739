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
)

// GetAbortExample transfers the argument to the receiver which then aborts
// with a user exit code, reverting the transfer.
func GetAbortExample() Example {
	return exampleSpec{
		Name:   "abort",
		method: ledger.MethodAbort,
		params: func(argument int) ([]byte, error) {
			return ledger.EncodeAbortParams(abortCode(argument))
		},
		value:     func(argument int) uint64 { return uint64(max(argument, 0)) },
		reference: func(argument int) Result { return Result{ExitCode: abortCode(argument)} },
	}.build()
}

func abortCode(argument int) fvm.ExitCode {
	return fvm.FirstUserExitCode + fvm.ExitCode(max(argument, 0)%32)
}
