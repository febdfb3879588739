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

// GetTransferExample provides a plain value transfer of the argument to an
// existing account.
func GetTransferExample() Example {
	return exampleSpec{
		Name:      "transfer",
		method:    ledger.MethodSend,
		value:     func(argument int) uint64 { return uint64(argument) },
		reference: func(int) Result { return Result{ExitCode: fvm.Ok} },
	}.build()
}
