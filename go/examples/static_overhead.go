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

// This example represents the cheapest possible message: no value, no
// parameters, a receiver that exists. Its cost is the fixed overhead of
// including and dispatching a message. The argument is ignored.
func GetStaticOverheadExample() Example {
	return exampleSpec{
		Name:      "static_overhead",
		method:    ledger.MethodSend,
		reference: StaticOverheadRef,
	}.build()
}

func StaticOverheadRef(int) Result {
	return Result{ExitCode: fvm.Ok}
}
