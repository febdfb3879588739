// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package verify

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ipfs/go-cid"
)

// Result summarizes the observable effects of executing a vector.
type Result struct {
	Receipts []fvm.Receipt
	Root     cid.Cid
}

// Policy defines the equivalence applied when comparing results.
type Policy struct {
	// GasTolerance is the accepted absolute difference in gas used.
	GasTolerance fvm.Gas
	// PostconditionExempt disables the comparison of state roots.
	PostconditionExempt bool
}

// PolicyFor derives the policy declared by the given vector. A non-nil
// override replaces the gas tolerance of the vector.
func PolicyFor(v *vector.Vector, toleranceOverride *fvm.Gas) Policy {
	res := Policy{
		GasTolerance:        v.GasTolerance,
		PostconditionExempt: v.PostconditionExempt,
	}
	if toleranceOverride != nil {
		res.GasTolerance = *toleranceOverride
	}
	return res
}

// Verify compares an execution result against the expected postconditions.
// The result is a Pass or a Fail verdict describing the first mismatch.
// Vector and variant identifiers of the verdict are left for the caller.
func Verify(actual Result, expected vector.Postconditions, policy Policy) Verdict {
	res := Verdict{Outcome: Pass}
	if policy.GasTolerance != 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("gas tolerance %d applied", policy.GasTolerance))
	}
	if policy.PostconditionExempt {
		res.Notes = append(res.Notes, "state root not verified")
	}
	if mismatch := findMismatch(actual, expected, policy); mismatch != nil {
		res.Outcome = Fail
		res.Mismatch = mismatch
		res.Reason = mismatch.String()
		if mismatch.Field == FieldReceiptCount {
			res.Reason = "receipt count mismatch"
		}
	}
	return res
}

// Names of the fields reported in mismatches.
const (
	FieldReceiptCount = "receipt count"
	FieldExitCode     = "exit code"
	FieldGasUsed      = "gas used"
	FieldReturn       = "return payload"
	FieldStateRoot    = "state root"
)

func findMismatch(actual Result, expected vector.Postconditions, policy Policy) *Mismatch {
	if want, got := len(expected.Receipts), len(actual.Receipts); want != got {
		return &Mismatch{
			Field:        FieldReceiptCount,
			Expected:     strconv.Itoa(want),
			Actual:       strconv.Itoa(got),
			MessageIndex: RootIndex,
		}
	}

	for i := range expected.Receipts {
		want, got := expected.Receipts[i], actual.Receipts[i]
		if want.ExitCode != got.ExitCode {
			return &Mismatch{
				Field:        FieldExitCode,
				Expected:     formatExitCode(want.ExitCode),
				Actual:       formatExitCode(got.ExitCode),
				MessageIndex: i,
			}
		}
		if diff := want.GasUsed - got.GasUsed; diff > policy.GasTolerance || -diff > policy.GasTolerance {
			return &Mismatch{
				Field:        FieldGasUsed,
				Expected:     strconv.FormatInt(int64(want.GasUsed), 10),
				Actual:       strconv.FormatInt(int64(got.GasUsed), 10),
				MessageIndex: i,
			}
		}
		if !bytes.Equal(want.Return, got.Return) {
			return &Mismatch{
				Field:        FieldReturn,
				Expected:     hexutil.Encode(want.Return),
				Actual:       hexutil.Encode(got.Return),
				MessageIndex: i,
			}
		}
	}

	if !policy.PostconditionExempt && !expected.StateRoot.Equals(actual.Root) {
		return &Mismatch{
			Field:        FieldStateRoot,
			Expected:     formatCid(expected.StateRoot),
			Actual:       formatCid(actual.Root),
			MessageIndex: RootIndex,
		}
	}
	return nil
}

func formatExitCode(code fvm.ExitCode) string {
	return fmt.Sprintf("%d (%v)", int64(code), code)
}

func formatCid(id cid.Cid) string {
	if !id.Defined() {
		return "<undefined>"
	}
	return id.String()
}
