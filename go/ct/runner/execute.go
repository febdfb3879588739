// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/log"
)

// ErrTimeout is reported if the execution of a vector exceeds its time
// budget.
const ErrTimeout = fvm.ConstError("timeout")

// Execute runs the messages of the given vector under the given variant on
// a new machine backed by the given store. Messages are applied strictly in
// order; failing receipts do not stop the execution. Errors reported by the
// machine, including panics, are unrecoverable and wrapped in fvm.ErrFatal,
// except for blocks missing in the store, which indicate a corrupt archive.
func Execute(
	ctx context.Context,
	engine fvm.Engine,
	v *vector.Vector,
	variant vector.Variant,
	store fvm.Blockstore,
) (res verify.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: machine panicked: %v", fvm.ErrFatal, r)
		}
	}()

	root := v.Preconditions.StateRoot
	found, err := store.Has(root)
	if err != nil {
		return verify.Result{}, err
	}
	if !found {
		return verify.Result{}, fmt.Errorf("%w: missing precondition root %v", blockstore.ErrCorruptArchive, root)
	}

	machine, err := engine.NewMachine(ctx, v.MachineConfig(variant), store, root)
	if err != nil {
		return verify.Result{}, classify("failed to create machine", err)
	}

	receipts := make([]fvm.Receipt, 0, len(v.Messages))
	for i, message := range v.Messages {
		if err := ctx.Err(); err != nil {
			return verify.Result{}, err
		}
		receipt, err := machine.Apply(ctx, message)
		if err != nil {
			return verify.Result{}, classify(fmt.Sprintf("failed to apply message %d", i), err)
		}
		log.Trace("Applied message", "vector", v.ID, "variant", variant.ID, "index", i,
			"exit", receipt.ExitCode, "gas", receipt.GasUsed)
		receipts = append(receipts, receipt)
	}

	newRoot, _, err := machine.Finish()
	if err != nil {
		return verify.Result{}, classify("failed to finish machine", err)
	}
	return verify.Result{Receipts: receipts, Root: newRoot}, nil
}

func classify(what string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, blockstore.ErrNotFound), errors.Is(err, blockstore.ErrCorruptArchive):
		return fmt.Errorf("%s: %w: %w", what, blockstore.ErrCorruptArchive, err)
	case errors.Is(err, fvm.ErrFatal):
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %w", what, fvm.ErrFatal, err)
}
