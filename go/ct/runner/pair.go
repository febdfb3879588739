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
	"time"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/log"
)

// ReasonAborted is the skip reason of pairs not dispatched after a run was
// aborted.
const ReasonAborted = "aborted"

// Options configure the execution of individual (vector, variant) pairs.
type Options struct {
	// Store configures how vector archives are opened.
	Store vector.StoreOptions
	// Timeout bounds the execution of a pair. Zero disables the bound.
	Timeout time.Duration
	// GasTolerance, if set, replaces the tolerance declared by vectors.
	GasTolerance *fvm.Gas
}

// RunPair executes and verifies a single selected pair. All failures are
// reported through the resulting verdict.
func RunPair(ctx context.Context, engine fvm.Engine, sel selection.Selection, opts Options) verify.Verdict {
	start := time.Now()
	res := runPair(ctx, engine, sel, opts)
	res.Index = sel.Index
	res.VectorID = sel.Vector.ID
	res.Variant = sel.Variant.ID
	res.Duration = time.Since(start)
	log.Debug("Finished pair", "vector", res.VectorID, "variant", res.Variant,
		"outcome", res.Outcome, "duration", res.Duration)
	return res
}

func runPair(ctx context.Context, engine fvm.Engine, sel selection.Selection, opts Options) verify.Verdict {
	if sel.Skip != "" {
		return verify.Verdict{Outcome: verify.Skipped, Reason: sel.Skip}
	}

	snapshot, err := sel.Vector.OpenStore(opts.Store)
	if err != nil {
		return verify.Verdict{Outcome: verify.Fail, Reason: err.Error()}
	}

	result, err := executeWithTimeout(ctx, engine, sel.Vector, sel.Variant, blockstore.NewOverlay(snapshot.Store), opts.Timeout, closer(sel.Vector, snapshot))
	if err != nil {
		return errorVerdict(ctx, err)
	}
	return verify.Verify(result, sel.Vector.Postconditions, verify.PolicyFor(sel.Vector, opts.GasTolerance))
}

// closer returns a function closing the given snapshot of v.
func closer(v *vector.Vector, snapshot *vector.Snapshot) func() {
	return func() {
		if err := snapshot.Close(); err != nil {
			log.Warn("Failed to close archive", "vector", v.ID, "err", err)
		}
	}
}

// executeWithTimeout runs Execute in its own goroutine such that machines
// not observing their context can not block the caller beyond the timeout.
// Such machines keep running in the background until they return.
//
// release is called exactly once after Execute returned. For machines that
// timed out this happens in the background, after the call has returned.
func executeWithTimeout(
	ctx context.Context,
	engine fvm.Engine,
	v *vector.Vector,
	variant vector.Variant,
	store fvm.Blockstore,
	timeout time.Duration,
	release func(),
) (verify.Result, error) {
	if timeout <= 0 {
		defer release()
		return Execute(ctx, engine, v, variant, store)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result verify.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := Execute(ctx, engine, v, variant, store)
		done <- outcome{result, err}
	}()

	select {
	case res := <-done:
		release()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return verify.Result{}, ErrTimeout
		}
		return res.result, res.err
	case <-ctx.Done():
		go func() {
			<-done
			release()
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("Execution timed out", "vector", v.ID, "variant", variant.ID, "timeout", timeout)
			return verify.Result{}, ErrTimeout
		}
		return verify.Result{}, ctx.Err()
	}
}

func errorVerdict(ctx context.Context, err error) verify.Verdict {
	switch {
	case errors.Is(err, ErrTimeout):
		return verify.Verdict{Outcome: verify.Fail, Reason: ErrTimeout.Error()}
	case ctx.Err() != nil:
		return verify.Verdict{Outcome: verify.Skipped, Reason: ReasonAborted}
	case errors.Is(err, fvm.ErrFatal):
		return verify.Verdict{Outcome: verify.Fatal, Reason: err.Error()}
	}
	return verify.Verdict{Outcome: verify.Fail, Reason: err.Error()}
}
