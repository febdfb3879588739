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
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	vector *vector.Vector
	store  *blockstore.MemoryStore
	root   cid.Cid
	final  cid.Cid
}

// newFixture creates a vector with the given number of messages, all
// expected to succeed with 1000 gas, whose archive contains a single root
// block.
func newFixture(t *testing.T, numMessages int) fixture {
	t.Helper()
	store := blockstore.NewMemoryStore()
	root, err := blockstore.PutBlock(store, []byte{0x80})
	if err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	final, err := blockstore.Sum([]byte{0x81, 0x01})
	if err != nil {
		t.Fatalf("failed to create final root: %v", err)
	}
	archive, err := vector.InlineArchive([]cid.Cid{root}, store)
	if err != nil {
		t.Fatalf("failed to pack archive: %v", err)
	}

	v := &vector.Vector{
		ID:            "test/vector",
		Class:         vector.ClassMessage,
		FormatVersion: vector.FormatVersion,
		Variants:      []vector.Variant{{ID: "nv21", NetworkVersion: 21}},
		Preconditions: vector.Preconditions{StateRoot: root},
		Archive:       archive,
	}
	for i := 0; i < numMessages; i++ {
		v.Messages = append(v.Messages, fvm.Message{Bytes: []byte{byte(i)}})
		v.Postconditions.Receipts = append(v.Postconditions.Receipts, fvm.Receipt{ExitCode: fvm.Ok, GasUsed: 1000})
	}
	v.Postconditions.StateRoot = final
	return fixture{vector: v, store: store, root: root, final: final}
}

func (f fixture) selection() selection.Selection {
	return selection.Selection{Index: 3, Vector: f.vector, Variant: f.vector.Variants[0]}
}

func TestExecute_AppliesMessagesInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 3)

	engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), f.store, f.root).
		DoAndReturn(func(_ context.Context, config fvm.MachineConfig, _ fvm.Blockstore, _ cid.Cid) (fvm.Machine, error) {
			if want, got := fvm.NetworkVersion(21), config.NetworkVersion; want != got {
				t.Errorf("unexpected network version, want %d, got %d", want, got)
			}
			return machine, nil
		})
	gomock.InOrder(
		machine.EXPECT().Apply(gomock.Any(), f.vector.Messages[0]).Return(fvm.Receipt{GasUsed: 1}, nil),
		machine.EXPECT().Apply(gomock.Any(), f.vector.Messages[1]).Return(fvm.Receipt{ExitCode: fvm.SysErrOutOfGas, GasUsed: 2}, nil),
		machine.EXPECT().Apply(gomock.Any(), f.vector.Messages[2]).Return(fvm.Receipt{GasUsed: 3}, nil),
		machine.EXPECT().Finish().Return(f.final, f.store, nil),
	)

	result, err := Execute(context.Background(), engine, f.vector, f.vector.Variants[0], f.store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 3, len(result.Receipts); want != got {
		t.Fatalf("unexpected number of receipts, want %d, got %d", want, got)
	}
	for i, receipt := range result.Receipts {
		if want, got := fvm.Gas(i+1), receipt.GasUsed; want != got {
			t.Errorf("unexpected receipt %d, want gas %d, got %d", i, want, got)
		}
	}
	if !result.Root.Equals(f.final) {
		t.Errorf("unexpected root, want %v, got %v", f.final, result.Root)
	}
}

func TestExecute_MissingPreconditionRootIsCorruptArchive(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	f := newFixture(t, 1)

	_, err := Execute(context.Background(), engine, f.vector, f.vector.Variants[0], blockstore.NewMemoryStore())
	if !errors.Is(err, blockstore.ErrCorruptArchive) {
		t.Errorf("expected corrupt archive, got %v", err)
	}
}

func TestExecute_MissingBlockDuringExecutionIsCorruptArchive(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)

	engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
	machine.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(fvm.Receipt{}, fmt.Errorf("loading actor: %w", blockstore.ErrNotFound))

	_, err := Execute(context.Background(), engine, f.vector, f.vector.Variants[0], f.store)
	if !errors.Is(err, blockstore.ErrCorruptArchive) {
		t.Errorf("expected corrupt archive, got %v", err)
	}
	if errors.Is(err, fvm.ErrFatal) {
		t.Errorf("missing blocks should not be reported as fatal: %v", err)
	}
}

func TestExecute_MachineErrorsAreFatal(t *testing.T) {
	tests := map[string]func(*fvm.MockEngine, *fvm.MockMachine){
		"construction": func(engine *fvm.MockEngine, _ *fvm.MockMachine) {
			engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("injected"))
		},
		"apply": func(engine *fvm.MockEngine, machine *fvm.MockMachine) {
			engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
			machine.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(fvm.Receipt{}, fmt.Errorf("injected"))
		},
		"finish": func(engine *fvm.MockEngine, machine *fvm.MockMachine) {
			engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
			machine.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(fvm.Receipt{}, nil)
			machine.EXPECT().Finish().Return(cid.Undef, nil, fmt.Errorf("injected"))
		},
		"panic": func(engine *fvm.MockEngine, machine *fvm.MockMachine) {
			engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
			machine.EXPECT().Apply(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, fvm.Message) (fvm.Receipt, error) {
				panic("invariant violated")
			})
		},
	}
	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := fvm.NewMockEngine(ctrl)
			machine := fvm.NewMockMachine(ctrl)
			setup(engine, machine)
			f := newFixture(t, 1)

			_, err := Execute(context.Background(), engine, f.vector, f.vector.Variants[0], f.store)
			if !errors.Is(err, fvm.ErrFatal) {
				t.Errorf("expected fatal error, got %v", err)
			}
		})
	}
}

func expectRun(engine *fvm.MockEngine, machine *fvm.MockMachine, final cid.Cid, receipts ...fvm.Receipt) {
	engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
	for _, receipt := range receipts {
		machine.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(receipt, nil)
	}
	machine.EXPECT().Finish().Return(final, nil, nil)
}

func TestRunPair_MatchingExecutionPasses(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)
	expectRun(engine, machine, f.final, fvm.Receipt{ExitCode: fvm.Ok, GasUsed: 1000})

	verdict := RunPair(context.Background(), engine, f.selection(), Options{})
	if want, got := verify.Pass, verdict.Outcome; want != got {
		t.Errorf("unexpected outcome, want %v, got %v: %s", want, got, verdict.Reason)
	}
	if want, got := 3, verdict.Index; want != got {
		t.Errorf("unexpected index, want %d, got %d", want, got)
	}
	if want, got := "test/vector", verdict.VectorID; want != got {
		t.Errorf("unexpected vector, want %s, got %s", want, got)
	}
	if want, got := "nv21", verdict.Variant; want != got {
		t.Errorf("unexpected variant, want %s, got %s", want, got)
	}
}

func TestRunPair_GasDeviationFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)
	expectRun(engine, machine, f.final, fvm.Receipt{ExitCode: fvm.Ok, GasUsed: 1001})

	verdict := RunPair(context.Background(), engine, f.selection(), Options{})
	if want, got := verify.Fail, verdict.Outcome; want != got {
		t.Fatalf("unexpected outcome, want %v, got %v", want, got)
	}
	want := verify.Mismatch{Field: "gas used", Expected: "1000", Actual: "1001", MessageIndex: 0}
	if got := verdict.Mismatch; got == nil || *got != want {
		t.Errorf("unexpected mismatch, want %v, got %v", want, got)
	}
}

func TestRunPair_GasToleranceOverrideIsApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)
	expectRun(engine, machine, f.final, fvm.Receipt{ExitCode: fvm.Ok, GasUsed: 1001})

	tolerance := fvm.Gas(1)
	verdict := RunPair(context.Background(), engine, f.selection(), Options{GasTolerance: &tolerance})
	if want, got := verify.Pass, verdict.Outcome; want != got {
		t.Errorf("unexpected outcome, want %v, got %v: %s", want, got, verdict.Reason)
	}
	if len(verdict.Notes) == 0 {
		t.Errorf("applied tolerance not flagged")
	}
}

func TestRunPair_ArchiveMissingPreconditionRootFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	f := newFixture(t, 1)
	archive, err := vector.InlineArchive(nil, blockstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("failed to pack archive: %v", err)
	}
	f.vector.Archive = archive

	verdict := RunPair(context.Background(), engine, f.selection(), Options{})
	if want, got := verify.Fail, verdict.Outcome; want != got {
		t.Fatalf("unexpected outcome, want %v, got %v", want, got)
	}
	if !strings.Contains(verdict.Reason, blockstore.ErrCorruptArchive.Error()) {
		t.Errorf("reason does not name the corrupt archive: %s", verdict.Reason)
	}
}

func TestRunPair_SkippedSelectionIsNotExecuted(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	f := newFixture(t, 1)
	sel := f.selection()
	sel.Skip = "requires disabled feature native-execution"

	verdict := RunPair(context.Background(), engine, sel, Options{})
	if want, got := verify.Skipped, verdict.Outcome; want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
	if want, got := sel.Skip, verdict.Reason; want != got {
		t.Errorf("unexpected reason, want %q, got %q", want, got)
	}
}

func TestRunPair_FatalMachineErrorIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)
	engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
	machine.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(fvm.Receipt{}, fmt.Errorf("broken invariant"))

	verdict := RunPair(context.Background(), engine, f.selection(), Options{})
	if want, got := verify.Fatal, verdict.Outcome; want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
}

func TestRunPair_ExceedingTheTimeoutFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)
	release := make(chan struct{})
	defer close(release)
	engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
	machine.EXPECT().Apply(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, fvm.Message) (fvm.Receipt, error) {
		<-release // < ignores the context
		return fvm.Receipt{}, fmt.Errorf("released")
	}).MaxTimes(1)

	verdict := RunPair(context.Background(), engine, f.selection(), Options{Timeout: 10 * time.Millisecond})
	if want, got := verify.Fail, verdict.Outcome; want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
	if want, got := "timeout", verdict.Reason; want != got {
		t.Errorf("unexpected reason, want %q, got %q", want, got)
	}
}

func TestExecuteWithTimeout_StoreIsReleasedOnlyAfterTimedOutMachineReturns(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := fvm.NewMockEngine(ctrl)
	machine := fvm.NewMockMachine(ctrl)
	f := newFixture(t, 1)
	unblock := make(chan struct{})
	var returned atomic.Bool
	engine.EXPECT().NewMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(machine, nil)
	machine.EXPECT().Apply(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, fvm.Message) (fvm.Receipt, error) {
		<-unblock // < ignores the context
		returned.Store(true)
		return fvm.Receipt{}, fmt.Errorf("released")
	})

	released := make(chan bool, 1)
	_, err := executeWithTimeout(context.Background(), engine, f.vector, f.vector.Variants[0],
		blockstore.NewOverlay(f.store), 10*time.Millisecond, func() { released <- returned.Load() })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	select {
	case <-released:
		t.Fatalf("store released while the machine is still running")
	default:
	}

	close(unblock)
	select {
	case afterReturn := <-released:
		if !afterReturn {
			t.Errorf("store released before the machine returned")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("store was never released")
	}
}

func TestExecuteWithTimeout_StoreIsReleasedBeforeReturning(t *testing.T) {
	for name, timeout := range map[string]time.Duration{"bounded": time.Minute, "unbounded": 0} {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := fvm.NewMockEngine(ctrl)
			machine := fvm.NewMockMachine(ctrl)
			f := newFixture(t, 1)
			expectRun(engine, machine, f.final, fvm.Receipt{GasUsed: 1000})

			released := 0
			_, err := executeWithTimeout(context.Background(), engine, f.vector, f.vector.Variants[0],
				blockstore.NewOverlay(f.store), timeout, func() { released++ })
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := 1, released; want != got {
				t.Errorf("unexpected number of releases, want %d, got %d", want, got)
			}
		})
	}
}

func TestForEach_VerdictsAreOrderedByIndex(t *testing.T) {
	work := make([]selection.Selection, 50)
	for i := range work {
		work[i] = selection.Selection{
			Index:   i,
			Vector:  &vector.Vector{ID: fmt.Sprintf("v%d", i)},
			Variant: vector.Variant{ID: "x"},
		}
	}
	verdicts := ForEach(context.Background(), work, PoolConfig{Jobs: 4}, func(_ context.Context, sel selection.Selection) verify.Verdict {
		// finish later pairs first
		time.Sleep(time.Duration(len(work)-sel.Index) * 10 * time.Microsecond)
		return verify.Verdict{Index: sel.Index, VectorID: sel.Vector.ID, Outcome: verify.Pass}
	})
	if want, got := len(work), len(verdicts); want != got {
		t.Fatalf("unexpected number of verdicts, want %d, got %d", want, got)
	}
	for i, verdict := range verdicts {
		if want, got := i, verdict.Index; want != got {
			t.Errorf("unexpected verdict at position %d, want index %d, got %d", i, want, got)
		}
	}
}

func TestForEach_FailFastStopsDispatch(t *testing.T) {
	work := make([]selection.Selection, 100)
	for i := range work {
		work[i] = selection.Selection{Index: i, Vector: &vector.Vector{ID: "v"}}
	}
	var executed atomic.Int32
	verdicts := ForEach(context.Background(), work, PoolConfig{Jobs: 2, FailFast: true}, func(_ context.Context, sel selection.Selection) verify.Verdict {
		executed.Add(1)
		if sel.Index == 5 {
			return verify.Verdict{Index: sel.Index, Outcome: verify.Fatal}
		}
		time.Sleep(time.Millisecond)
		return verify.Verdict{Index: sel.Index, Outcome: verify.Pass}
	})

	if got := executed.Load(); got >= int32(len(work)) {
		t.Errorf("fail-fast did not stop dispatch, executed %d pairs", got)
	}
	aborted := 0
	for i, verdict := range verdicts {
		if verdict.Outcome == verify.Skipped {
			if want, got := ReasonAborted, verdict.Reason; want != got {
				t.Errorf("unexpected reason, want %q, got %q", want, got)
			}
			aborted++
		}
		if want, got := i, verdict.Index; want != got {
			t.Errorf("unexpected index, want %d, got %d", want, got)
		}
	}
	if want, got := len(work)-int(executed.Load()), aborted; want != got {
		t.Errorf("unexpected number of aborted pairs, want %d, got %d", want, got)
	}
	if want, got := verify.Fatal, verdicts[5].Outcome; want != got {
		t.Errorf("fatal verdict lost, want %v, got %v", want, got)
	}
}

func TestForEach_FailFastStartsNoPairAfterFailure(t *testing.T) {
	work := make([]selection.Selection, 5)
	for i := range work {
		work[i] = selection.Selection{Index: i, Vector: &vector.Vector{ID: "v"}}
	}
	for range 3 {
		var executed []int
		verdicts := ForEach(context.Background(), work, PoolConfig{Jobs: 1, FailFast: true}, func(_ context.Context, sel selection.Selection) verify.Verdict {
			executed = append(executed, sel.Index)
			if sel.Index == 0 {
				return verify.Verdict{Index: sel.Index, Outcome: verify.Fail}
			}
			return verify.Verdict{Index: sel.Index, Outcome: verify.Pass}
		})

		if want, got := []int{0}, executed; !slices.Equal(want, got) {
			t.Fatalf("unexpected executed pairs, want %v, got %v", want, got)
		}
		if want, got := verify.Fail, verdicts[0].Outcome; want != got {
			t.Errorf("unexpected outcome of failing pair, want %v, got %v", want, got)
		}
		for _, verdict := range verdicts[1:] {
			if verdict.Outcome != verify.Skipped || verdict.Reason != ReasonAborted {
				t.Errorf("pair %d should be aborted, got %v", verdict.Index, verdict)
			}
		}
	}
}

func TestForEach_CanceledContextStopsDispatch(t *testing.T) {
	work := make([]selection.Selection, 10)
	for i := range work {
		work[i] = selection.Selection{Index: i, Vector: &vector.Vector{ID: "v"}}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	verdicts := ForEach(ctx, work, PoolConfig{Jobs: 2}, func(context.Context, selection.Selection) verify.Verdict {
		t.Errorf("no pair should be executed")
		return verify.Verdict{}
	})
	for _, verdict := range verdicts {
		if want, got := verify.Skipped, verdict.Outcome; want != got {
			t.Errorf("unexpected outcome, want %v, got %v", want, got)
		}
	}
}

func TestForEach_ReportsProgress(t *testing.T) {
	work := make([]selection.Selection, 5)
	for i := range work {
		work[i] = selection.Selection{Index: i, Vector: &vector.Vector{ID: "v"}}
	}
	var reports atomic.Int32
	config := PoolConfig{
		Jobs:             1,
		ProgressInterval: time.Millisecond,
		Progress: func(time.Duration, float64, int64) {
			reports.Add(1)
		},
	}
	ForEach(context.Background(), work, config, func(_ context.Context, sel selection.Selection) verify.Verdict {
		time.Sleep(5 * time.Millisecond)
		return verify.Verdict{Index: sel.Index}
	})
	if reports.Load() == 0 {
		t.Errorf("no progress reported")
	}
}
