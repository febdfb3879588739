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
	"testing"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
)

// newLedgerVector creates a vector without postconditions transferring
// value between two ledger accounts.
func newLedgerVector(t *testing.T, numMessages int) *vector.Vector {
	t.Helper()
	store := blockstore.NewMemoryStore()
	root, err := ledger.Genesis(store, map[uint64]ledger.Account{
		100: {Balance: fvm.NewTokenAmount(1_000_000_000)},
	})
	if err != nil {
		t.Fatalf("failed to create genesis: %v", err)
	}
	archive, err := vector.InlineArchive([]cid.Cid{root}, store)
	if err != nil {
		t.Fatalf("failed to pack archive: %v", err)
	}

	v := &vector.Vector{
		ID:            "ledger/transfer",
		Class:         vector.ClassMessage,
		FormatVersion: vector.FormatVersion,
		Variants: []vector.Variant{
			{ID: "nv20", NetworkVersion: 20, BaseFee: fvm.NewTokenAmount(1)},
			{ID: "nv21", NetworkVersion: 21, BaseFee: fvm.NewTokenAmount(1)},
		},
		Preconditions: vector.Preconditions{StateRoot: root, BaseFee: fvm.NewTokenAmount(1)},
		Archive:       archive,
	}
	for i := 0; i < numMessages; i++ {
		data, err := fvm.MessageHeader{
			To:         fvm.NewIDAddress(uint64(200 + i%2)),
			From:       fvm.NewIDAddress(100),
			Nonce:      uint64(i),
			Value:      fvm.NewTokenAmount(uint64(10 * (i + 1))),
			GasLimit:   1_000_000,
			GasFeeCap:  fvm.NewTokenAmount(1),
			GasPremium: fvm.NewTokenAmount(0),
		}.Encode()
		if err != nil {
			t.Fatalf("failed to encode message: %v", err)
		}
		v.Messages = append(v.Messages, fvm.Message{Bytes: data})
	}
	return v
}

func TestRecord_ReplayOfRecordedVectorPasses(t *testing.T) {
	engine := ledger.NewEngine(ledger.Config{})
	for _, numMessages := range []int{0, 1, 5} {
		v := newLedgerVector(t, numMessages)
		for _, variant := range v.Variants {
			recorded, err := Record(context.Background(), engine, v, variant, Options{})
			if err != nil {
				t.Fatalf("failed to record: %v", err)
			}
			if want, got := numMessages, len(recorded.Postconditions.Receipts); want != got {
				t.Fatalf("unexpected number of receipts, want %d, got %d", want, got)
			}

			sel := selection.Selection{Vector: recorded, Variant: variant}
			res := RunPair(context.Background(), engine, sel, Options{})
			if want, got := verify.Pass, res.Outcome; want != got {
				t.Errorf("unexpected outcome of %v with %d messages, want %v, got %v", sel, numMessages, want, got)
			}
		}
	}
}

func TestRecord_EmptyVectorKeepsStateRoot(t *testing.T) {
	v := newLedgerVector(t, 0)
	recorded, err := Record(context.Background(), ledger.NewEngine(ledger.Config{}), v, v.Variants[0], Options{})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	if want, got := v.Preconditions.StateRoot, recorded.Postconditions.StateRoot; !want.Equals(got) {
		t.Errorf("unexpected state root, want %v, got %v", want, got)
	}
}

func TestRecord_RecordedVectorSurvivesEncoding(t *testing.T) {
	engine := ledger.NewEngine(ledger.Config{})
	v := newLedgerVector(t, 3)
	recorded, err := Record(context.Background(), engine, v, v.Variants[1], Options{})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	manifest, err := vector.Encode(recorded)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	decoded, err := vector.Decode(manifest)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	res := RunPair(context.Background(), engine, selection.Selection{Vector: decoded, Variant: decoded.Variants[1]}, Options{})
	if want, got := verify.Pass, res.Outcome; want != got {
		t.Errorf("unexpected outcome, want %v, got %v (%v)", want, got, res)
	}
}

func TestRecord_PricingDiffersBetweenVariants(t *testing.T) {
	engine := ledger.NewEngine(ledger.Config{})
	v := newLedgerVector(t, 1)
	recorded, err := Record(context.Background(), engine, v, v.Variants[0], Options{})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	res := RunPair(context.Background(), engine, selection.Selection{Vector: recorded, Variant: v.Variants[1]}, Options{})
	if want, got := verify.Fail, res.Outcome; want != got {
		t.Fatalf("unexpected outcome, want %v, got %v", want, got)
	}
	if res.Mismatch == nil || res.Mismatch.Field != verify.FieldGasUsed {
		t.Errorf("expected gas mismatch, got %v", res.Mismatch)
	}
}

func TestRecord_MissingRootIsReported(t *testing.T) {
	v := newLedgerVector(t, 1)
	v.Preconditions.StateRoot, _ = blockstore.Sum([]byte{0x42})
	if _, err := Record(context.Background(), ledger.NewEngine(ledger.Config{}), v, v.Variants[0], Options{}); err == nil {
		t.Errorf("expected recording to fail")
	}
}
