// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/blake2b"
)

type call struct {
	from, to uint64
	nonce    uint64
	method   fvm.MethodNum
	params   []byte
	value    uint64
	gasLimit fvm.Gas
}

func (c call) message(t *testing.T) fvm.Message {
	t.Helper()
	gasLimit := c.gasLimit
	if gasLimit == 0 {
		gasLimit = 10_000_000
	}
	data, err := fvm.MessageHeader{
		To:         fvm.NewIDAddress(c.to),
		From:       fvm.NewIDAddress(c.from),
		Nonce:      c.nonce,
		Value:      fvm.NewTokenAmount(c.value),
		GasLimit:   gasLimit,
		GasFeeCap:  fvm.NewTokenAmount(1),
		GasPremium: fvm.NewTokenAmount(0),
		Method:     c.method,
		Params:     c.params,
	}.Encode()
	if err != nil {
		t.Fatalf("failed to encode message: %v", err)
	}
	return fvm.Message{Bytes: data}
}

func newTestMachine(t *testing.T, nv fvm.NetworkVersion, accounts map[uint64]Account) (fvm.Machine, *blockstore.MemoryStore, cid.Cid) {
	t.Helper()
	store := blockstore.NewMemoryStore()
	root, err := Genesis(store, accounts)
	if err != nil {
		t.Fatalf("failed to create genesis: %v", err)
	}
	config := fvm.MachineConfig{NetworkVersion: nv, BaseFee: fvm.NewTokenAmount(1)}
	machine, err := NewEngine(Config{}).NewMachine(context.Background(), config, store, root)
	if err != nil {
		t.Fatalf("failed to create machine: %v", err)
	}
	return machine, store, root
}

func funded() map[uint64]Account {
	return map[uint64]Account{
		100: {Balance: fvm.NewTokenAmount(1_000_000_000)},
		101: {Balance: fvm.NewTokenAmount(5)},
	}
}

func apply(t *testing.T, machine fvm.Machine, msg fvm.Message) fvm.Receipt {
	t.Helper()
	receipt, err := machine.Apply(context.Background(), msg)
	if err != nil {
		t.Fatalf("failed to apply message: %v", err)
	}
	return receipt
}

func finish(t *testing.T, machine fvm.Machine, store blockstore.Reader) (cid.Cid, map[uint64]Account) {
	t.Helper()
	root, _, err := machine.Finish()
	if err != nil {
		t.Fatalf("failed to finish machine: %v", err)
	}
	state, err := LoadState(store, root)
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	return root, state
}

func TestEngine_IsRegistered(t *testing.T) {
	for name, capabilities := range map[string][]string{
		"ledger":        nil,
		"ledger-native": {CapabilityNativeExecution},
	} {
		engine, err := fvm.NewEngine(name)
		if err != nil {
			t.Fatalf("failed to create engine %s: %v", name, err)
		}
		reporter, ok := engine.(fvm.CapabilityReporter)
		if !ok {
			t.Fatalf("engine %s does not report capabilities", name)
		}
		if want, got := capabilities, reporter.Capabilities(); !slices.Equal(want, got) {
			t.Errorf("unexpected capabilities of %s, want %v, got %v", name, want, got)
		}
	}
}

func TestMachine_WithoutMessagesKeepsRoot(t *testing.T) {
	machine, store, root := newTestMachine(t, 21, funded())
	got, _ := finish(t, machine, store)
	if !got.Equals(root) {
		t.Errorf("unexpected root, want %v, got %v", root, got)
	}
}

func TestMachine_TransferMovesValueAndChargesGas(t *testing.T) {
	machine, store, _ := newTestMachine(t, 21, funded())
	msg := call{from: 100, to: 101, value: 1000}.message(t)
	receipt := apply(t, machine, msg)

	prices := PricesFor(21)
	wantGas := prices.OnChainMessageBase + prices.OnChainMessagePerByte*fvm.Gas(len(msg.Bytes)) +
		prices.MethodBase + prices.TransferBase
	if want, got := (fvm.Receipt{ExitCode: fvm.Ok, GasUsed: wantGas}), receipt; want.ExitCode != got.ExitCode || want.GasUsed != got.GasUsed {
		t.Errorf("unexpected receipt, want %v, got %v", want, got)
	}

	_, state := finish(t, machine, store)
	if want, got := "1005", state[101].Balance.String(); want != got {
		t.Errorf("unexpected receiver balance, want %s, got %s", want, got)
	}
	wantSender, _ := fvm.NewTokenAmount(1_000_000_000 - 1000).Sub(fvm.NewTokenAmount(uint64(wantGas)))
	if want, got := wantSender, state[100].Balance; want.Cmp(got) != 0 {
		t.Errorf("unexpected sender balance, want %v, got %v", want, got)
	}
	if want, got := uint64(1), state[100].Nonce; want != got {
		t.Errorf("unexpected nonce, want %d, got %d", want, got)
	}
}

func TestMachine_TransferCreatesReceiver(t *testing.T) {
	machine, store, _ := newTestMachine(t, 21, funded())
	receipt := apply(t, machine, call{from: 100, to: 500, value: 7}.message(t))
	if want, got := fvm.Ok, receipt.ExitCode; want != got {
		t.Fatalf("unexpected exit code, want %v, got %v", want, got)
	}
	_, state := finish(t, machine, store)
	if want, got := "7", state[500].Balance.String(); want != got {
		t.Errorf("unexpected balance of new account, want %s, got %s", want, got)
	}
}

func TestMachine_StoreSetsHead(t *testing.T) {
	machine, store, _ := newTestMachine(t, 21, funded())
	payload := []byte{0x83, 1, 2, 3}
	receipt := apply(t, machine, call{from: 100, to: 101, method: MethodStore, params: payload}.message(t))
	if want, got := fvm.Ok, receipt.ExitCode; want != got {
		t.Fatalf("unexpected exit code, want %v, got %v", want, got)
	}
	head, err := cid.Cast(receipt.Return)
	if err != nil {
		t.Fatalf("return value is not a block id: %v", err)
	}
	data, err := store.Get(head)
	if err != nil {
		t.Fatalf("stored block missing: %v", err)
	}
	if !bytes.Equal(payload, data) {
		t.Errorf("unexpected stored payload, want %x, got %x", payload, data)
	}
	_, state := finish(t, machine, store)
	if !state[101].Head.Equals(head) {
		t.Errorf("unexpected head, want %v, got %v", head, state[101].Head)
	}
}

func TestMachine_HashReturnsIteratedDigest(t *testing.T) {
	machine, _, _ := newTestMachine(t, 21, funded())
	params, err := EncodeHashParams(3, []byte("input"))
	if err != nil {
		t.Fatalf("failed to encode parameters: %v", err)
	}
	receipt := apply(t, machine, call{from: 100, to: 101, method: MethodHash, params: params}.message(t))

	want := blake2b.Sum256([]byte("input"))
	for i := 0; i < 3; i++ {
		want = blake2b.Sum256(want[:])
	}
	if !bytes.Equal(want[:], receipt.Return) {
		t.Errorf("unexpected digest, want %x, got %x", want, receipt.Return)
	}
}

func TestMachine_FailingCallsRevertButChargeGas(t *testing.T) {
	params, err := EncodeAbortParams(fvm.FirstUserExitCode + 1)
	if err != nil {
		t.Fatalf("failed to encode parameters: %v", err)
	}
	machine, store, _ := newTestMachine(t, 21, funded())
	receipt := apply(t, machine, call{from: 100, to: 101, method: MethodAbort, params: params, value: 10}.message(t))
	if want, got := fvm.FirstUserExitCode+1, receipt.ExitCode; want != got {
		t.Fatalf("unexpected exit code, want %v, got %v", want, got)
	}
	if receipt.GasUsed == 0 {
		t.Errorf("failing call charged no gas")
	}
	_, state := finish(t, machine, store)
	if want, got := "5", state[101].Balance.String(); want != got {
		t.Errorf("value transfer not reverted, want %s, got %s", want, got)
	}
	if want, got := uint64(1), state[100].Nonce; want != got {
		t.Errorf("nonce not incremented, want %d, got %d", want, got)
	}
}

func TestMachine_ExitCodes(t *testing.T) {
	abortSystem, _ := EncodeAbortParams(fvm.SysErrOutOfGas)
	hashMany, _ := EncodeHashParams(1_000_000, nil)
	tests := map[string]struct {
		call call
		want fvm.ExitCode
	}{
		"unknown sender":        {call{from: 999, to: 101}, fvm.SysErrSenderInvalid},
		"wrong nonce":           {call{from: 100, to: 101, nonce: 3}, fvm.SysErrSenderStateInvalid},
		"gas below inclusion":   {call{from: 100, to: 101, gasLimit: 10}, fvm.SysErrOutOfGas},
		"unaffordable gas":      {call{from: 101, to: 100}, fvm.SysErrInsufficientFunds},
		"unaffordable value":    {call{from: 100, to: 101, value: 999_999_999}, fvm.SysErrInsufficientFunds},
		"missing receiver":      {call{from: 100, to: 777, method: MethodStore}, fvm.SysErrInvalidReceiver},
		"unknown method":        {call{from: 100, to: 101, method: 99}, fvm.ErrUnhandledMessage},
		"invalid parameters":    {call{from: 100, to: 101, method: MethodHash, params: []byte{0xff}}, fvm.ErrSerialization},
		"system exit code":      {call{from: 100, to: 101, method: MethodAbort, params: abortSystem}, fvm.SysErrIllegalExitCode},
		"running out of gas":    {call{from: 100, to: 101, method: MethodHash, params: hashMany, gasLimit: 100_000}, fvm.SysErrOutOfGas},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			machine, _, _ := newTestMachine(t, 21, funded())
			receipt := apply(t, machine, test.call.message(t))
			if want, got := test.want, receipt.ExitCode; want != got {
				t.Errorf("unexpected exit code, want %v, got %v", want, got)
			}
		})
	}
}

func TestMachine_OutOfGasConsumesGasLimit(t *testing.T) {
	machine, _, _ := newTestMachine(t, 21, funded())
	params, _ := EncodeHashParams(1_000_000, nil)
	receipt := apply(t, machine, call{from: 100, to: 101, method: MethodHash, params: params, gasLimit: 100_000}.message(t))
	if want, got := fvm.Gas(100_000), receipt.GasUsed; want != got {
		t.Errorf("unexpected gas used, want %d, got %d", want, got)
	}
}

func TestMachine_UndecodableMessageIsRejected(t *testing.T) {
	machine, _, _ := newTestMachine(t, 21, funded())
	receipt := apply(t, machine, fvm.Message{Bytes: []byte{0xff, 0x00}})
	if want, got := fvm.ErrSerialization, receipt.ExitCode; want != got {
		t.Errorf("unexpected exit code, want %v, got %v", want, got)
	}
}

func TestMachine_ExecutionIsDeterministic(t *testing.T) {
	params, _ := EncodeHashParams(10, []byte{1})
	calls := []call{
		{from: 100, to: 101, value: 10},
		{from: 100, to: 102, nonce: 1, value: 20},
		{from: 100, to: 101, nonce: 2, method: MethodStore, params: []byte{0x01}},
		{from: 100, to: 101, nonce: 3, method: MethodHash, params: params},
	}
	roots := []cid.Cid{}
	for i := 0; i < 2; i++ {
		machine, store, _ := newTestMachine(t, 21, funded())
		for _, c := range calls {
			apply(t, machine, c.message(t))
		}
		root, _ := finish(t, machine, store)
		roots = append(roots, root)
	}
	if !roots[0].Equals(roots[1]) {
		t.Errorf("identical executions produced different roots: %v vs %v", roots[0], roots[1])
	}
}

func TestMachine_PricesDependOnNetworkVersion(t *testing.T) {
	gas := map[fvm.NetworkVersion]fvm.Gas{}
	for _, nv := range []fvm.NetworkVersion{20, 21} {
		machine, _, _ := newTestMachine(t, nv, funded())
		receipt := apply(t, machine, call{from: 100, to: 101, method: MethodStore, params: make([]byte, 100)}.message(t))
		gas[nv] = receipt.GasUsed
	}
	if gas[20] == gas[21] {
		t.Errorf("expected different gas before and after repricing, got %d", gas[20])
	}
}

func TestMachine_CanceledContextAbortsLongComputation(t *testing.T) {
	machine, _, _ := newTestMachine(t, 21, funded())
	params, _ := EncodeHashParams(1_000_000, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := machine.Apply(ctx, call{from: 100, to: 101, method: MethodHash, params: params}.message(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestMachine_CanNotBeUsedAfterFinish(t *testing.T) {
	machine, _, _ := newTestMachine(t, 21, funded())
	if _, _, err := machine.Finish(); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}
	if _, err := machine.Apply(context.Background(), call{from: 100, to: 101}.message(t)); err == nil {
		t.Errorf("expected error when applying to finished machine")
	}
	if _, _, err := machine.Finish(); err == nil {
		t.Errorf("expected error when finishing twice")
	}
}

func TestNewMachine_MissingBlocksAreReported(t *testing.T) {
	store := blockstore.NewMemoryStore()
	head, err := blockstore.Sum([]byte{0x01})
	if err != nil {
		t.Fatalf("failed to compute id: %v", err)
	}
	root, err := Genesis(store, map[uint64]Account{1: {Head: head}})
	if err != nil {
		t.Fatalf("failed to create genesis: %v", err)
	}
	engine := NewEngine(Config{})

	_, err = engine.NewMachine(context.Background(), fvm.MachineConfig{}, store, root)
	if !errors.Is(err, blockstore.ErrNotFound) {
		t.Errorf("expected missing head to be reported, got %v", err)
	}

	missingRoot, _ := blockstore.Sum([]byte{0x02})
	_, err = engine.NewMachine(context.Background(), fvm.MachineConfig{}, store, missingRoot)
	if !errors.Is(err, blockstore.ErrNotFound) {
		t.Errorf("expected missing root to be reported, got %v", err)
	}

	emptyRoot, err := Genesis(store, nil)
	if err != nil {
		t.Fatalf("failed to create genesis: %v", err)
	}
	_, err = engine.NewMachine(context.Background(), fvm.MachineConfig{ActorBundle: head}, store, emptyRoot)
	if !errors.Is(err, blockstore.ErrNotFound) {
		t.Errorf("expected missing actor bundle to be reported, got %v", err)
	}
}

func TestNewEngine_PriceListCanBeReplaced(t *testing.T) {
	prices := PricesFor(21)
	prices.MethodBase = 0
	prices.OnChainMessageBase = 0
	prices.OnChainMessagePerByte = 0
	store := blockstore.NewMemoryStore()
	root, err := Genesis(store, funded())
	if err != nil {
		t.Fatalf("failed to create genesis: %v", err)
	}
	machine, err := NewEngine(Config{Prices: &prices}).NewMachine(context.Background(), fvm.MachineConfig{}, store, root)
	if err != nil {
		t.Fatalf("failed to create machine: %v", err)
	}
	receipt := apply(t, machine, call{from: 100, to: 101}.message(t))
	if want, got := fvm.Gas(0), receipt.GasUsed; want != got {
		t.Errorf("unexpected gas used, want %d, got %d", want, got)
	}
}
