// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package examples provides parameterized workloads for the reference
// ledger machine. They are used to calibrate gas models and as fixtures in
// tests and benchmarks.
package examples

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/runner"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
	"pgregory.net/rand"
)

const (
	senderId       = 100
	receiverId     = 101
	initialBalance = 1 << 62
	defaultGas     = fvm.Gas(10_000_000_000)
)

// Example is a message template on the ledger machine parameterized by a
// single integer argument, together with a reference of its outcome.
type Example struct {
	exampleSpec
}

// exampleSpec specifies the message sent for an argument.
type exampleSpec struct {
	Name      string
	method    fvm.MethodNum
	params    func(argument int) ([]byte, error) // < nil for no parameters
	value     func(argument int) uint64          // < nil for no value
	gasLimit  func(argument int) fvm.Gas         // < nil for defaultGas
	reference func(argument int) Result          // computes exit code and return
}

func (s exampleSpec) build() Example {
	return Example{exampleSpec: s}
}

// Result is the outcome of running an example.
type Result struct {
	ExitCode fvm.ExitCode
	Return   []byte
	UsedGas  fvm.Gas
}

// Message creates the message of this example for the given argument.
func (e *Example) Message(nonce uint64, argument int) (fvm.Message, error) {
	header := fvm.MessageHeader{
		To:         fvm.NewIDAddress(receiverId),
		From:       fvm.NewIDAddress(senderId),
		Nonce:      nonce,
		GasLimit:   defaultGas,
		GasFeeCap:  fvm.NewTokenAmount(1),
		GasPremium: fvm.NewTokenAmount(0),
		Method:     e.method,
	}
	if e.params != nil {
		params, err := e.params(argument)
		if err != nil {
			return fvm.Message{}, fmt.Errorf("failed to encode parameters of %s: %w", e.Name, err)
		}
		header.Params = params
	}
	if e.value != nil {
		header.Value = fvm.NewTokenAmount(e.value(argument))
	}
	if e.gasLimit != nil {
		header.GasLimit = e.gasLimit(argument)
	}
	data, err := header.Encode()
	if err != nil {
		return fvm.Message{}, err
	}
	return fvm.Message{Bytes: data}, nil
}

// Vector creates a vector applying one message per given argument. The
// vector carries no postconditions; use runner.Record to add them.
func (e *Example) Vector(arguments ...int) (*vector.Vector, error) {
	store := blockstore.NewMemoryStore()
	root, err := ledger.Genesis(store, map[uint64]ledger.Account{
		senderId:   {Balance: fvm.NewTokenAmount(initialBalance)},
		receiverId: {},
	})
	if err != nil {
		return nil, err
	}
	archive, err := vector.InlineArchive([]cid.Cid{root}, store)
	if err != nil {
		return nil, err
	}

	res := &vector.Vector{
		ID:            "examples/" + e.Name,
		Description:   fmt.Sprintf("%s workload with %d messages", e.Name, len(arguments)),
		Class:         vector.ClassMessage,
		FormatVersion: vector.FormatVersion,
		Tags:          []string{"example", e.Name},
		Variants: []vector.Variant{
			{ID: "nv20", NetworkVersion: 20, BaseFee: fvm.NewTokenAmount(1)},
			{ID: "nv21", NetworkVersion: 21, BaseFee: fvm.NewTokenAmount(1)},
		},
		Preconditions: vector.Preconditions{StateRoot: root, BaseFee: fvm.NewTokenAmount(1)},
		Archive:       archive,
	}
	sort.Strings(res.Tags)
	for i, argument := range arguments {
		message, err := e.Message(uint64(i), argument)
		if err != nil {
			return nil, err
		}
		res.Messages = append(res.Messages, message)
	}
	return res, nil
}

// RandomVector creates a vector of the given number of messages with
// arguments drawn uniformly from [0, maxArgument].
func (e *Example) RandomVector(rnd *rand.Rand, count, maxArgument int) (*vector.Vector, error) {
	arguments := make([]int, count)
	for i := range arguments {
		arguments[i] = rnd.Intn(maxArgument + 1)
	}
	return e.Vector(arguments...)
}

// RunOn runs this example on the given engine, using the given argument.
func (e *Example) RunOn(ctx context.Context, engine fvm.Engine, argument int) (Result, error) {
	v, err := e.Vector(argument)
	if err != nil {
		return Result{}, err
	}
	snapshot, err := v.OpenStore(vector.StoreOptions{})
	if err != nil {
		return Result{}, err
	}
	defer snapshot.Close()

	res, err := runner.Execute(ctx, engine, v, v.Variants[len(v.Variants)-1], blockstore.NewOverlay(snapshot.Store))
	if err != nil {
		return Result{}, err
	}
	receipt := res.Receipts[0]
	return Result{
		ExitCode: receipt.ExitCode,
		Return:   receipt.Return,
		UsedGas:  receipt.GasUsed,
	}, nil
}

// RunReference computes the expected outcome of this example. The used gas
// is not part of the reference.
func (e *Example) RunReference(argument int) Result {
	return e.reference(argument)
}

// Matches checks whether the outcome of a run agrees with the reference.
func (r Result) Matches(reference Result) bool {
	return r.ExitCode == reference.ExitCode && bytes.Equal(r.Return, reference.Return)
}

// GetAllExamples lists all available workloads.
func GetAllExamples() []Example {
	return []Example{
		GetStaticOverheadExample(),
		GetTransferExample(),
		GetStoreExample(),
		GetHashExample(),
		GetGasBurnerExample(),
		GetAbortExample(),
	}
}

// GetExample looks up a workload by name.
func GetExample(name string) (Example, bool) {
	for _, example := range GetAllExamples() {
		if example.Name == name {
			return example, true
		}
	}
	return Example{}, false
}
