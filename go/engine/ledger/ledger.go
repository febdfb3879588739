// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ledger provides a reference machine implementing a minimal account
// ledger. It supports value transfers, storing data blocks, hashing, and
// explicit aborts, charging gas according to a network version dependent
// price list. It is used to produce and replay tautology vectors and as a
// deterministic calibration target.
package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
)

// CapabilityNativeExecution is the capability provided by engines executing
// actors natively instead of through a WASM interpreter.
const CapabilityNativeExecution = "native-execution"

func init() {
	engines := map[string]Config{
		"ledger":        {},
		"ledger-native": {Capabilities: []string{CapabilityNativeExecution}},
	}
	for name, config := range engines {
		config := config
		err := fvm.RegisterEngineFactory(name, func(any) (fvm.Engine, error) {
			return NewEngine(config), nil
		})
		if err != nil {
			panic(err)
		}
	}
}

// Config parameterizes a ledger engine.
type Config struct {
	// Capabilities lists the capabilities reported by the engine.
	Capabilities []string
	// Prices, if set, replaces the network version dependent price list.
	Prices *PriceList
}

// Engine creates ledger machines. It is stateless and thus thread-safe.
type Engine struct {
	config Config
}

func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

func (e *Engine) Capabilities() []string {
	return slices.Clone(e.config.Capabilities)
}

func (e *Engine) NewMachine(
	ctx context.Context,
	config fvm.MachineConfig,
	store fvm.Blockstore,
	root cid.Cid,
) (fvm.Machine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.ActorBundle.Defined() {
		if found, err := store.Has(config.ActorBundle); err != nil || !found {
			return nil, fmt.Errorf("actor bundle %v: %w", config.ActorBundle, notFound(err))
		}
	}
	actors, err := loadState(store, root)
	if err != nil {
		return nil, err
	}
	prices := PricesFor(config.NetworkVersion)
	if e.config.Prices != nil {
		prices = *e.config.Prices
	}
	return &machine{
		config: config,
		prices: prices,
		store:  store,
		root:   root,
		actors: actors,
	}, nil
}
