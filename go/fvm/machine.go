// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package fvm

import (
	"context"

	"github.com/ipfs/go-cid"
)

//go:generate mockgen -source machine.go -destination machine_mock.go -package fvm

// Engine is a component capable of instantiating machines. It is the entry
// point of a VM implementation. Engines are required to be thread-safe:
// machines for independent test cases may be created and used in parallel.
// To obtain an Engine instance, client code should use NewEngine() provided
// by the registry file in this package.
type Engine interface {
	// NewMachine creates a machine whose state is rooted at the given state
	// root, backed by the given block store. The machine becomes the
	// exclusive user of the store until it is finished.
	NewMachine(ctx context.Context, config MachineConfig, store Blockstore, root cid.Cid) (Machine, error)
}

// Machine applies messages to a state tree. Messages are applied strictly
// in the order in which Apply is called.
type Machine interface {
	// Apply executes a single message. Failures of the message itself, e.g.
	// running out of gas or an actor aborting, are reported through the exit
	// code of the resulting receipt. A non-nil error signals an unrecoverable
	// fault of the machine, after which the machine must not be used anymore.
	Apply(ctx context.Context, message Message) (Receipt, error)

	// Finish flushes all pending state changes and returns the root of the
	// resulting state tree together with the store containing it.
	Finish() (cid.Cid, Blockstore, error)
}

// CapabilityReporter is an optional interface of an Engine listing the
// build-time capabilities it provides, e.g. native execution of actors.
type CapabilityReporter interface {
	Capabilities() []string
}

// Blockstore is the content-addressed storage consumed by machines.
type Blockstore interface {
	Get(cid.Cid) ([]byte, error)
	Has(cid.Cid) (bool, error)
	Put(cid.Cid, []byte) error
}

// MachineConfig summarizes the network parameters a machine is created with.
type MachineConfig struct {
	NetworkVersion NetworkVersion
	Epoch          ChainEpoch
	Timestamp      uint64
	BaseFee        TokenAmount
	CircSupply     TokenAmount
	ActorBundle    cid.Cid // < cid.Undef if the engine should use its default bundle
	Randomness     []byte  // < opaque, engine specific
}

// Receipt summarizes the result of applying a single message.
type Receipt struct {
	ExitCode ExitCode
	Return   []byte
	GasUsed  Gas
}
