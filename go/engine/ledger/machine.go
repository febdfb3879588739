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
	"context"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/blake2b"
)

const errFinished = fvm.ConstError("machine already finished")

// hashRoundsPerCheck is the number of hash rounds between checks of the
// context of a message.
const hashRoundsPerCheck = 1 << 12

type machine struct {
	config   fvm.MachineConfig
	prices   PriceList
	store    fvm.Blockstore
	root     cid.Cid
	actors   map[uint64]*Account
	dirty    bool
	finished bool
}

func (m *machine) Apply(ctx context.Context, message fvm.Message) (fvm.Receipt, error) {
	if m.finished {
		return fvm.Receipt{}, errFinished
	}
	header, err := message.Header()
	if err != nil {
		return fvm.Receipt{ExitCode: fvm.ErrSerialization}, nil
	}

	// Validate the message before charging the sender.
	senderId, isId := header.From.ID()
	sender := m.actors[senderId]
	if !isId || sender == nil {
		return fvm.Receipt{ExitCode: fvm.SysErrSenderInvalid}, nil
	}
	if header.Nonce != sender.Nonce {
		return fvm.Receipt{ExitCode: fvm.SysErrSenderStateInvalid}, nil
	}
	inclusion := m.prices.OnChainMessageBase + m.prices.OnChainMessagePerByte*fvm.Gas(len(message.Bytes))
	if header.GasLimit < inclusion {
		return fvm.Receipt{ExitCode: fvm.SysErrOutOfGas}, nil
	}
	maxFee := header.GasFeeCap.MulGas(header.GasLimit)
	if sender.Balance.Cmp(maxFee) < 0 {
		return fvm.Receipt{ExitCode: fvm.SysErrInsufficientFunds}, nil
	}

	sender.Nonce++
	m.dirty = true

	meter := gasMeter{limit: header.GasLimit, used: inclusion}
	snapshot := m.snapshot()
	code, ret, err := m.invoke(ctx, &meter, header, maxFee)
	if err != nil {
		if errors.Is(err, errOutOfGas) {
			code, ret = fvm.SysErrOutOfGas, nil
		} else {
			return fvm.Receipt{}, err
		}
	}
	if code != fvm.Ok {
		m.restore(snapshot)
		ret = nil
	}

	// Gas is charged at the base fee. Fees never exceed the reserved maximum
	// unless the base fee exceeds the fee cap, in which case the sender
	// pays what is left.
	fee := m.config.BaseFee.MulGas(meter.used)
	sender = m.actors[senderId]
	if balance, ok := sender.Balance.Sub(fee); ok {
		sender.Balance = balance
	} else {
		sender.Balance = fvm.TokenAmount{}
	}

	return fvm.Receipt{ExitCode: code, Return: ret, GasUsed: meter.used}, nil
}

// invoke performs the method call of the given message. Failures of the
// call are reported through the exit code; errors are only returned for
// running out of gas and for faults of the machine.
func (m *machine) invoke(ctx context.Context, meter *gasMeter, header fvm.MessageHeader, reserved fvm.TokenAmount) (fvm.ExitCode, []byte, error) {
	if err := meter.charge(m.prices.MethodBase); err != nil {
		return 0, nil, err
	}

	receiverId, isId := header.To.ID()
	if !isId {
		return fvm.SysErrInvalidReceiver, nil, nil
	}
	receiver := m.actors[receiverId]
	if receiver == nil {
		if header.Method != MethodSend {
			return fvm.SysErrInvalidReceiver, nil, nil
		}
		if err := meter.charge(m.prices.ActorCreation); err != nil {
			return 0, nil, err
		}
		receiver = &Account{}
		m.actors[receiverId] = receiver
	}

	if !header.Value.IsZero() {
		if err := meter.charge(m.prices.TransferBase); err != nil {
			return 0, nil, err
		}
		sender := m.actors[mustID(header.From)]
		available, _ := sender.Balance.Sub(reserved)
		remaining, ok := available.Sub(header.Value)
		if !ok {
			return fvm.SysErrInsufficientFunds, nil, nil
		}
		sender.Balance, _ = remaining.Add(reserved)
		credited, ok := receiver.Balance.Add(header.Value)
		if !ok {
			return fvm.ErrIllegalState, nil, nil
		}
		receiver.Balance = credited
	}

	switch header.Method {
	case MethodSend:
		return fvm.Ok, nil, nil

	case MethodStore:
		if err := meter.charge(m.prices.StorageBase + m.prices.StoragePerByte*fvm.Gas(len(header.Params))); err != nil {
			return 0, nil, err
		}
		id, err := blockstore.PutBlock(m.store, header.Params)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to store block: %w", err)
		}
		receiver.Head = id
		return fvm.Ok, id.Bytes(), nil

	case MethodHash:
		params, err := decodeHashParams(header.Params)
		if err != nil {
			return fvm.ErrSerialization, nil, nil
		}
		if err := meter.charge(m.prices.HashBase + m.prices.HashPerByte*fvm.Gas(len(params.Input))); err != nil {
			return 0, nil, err
		}
		digest := blake2b.Sum256(params.Input)
		for i := uint64(0); i < params.Rounds; i++ {
			if err := meter.charge(m.prices.HashPerRound); err != nil {
				return 0, nil, err
			}
			if i%hashRoundsPerCheck == 0 {
				if err := ctx.Err(); err != nil {
					return 0, nil, err
				}
			}
			digest = blake2b.Sum256(digest[:])
		}
		return fvm.Ok, digest[:], nil

	case MethodAbort:
		code, err := decodeAbortParams(header.Params)
		if err != nil {
			return fvm.ErrSerialization, nil, nil
		}
		if code < fvm.FirstActorErrorCode {
			return fvm.SysErrIllegalExitCode, nil, nil
		}
		return code, nil, nil
	}
	return fvm.ErrUnhandledMessage, nil, nil
}

func (m *machine) Finish() (cid.Cid, fvm.Blockstore, error) {
	if m.finished {
		return cid.Undef, nil, errFinished
	}
	m.finished = true
	if !m.dirty {
		return m.root, m.store, nil
	}
	root, err := storeState(m.store, m.actors)
	if err != nil {
		return cid.Undef, nil, err
	}
	return root, m.store, nil
}

func (m *machine) snapshot() map[uint64]Account {
	res := make(map[uint64]Account, len(m.actors))
	for id, account := range m.actors {
		res[id] = *account
	}
	return res
}

func (m *machine) restore(snapshot map[uint64]Account) {
	m.actors = make(map[uint64]*Account, len(snapshot))
	for id, account := range snapshot {
		account := account
		m.actors[id] = &account
	}
}

func mustID(address fvm.Address) uint64 {
	id, _ := address.ID()
	return id
}
