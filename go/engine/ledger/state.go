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
	"errors"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

const stateVersion = 1

// Account describes the state of a single actor.
type Account struct {
	Balance fvm.TokenAmount
	Nonce   uint64
	// Head is the last block stored by the actor, undefined if none.
	Head cid.Cid
}

type encodedActor struct {
	_       struct{} `cbor:",toarray"`
	ID      uint64
	Balance fvm.TokenAmount
	Nonce   uint64
	Head    []byte
}

type encodedState struct {
	_       struct{} `cbor:",toarray"`
	Version uint64
	Actors  []encodedActor
}

// Genesis stores a state tree containing the given accounts and returns
// its root.
func Genesis(store blockstore.Putter, accounts map[uint64]Account) (cid.Cid, error) {
	actors := make(map[uint64]*Account, len(accounts))
	for id, account := range accounts {
		account := account
		actors[id] = &account
	}
	return storeState(store, actors)
}

// LoadState reads the accounts of the state tree with the given root.
func LoadState(store blockstore.Reader, root cid.Cid) (map[uint64]Account, error) {
	actors, err := loadState(store, root)
	if err != nil {
		return nil, err
	}
	res := make(map[uint64]Account, len(actors))
	for id, account := range actors {
		res[id] = *account
	}
	return res, nil
}

func loadState(store blockstore.Reader, root cid.Cid) (map[uint64]*Account, error) {
	data, err := store.Get(root)
	if err != nil {
		return nil, fmt.Errorf("state root %v: %w", root, notFound(err))
	}
	var state encodedState
	if err := cbor.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid state tree %v: %w", root, err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("unsupported state tree version %d", state.Version)
	}
	res := make(map[uint64]*Account, len(state.Actors))
	for _, actor := range state.Actors {
		if _, found := res[actor.ID]; found {
			return nil, fmt.Errorf("invalid state tree %v: duplicate actor %d", root, actor.ID)
		}
		account := &Account{Balance: actor.Balance, Nonce: actor.Nonce}
		if len(actor.Head) > 0 {
			if account.Head, err = cid.Cast(actor.Head); err != nil {
				return nil, fmt.Errorf("invalid head of actor %d: %w", actor.ID, err)
			}
			found, err := store.Has(account.Head)
			if err != nil || !found {
				return nil, fmt.Errorf("head of actor %d: %w", actor.ID, notFound(err))
			}
		}
		res[actor.ID] = account
	}
	return res, nil
}

func storeState(store blockstore.Putter, actors map[uint64]*Account) (cid.Cid, error) {
	ids := make([]uint64, 0, len(actors))
	for id := range actors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	state := encodedState{
		Version: stateVersion,
		Actors:  make([]encodedActor, 0, len(ids)),
	}
	for _, id := range ids {
		actor := actors[id]
		encoded := encodedActor{ID: id, Balance: actor.Balance, Nonce: actor.Nonce}
		if actor.Head.Defined() {
			encoded.Head = actor.Head.Bytes()
		}
		state.Actors = append(state.Actors, encoded)
	}
	data, err := fvm.EncodeCBOR(state)
	if err != nil {
		return cid.Undef, err
	}
	return blockstore.PutBlock(store, data)
}

func notFound(err error) error {
	if err == nil {
		return blockstore.ErrNotFound
	}
	if errors.Is(err, blockstore.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", blockstore.ErrNotFound, err)
}
