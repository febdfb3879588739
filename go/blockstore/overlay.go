// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package blockstore

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// Overlay is a copy-on-write view of a read-only base store. All writes are
// retained in the overlay, leaving the base untouched. Overlays are cheap to
// create and are used to give every execution its own private store derived
// from a shared snapshot.
type Overlay struct {
	base   Reader
	writes *MemoryStore
}

func NewOverlay(base Reader) *Overlay {
	return &Overlay{
		base:   base,
		writes: NewMemoryStore(),
	}
}

func (o *Overlay) Get(id cid.Cid) ([]byte, error) {
	data, err := o.writes.Get(id)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return o.base.Get(id)
}

func (o *Overlay) Has(id cid.Cid) (bool, error) {
	if found, _ := o.writes.Has(id); found {
		return true, nil
	}
	return o.base.Has(id)
}

func (o *Overlay) Put(id cid.Cid, data []byte) error {
	if found, err := o.base.Has(id); err == nil && found {
		return Verify(id, data)
	}
	return o.writes.Put(id, data)
}

// Writes provides a copy of the blocks added on top of the base store so
// far. Later writes to the overlay are not reflected in the result.
func (o *Overlay) Writes() *MemoryStore {
	return o.writes.Clone()
}
