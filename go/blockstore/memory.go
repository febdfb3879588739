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
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemoryStore is an in-memory block store. It is safe for concurrent use.
type MemoryStore struct {
	blocks map[cid.Cid][]byte
	mu     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: map[cid.Cid][]byte{}}
}

func (s *MemoryStore) Get(id cid.Cid) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, found := s.blocks[id]
	if !found {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return bytes.Clone(data), nil
}

func (s *MemoryStore) Has(id cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.blocks[id]
	return found, nil
}

func (s *MemoryStore) Put(id cid.Cid, data []byte) error {
	if err := Verify(id, data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.blocks[id]; !found {
		s.blocks[id] = bytes.Clone(data)
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// Keys lists the identifiers of all contained blocks in a stable order.
func (s *MemoryStore) Keys() []cid.Cid {
	s.mu.RLock()
	res := make([]cid.Cid, 0, len(s.blocks))
	for id := range s.blocks {
		res = append(res, id)
	}
	s.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].KeyString() < res[j].KeyString() })
	return res
}

// Clone creates an independent copy of this store. Block payloads are
// immutable and thus shared.
func (s *MemoryStore) Clone() *MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[cid.Cid][]byte, len(s.blocks))
	for id, data := range s.blocks {
		res[id] = data
	}
	return &MemoryStore{blocks: res}
}
