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
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is an on-disk block store for snapshots too large to be kept
// in memory. Keys are the binary forms of block identifiers.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates a block store in the given directory.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		BlockCacheCapacity: 64 * opt.MiB,
		WriteBuffer:        32 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open block store at %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(id cid.Cid) ([]byte, error) {
	data, err := s.db.Get(id.Bytes(), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return data, err
}

func (s *LevelDBStore) Has(id cid.Cid) (bool, error) {
	return s.db.Has(id.Bytes(), nil)
}

func (s *LevelDBStore) Put(id cid.Cid, data []byte) error {
	if err := Verify(id, data); err != nil {
		return err
	}
	return s.db.Put(id.Bytes(), data, nil)
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
