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
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
)

// DefaultArchiveCacheSize is the number of blocks an Archive keeps cached.
const DefaultArchiveCacheSize = 4096

// Archive is a read-only store backed by an unpacked CARv1 archive. Opening
// an archive indexes the position of every block; payloads are read and
// verified on first access and retained in an LRU cache. An Archive is safe
// for concurrent use as long as the underlying reader is.
type Archive struct {
	source io.ReaderAt
	roots  []cid.Cid
	index  map[cid.Cid]location
	cache  *lru.Cache[cid.Cid, []byte]
}

type location struct {
	offset int64
	length int64
}

// OpenArchive indexes the archive provided by the given reader.
func OpenArchive(source io.ReaderAt, size int64, cacheSize int) (*Archive, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultArchiveCacheSize
	}
	cache, err := lru.New[cid.Cid, []byte](cacheSize)
	if err != nil {
		return nil, err
	}

	reader := newCarReader(io.NewSectionReader(source, 0, size))
	roots, err := reader.readHeader()
	if err != nil {
		return nil, err
	}
	index := map[cid.Cid]location{}
	for {
		section, err := reader.nextSection()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if section.dataOffset+section.dataLength > size {
			return nil, fmt.Errorf("%w: truncated section %d", ErrCorruptArchive, section.number)
		}
		if err := reader.skip(section.dataLength); err != nil {
			return nil, err
		}
		index[section.id] = location{offset: section.dataOffset, length: section.dataLength}
	}

	return &Archive{
		source: source,
		roots:  roots,
		index:  index,
		cache:  cache,
	}, nil
}

// Roots lists the roots declared in the archive header.
func (a *Archive) Roots() []cid.Cid {
	return a.roots
}

// Len is the number of blocks contained in the archive.
func (a *Archive) Len() int {
	return len(a.index)
}

func (a *Archive) Get(id cid.Cid) ([]byte, error) {
	if data, found := a.cache.Get(id); found {
		return bytes.Clone(data), nil
	}
	pos, found := a.index[id]
	if !found {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	data := make([]byte, pos.length)
	if _, err := a.source.ReadAt(data, pos.offset); err != nil {
		return nil, fmt.Errorf("%w: failed to read block %v: %v", ErrCorruptArchive, id, err)
	}
	if err := Verify(id, data); err != nil {
		return nil, err
	}
	a.cache.Add(id, data)
	return bytes.Clone(data), nil
}

func (a *Archive) Has(id cid.Cid) (bool, error) {
	_, found := a.index[id]
	return found, nil
}

func (a *Archive) Put(cid.Cid, []byte) error {
	return ErrReadOnly
}
