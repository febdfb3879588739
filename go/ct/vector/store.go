// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package vector

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/gzip"
)

// StoreOptions control how the archive of a vector is turned into a store.
type StoreOptions struct {
	// BaseDir is the directory external archives are resolved against. If
	// empty, the directory of the manifest file is used.
	BaseDir string
	// DiskDir, if set, makes compressed archives be unpacked into an
	// on-disk store below this directory instead of memory.
	DiskDir string
	// CacheSize is the number of blocks cached for uncompressed external
	// archives, which are read lazily.
	CacheSize int
}

// Snapshot is the verified, read-only base store of a vector. Executions
// must not write to it directly but wrap it in an overlay.
type Snapshot struct {
	Store blockstore.Reader
	Roots []cid.Cid
	close func() error
}

// Close releases resources held by the snapshot.
func (s *Snapshot) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore loads the archive of the vector and checks that it contains the
// archive roots and the precondition state root.
func (v *Vector) OpenStore(opts StoreOptions) (*Snapshot, error) {
	snapshot, err := v.openArchive(opts)
	if err != nil {
		return nil, err
	}
	required := append([]cid.Cid{v.Preconditions.StateRoot}, snapshot.Roots...)
	for _, root := range required {
		found, err := snapshot.Store.Has(root)
		if err == nil && !found {
			err = fmt.Errorf("%w: missing root block %v", blockstore.ErrCorruptArchive, root)
		}
		if err != nil {
			snapshot.Close()
			return nil, err
		}
	}
	return snapshot, nil
}

func (v *Vector) openArchive(opts StoreOptions) (*Snapshot, error) {
	if v.Archive.Ref == "" {
		reader, err := gzip.NewReader(bytes.NewReader(v.Archive.Inline))
		if err != nil {
			return nil, fmt.Errorf("%w: inline archive: %v", blockstore.ErrCorruptArchive, err)
		}
		defer reader.Close()
		return v.unpack(reader, opts)
	}

	path := v.Archive.Ref
	if !filepath.IsAbs(path) {
		base := opts.BaseDir
		if base == "" && v.Path != "" {
			base = filepath.Dir(v.Path)
		}
		path = filepath.Join(base, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".gz") {
		defer file.Close()
		reader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", blockstore.ErrCorruptArchive, path, err)
		}
		defer reader.Close()
		return v.unpack(reader, opts)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	archive, err := blockstore.OpenArchive(file, info.Size(), opts.CacheSize)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug("Opened archive lazily", "vector", v.ID, "path", path, "blocks", archive.Len())
	return &Snapshot{Store: archive, Roots: archive.Roots(), close: file.Close}, nil
}

func (v *Vector) unpack(reader io.Reader, opts StoreOptions) (*Snapshot, error) {
	if opts.DiskDir == "" {
		store := blockstore.NewMemoryStore()
		roots, err := blockstore.LoadCAR(reader, store)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Store: store, Roots: roots}, nil
	}

	dir, err := os.MkdirTemp(opts.DiskDir, "snapshot-*")
	if err != nil {
		return nil, err
	}
	store, err := blockstore.OpenLevelDB(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	release := func() error {
		return errors.Join(store.Close(), os.RemoveAll(dir))
	}
	roots, err := blockstore.LoadCAR(reader, store)
	if err != nil {
		release()
		return nil, err
	}
	return &Snapshot{Store: store, Roots: roots, close: release}, nil
}

// InlineArchive packs the given blocks into a compressed archive suitable
// to be embedded into a manifest.
func InlineArchive(roots []cid.Cid, store *blockstore.MemoryStore) (Archive, error) {
	var buffer bytes.Buffer
	writer := gzip.NewWriter(&buffer)
	if err := blockstore.WriteStoreCAR(writer, roots, store); err != nil {
		return Archive{}, err
	}
	if err := writer.Close(); err != nil {
		return Archive{}, err
	}
	return Archive{Inline: buffer.Bytes()}, nil
}
