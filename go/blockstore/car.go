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
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"
)

const (
	carVersion = 1

	// maxHeaderSize bounds the size of an archive header.
	maxHeaderSize = 1 << 20
	// maxSectionSize bounds the size of a single block section.
	maxSectionSize = 32 << 20
	// maxCidSize bounds the number of bytes inspected to parse a block id.
	maxCidSize = 128

	// cborTagCid is the DAG-CBOR tag marking links.
	cborTagCid = 42
)

type carHeader struct {
	Roots   []cbor.Tag `cbor:"roots"`
	Version uint64     `cbor:"version"`
}

// LoadCAR reads a CARv1 archive, verifies every contained block, and adds
// all blocks to the given destination. The roots listed in the archive
// header are returned.
func LoadCAR(r io.Reader, dst Putter) ([]cid.Cid, error) {
	return LoadCARFiltered(r, nil, dst)
}

// LoadCARFiltered is like LoadCAR but retains only blocks accepted by the
// given filter. Rejected blocks are skipped without being buffered. A nil
// filter accepts all blocks.
func LoadCARFiltered(r io.Reader, want func(cid.Cid) bool, dst Putter) ([]cid.Cid, error) {
	reader := newCarReader(r)
	roots, err := reader.readHeader()
	if err != nil {
		return nil, err
	}
	for {
		section, err := reader.nextSection()
		if errors.Is(err, io.EOF) {
			return roots, nil
		}
		if err != nil {
			return nil, err
		}
		if want != nil && !want(section.id) {
			if err := reader.skip(section.dataLength); err != nil {
				return nil, err
			}
			continue
		}
		data, err := reader.read(section.dataLength)
		if err != nil {
			return nil, err
		}
		if err := dst.Put(section.id, data); err != nil {
			return nil, fmt.Errorf("failed to load block %d: %w", section.number, err)
		}
	}
}

// Block is a single entry of an archive.
type Block struct {
	Id   cid.Cid
	Data []byte
}

// WriteCAR writes a CARv1 archive with the given roots and blocks. Blocks
// are written in the given order.
func WriteCAR(w io.Writer, roots []cid.Cid, blocks []Block) error {
	header, err := encodeCarHeader(roots)
	if err != nil {
		return err
	}
	out := bufio.NewWriter(w)
	if err := writeSection(out, header); err != nil {
		return err
	}
	for _, block := range blocks {
		if err := Verify(block.Id, block.Data); err != nil {
			return err
		}
		if err := writeSection(out, block.Id.Bytes(), block.Data); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteStoreCAR writes all blocks of the given store as an archive.
func WriteStoreCAR(w io.Writer, roots []cid.Cid, store *MemoryStore) error {
	keys := store.Keys()
	blocks := make([]Block, 0, len(keys))
	for _, id := range keys {
		data, err := store.Get(id)
		if err != nil {
			return err
		}
		blocks = append(blocks, Block{Id: id, Data: data})
	}
	return WriteCAR(w, roots, blocks)
}

func writeSection(w *bufio.Writer, parts ...[]byte) error {
	length := 0
	for _, part := range parts {
		length += len(part)
	}
	if _, err := w.Write(varint.ToUvarint(uint64(length))); err != nil {
		return err
	}
	for _, part := range parts {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

func encodeCarHeader(roots []cid.Cid) ([]byte, error) {
	header := carHeader{
		Roots:   make([]cbor.Tag, 0, len(roots)),
		Version: carVersion,
	}
	for _, root := range roots {
		header.Roots = append(header.Roots, cbor.Tag{
			Number:  cborTagCid,
			Content: append([]byte{0}, root.Bytes()...),
		})
	}
	return deterministic.Marshal(header)
}

func decodeCarHeader(data []byte) ([]cid.Cid, error) {
	var header carHeader
	if err := cbor.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: invalid header: %v", ErrCorruptArchive, err)
	}
	if header.Version != carVersion {
		return nil, fmt.Errorf("%w: unsupported archive version %d", ErrCorruptArchive, header.Version)
	}
	roots := make([]cid.Cid, 0, len(header.Roots))
	for i, tag := range header.Roots {
		content, ok := tag.Content.([]byte)
		if tag.Number != cborTagCid || !ok || len(content) == 0 || content[0] != 0 {
			return nil, fmt.Errorf("%w: invalid root link %d", ErrCorruptArchive, i)
		}
		root, err := cid.Cast(content[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid root %d: %v", ErrCorruptArchive, i, err)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

var deterministic = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// carReader parses the section framing of an archive while tracking the
// absolute offset of every section.
type carReader struct {
	in       *bufio.Reader
	offset   int64
	sections int
}

type carSection struct {
	number     int
	id         cid.Cid
	dataOffset int64
	dataLength int64
}

func newCarReader(r io.Reader) *carReader {
	return &carReader{in: bufio.NewReaderSize(r, 64<<10)}
}

func (r *carReader) readHeader() ([]cid.Cid, error) {
	length, err := r.readLength()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty archive", ErrCorruptArchive)
		}
		return nil, err
	}
	if length == 0 || length > maxHeaderSize {
		return nil, fmt.Errorf("%w: invalid header length %d", ErrCorruptArchive, length)
	}
	data, err := r.read(int64(length))
	if err != nil {
		return nil, err
	}
	return decodeCarHeader(data)
}

// nextSection parses the framing and block id of the next section. The
// reader is left positioned at the start of the block payload. io.EOF is
// returned if the archive ends cleanly.
func (r *carReader) nextSection() (carSection, error) {
	length, err := r.readLength()
	if err != nil {
		return carSection{}, err
	}
	if length == 0 || length > maxSectionSize {
		return carSection{}, fmt.Errorf("%w: invalid section length %d at offset %d", ErrCorruptArchive, length, r.offset)
	}
	peek, err := r.in.Peek(int(min(length, maxCidSize)))
	if err != nil && len(peek) == 0 {
		return carSection{}, fmt.Errorf("%w: truncated section at offset %d", ErrCorruptArchive, r.offset)
	}
	idLength, id, err := cid.CidFromBytes(peek)
	if err != nil {
		return carSection{}, fmt.Errorf("%w: invalid block id at offset %d: %v", ErrCorruptArchive, r.offset, err)
	}
	if err := r.skip(int64(idLength)); err != nil {
		return carSection{}, err
	}
	r.sections++
	return carSection{
		number:     r.sections,
		id:         id,
		dataOffset: r.offset,
		dataLength: int64(length) - int64(idLength),
	}, nil
}

func (r *carReader) readLength() (uint64, error) {
	length, err := varint.ReadUvarint(r.in)
	if errors.Is(err, io.EOF) {
		return 0, io.EOF
	}
	if err != nil {
		return 0, fmt.Errorf("%w: invalid section length at offset %d: %v", ErrCorruptArchive, r.offset, err)
	}
	r.offset += int64(varint.UvarintSize(length))
	return length, nil
}

func (r *carReader) read(length int64) ([]byte, error) {
	data := make([]byte, length)
	if _, err := io.ReadFull(r.in, data); err != nil {
		return nil, fmt.Errorf("%w: truncated section at offset %d: %v", ErrCorruptArchive, r.offset, err)
	}
	r.offset += length
	return data, nil
}

func (r *carReader) skip(length int64) error {
	if _, err := r.in.Discard(int(length)); err != nil {
		return fmt.Errorf("%w: truncated section at offset %d: %v", ErrCorruptArchive, r.offset, err)
	}
	r.offset += length
	return nil
}
