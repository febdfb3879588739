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
	"fmt"

	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

const (
	// ErrCorruptArchive is reported if an archive can not be parsed or if
	// it lacks blocks it is required to contain.
	ErrCorruptArchive = fvm.ConstError("corrupt archive")
	// ErrHashMismatch is reported if the identifier of a block does not
	// match the hash of its payload.
	ErrHashMismatch = fvm.ConstError("block hash mismatch")
	// ErrNotFound is reported when accessing a block not present in a store.
	ErrNotFound = fvm.ConstError("block not found")
	// ErrReadOnly is reported when writing to a read-only store.
	ErrReadOnly = fvm.ConstError("store is read-only")
)

// Reader provides read access to content-addressed blocks.
type Reader interface {
	Get(cid.Cid) ([]byte, error)
	Has(cid.Cid) (bool, error)
}

// Putter accepts new blocks. Implementations verify that the identifier of
// a block matches its payload.
type Putter interface {
	Put(cid.Cid, []byte) error
}

// Blockstore is a readable and writable content-addressed store.
type Blockstore interface {
	Reader
	Putter
}

var _ fvm.Blockstore = Blockstore(nil)

// Builder is the CID builder used for all blocks created by this module:
// CIDv1, DAG-CBOR codec, BLAKE2b-256 multihash.
var Builder = cid.V1Builder{
	Codec:    cid.DagCBOR,
	MhType:   mh.BLAKE2B_MIN + 31,
	MhLength: -1,
}

// Sum computes the identifier of the given DAG-CBOR payload.
func Sum(data []byte) (cid.Cid, error) {
	return Builder.Sum(data)
}

// Verify checks that the given identifier matches the hash of the payload.
func Verify(id cid.Cid, data []byte) error {
	if !id.Defined() {
		return fmt.Errorf("%w: undefined identifier", ErrHashMismatch)
	}
	computed, err := id.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("%w: can not hash block %v: %v", ErrHashMismatch, id, err)
	}
	if !computed.Equals(id) {
		return fmt.Errorf("%w: block %v hashes to %v", ErrHashMismatch, id, computed)
	}
	return nil
}

// PutBlock hashes the given payload using the default builder, stores it, and
// returns the resulting identifier.
func PutBlock(store Putter, data []byte) (cid.Cid, error) {
	id, err := Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	return id, store.Put(id, data)
}
