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
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Message is a pre-encoded, state-mutating operation as recorded in a test
// vector. The harness passes the encoded bytes to machines unchanged.
type Message struct {
	Bytes       []byte
	EpochOffset ChainEpoch
}

// Header decodes the message envelope. Machines and benchmark tooling use
// it to inspect sender, receiver, method and parameters.
func (m Message) Header() (MessageHeader, error) {
	return DecodeMessage(m.Bytes)
}

// MessageHeader is the decoded form of a message.
type MessageHeader struct {
	_          struct{} `cbor:",toarray"`
	Version    uint64
	To         Address
	From       Address
	Nonce      uint64
	Value      TokenAmount
	GasLimit   Gas
	GasFeeCap  TokenAmount
	GasPremium TokenAmount
	Method     MethodNum
	Params     []byte
}

// DecodeMessage parses the CBOR encoding of a message.
func DecodeMessage(data []byte) (MessageHeader, error) {
	var res MessageHeader
	if err := cbor.Unmarshal(data, &res); err != nil {
		return MessageHeader{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if res.Version != 0 {
		return MessageHeader{}, fmt.Errorf("unsupported message version %d", res.Version)
	}
	return res, nil
}

// Encode produces the canonical CBOR encoding of the message.
func (h MessageHeader) Encode() ([]byte, error) {
	return EncodeCBOR(h)
}

// EncodeCBOR encodes the given value using deterministic CBOR encoding
// rules, such that equal values always produce equal bytes.
func EncodeCBOR(value any) ([]byte, error) {
	return deterministicEncoding.Marshal(value)
}

var deterministicEncoding = func() cbor.EncMode {
	options := cbor.CoreDetEncOptions()
	options.NilContainers = cbor.NilContainerAsEmpty
	mode, err := options.EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR encoding options: %v", err))
	}
	return mode
}()
