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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
	"github.com/multiformats/go-varint"
)

// Gas is a metered unit of computational cost charged by a machine.
type Gas int64

// ChainEpoch is the height of a tipset in the chain.
type ChainEpoch int64

// NetworkVersion identifies the protocol upgrade a machine is running.
type NetworkVersion uint32

// MethodNum identifies the actor method invoked by a message.
type MethodNum uint64

// ExitCode is the outcome code of a message application. Codes below
// FirstActorErrorCode are reserved for the system, codes below
// FirstUserExitCode are common actor errors.
type ExitCode int64

const (
	Ok                       ExitCode = 0
	SysErrSenderInvalid      ExitCode = 1
	SysErrSenderStateInvalid ExitCode = 2
	SysErrIllegalInstruction ExitCode = 4
	SysErrInvalidReceiver    ExitCode = 5
	SysErrInsufficientFunds  ExitCode = 6
	SysErrOutOfGas           ExitCode = 7
	SysErrIllegalExitCode    ExitCode = 9
	SysErrReserved1          ExitCode = 10
	SysErrMissingReturn      ExitCode = 11

	FirstActorErrorCode  ExitCode = 16
	ErrIllegalArgument   ExitCode = 16
	ErrNotFound          ExitCode = 17
	ErrForbidden         ExitCode = 18
	ErrInsufficientFunds ExitCode = 19
	ErrIllegalState      ExitCode = 20
	ErrSerialization     ExitCode = 21
	ErrUnhandledMessage  ExitCode = 22
	ErrUnspecified       ExitCode = 23
	ErrAssertionFailed   ExitCode = 24

	FirstUserExitCode ExitCode = 32
)

func (c ExitCode) IsSuccess() bool {
	return c == Ok
}

func (c ExitCode) IsSystemError() bool {
	return c > Ok && c < FirstActorErrorCode
}

func (c ExitCode) String() string {
	switch c {
	case Ok:
		return "Ok"
	case SysErrSenderInvalid:
		return "SysErrSenderInvalid"
	case SysErrSenderStateInvalid:
		return "SysErrSenderStateInvalid"
	case SysErrIllegalInstruction:
		return "SysErrIllegalInstruction"
	case SysErrInvalidReceiver:
		return "SysErrInvalidReceiver"
	case SysErrInsufficientFunds:
		return "SysErrInsufficientFunds"
	case SysErrOutOfGas:
		return "SysErrOutOfGas"
	case SysErrIllegalExitCode:
		return "SysErrIllegalExitCode"
	case SysErrReserved1:
		return "SysErrReserved1"
	case SysErrMissingReturn:
		return "SysErrMissingReturn"
	case ErrIllegalArgument:
		return "ErrIllegalArgument"
	case ErrNotFound:
		return "ErrNotFound"
	case ErrForbidden:
		return "ErrForbidden"
	case ErrInsufficientFunds:
		return "ErrInsufficientFunds"
	case ErrIllegalState:
		return "ErrIllegalState"
	case ErrSerialization:
		return "ErrSerialization"
	case ErrUnhandledMessage:
		return "ErrUnhandledMessage"
	case ErrUnspecified:
		return "ErrUnspecified"
	case ErrAssertionFailed:
		return "ErrAssertionFailed"
	}
	return fmt.Sprintf("ExitCode(%d)", int64(c))
}

// ----------------------------------------------------------------------------

// TokenAmount is an amount of network currency in its smallest unit (atto).
// Negative amounts are not supported.
type TokenAmount struct {
	value uint256.Int
}

func NewTokenAmount(value uint64) TokenAmount {
	res := TokenAmount{}
	res.value.SetUint64(value)
	return res
}

// ParseTokenAmount parses a decimal representation of a token amount.
func ParseTokenAmount(s string) (TokenAmount, error) {
	value, err := uint256.FromDecimal(s)
	if err != nil {
		return TokenAmount{}, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	return TokenAmount{value: *value}, nil
}

func (a TokenAmount) Uint256() *uint256.Int {
	res := a.value
	return &res
}

func (a TokenAmount) IsZero() bool {
	return a.value.IsZero()
}

func (a TokenAmount) Cmp(o TokenAmount) int {
	return a.value.Cmp(&o.value)
}

func (a TokenAmount) Add(o TokenAmount) (TokenAmount, bool) {
	res := TokenAmount{}
	_, overflow := res.value.AddOverflow(&a.value, &o.value)
	return res, !overflow
}

// Sub returns a - o and false if the result would be negative.
func (a TokenAmount) Sub(o TokenAmount) (TokenAmount, bool) {
	res := TokenAmount{}
	_, underflow := res.value.SubOverflow(&a.value, &o.value)
	return res, !underflow
}

// MulGas computes the fee of burning the given amount of gas at this price.
func (a TokenAmount) MulGas(gas Gas) TokenAmount {
	if gas <= 0 {
		return TokenAmount{}
	}
	res := TokenAmount{}
	res.value.Mul(&a.value, uint256.NewInt(uint64(gas)))
	return res
}

func (a TokenAmount) String() string {
	return a.value.Dec()
}

func (a TokenAmount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *TokenAmount) UnmarshalText(data []byte) error {
	res, err := ParseTokenAmount(string(data))
	if err != nil {
		return err
	}
	*a = res
	return nil
}

// MarshalCBOR encodes the amount as a big integer byte string: empty for
// zero, otherwise a sign byte followed by the big-endian magnitude.
func (a TokenAmount) MarshalCBOR() ([]byte, error) {
	if a.value.IsZero() {
		return cbor.Marshal([]byte{})
	}
	return cbor.Marshal(append([]byte{0}, a.value.Bytes()...))
}

func (a *TokenAmount) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		*a = TokenAmount{}
		return nil
	}
	if raw[0] != 0 {
		return fmt.Errorf("unsupported token amount sign byte %d", raw[0])
	}
	if len(raw) > 33 {
		return fmt.Errorf("token amount exceeds 256 bits")
	}
	a.value.SetBytes(raw[1:])
	return nil
}

// ----------------------------------------------------------------------------

// Address identifies an actor. The binary form is a protocol byte followed
// by a protocol specific payload. Only ID addresses (protocol 0) are
// interpreted, all others are handled as opaque byte strings.
type Address struct {
	raw string
}

const idAddressProtocol = 0

func NewIDAddress(id uint64) Address {
	return Address{raw: string(append([]byte{idAddressProtocol}, varint.ToUvarint(id)...))}
}

// NewAddressFromBytes wraps the binary form of an address.
func NewAddressFromBytes(data []byte) (Address, error) {
	if len(data) == 0 {
		return Address{}, fmt.Errorf("empty address")
	}
	if data[0] == idAddressProtocol {
		if _, _, err := varint.FromUvarint(data[1:]); err != nil {
			return Address{}, fmt.Errorf("invalid id address payload: %w", err)
		}
	}
	return Address{raw: string(data)}, nil
}

// ParseAddress parses the text form produced by String.
func ParseAddress(s string) (Address, error) {
	if id, found := strings.CutPrefix(s, "f0"); found {
		value, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return Address{}, fmt.Errorf("invalid id address %q: %w", s, err)
		}
		return NewIDAddress(value), nil
	}
	if payload, found := strings.CutPrefix(s, "0x"); found {
		data, err := hex.DecodeString(payload)
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
		}
		return NewAddressFromBytes(data)
	}
	return Address{}, fmt.Errorf("unsupported address format %q", s)
}

func (a Address) Bytes() []byte {
	return []byte(a.raw)
}

func (a Address) Empty() bool {
	return len(a.raw) == 0
}

// ID returns the actor ID of an ID address.
func (a Address) ID() (uint64, bool) {
	if len(a.raw) < 2 || a.raw[0] != idAddressProtocol {
		return 0, false
	}
	id, _, err := varint.FromUvarint([]byte(a.raw[1:]))
	if err != nil {
		return 0, false
	}
	return id, true
}

func (a Address) Equal(o Address) bool {
	return a.raw == o.raw
}

func (a Address) String() string {
	if id, ok := a.ID(); ok {
		return fmt.Sprintf("f0%d", id)
	}
	return fmt.Sprintf("0x%x", a.raw)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(data []byte) error {
	res, err := ParseAddress(string(data))
	if err != nil {
		return err
	}
	*a = res
	return nil
}

func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]byte(a.raw))
}

func (a *Address) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		*a = Address{}
		return nil
	}
	res, err := NewAddressFromBytes(raw)
	if err != nil {
		return err
	}
	*a = res
	return nil
}
