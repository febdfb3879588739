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

import "github.com/Fantom-foundation/fvm-conformance/go/fvm"

// PriceList defines the gas charged for the operations of the ledger.
type PriceList struct {
	OnChainMessageBase    fvm.Gas // charged for every included message
	OnChainMessagePerByte fvm.Gas // per byte of the encoded message
	MethodBase            fvm.Gas // charged for every method invocation
	ActorCreation         fvm.Gas // creating a new account on first transfer
	TransferBase          fvm.Gas // moving a non-zero value
	StorageBase           fvm.Gas // storing a block
	StoragePerByte        fvm.Gas // per byte of a stored block
	HashBase              fvm.Gas // starting a hash computation
	HashPerByte           fvm.Gas // per byte of hashed input
	HashPerRound          fvm.Gas // per hashing round
}

// NetworkVersionRepricing is the first network version using the revised
// price list.
const NetworkVersionRepricing fvm.NetworkVersion = 21

var priceListV1 = PriceList{
	OnChainMessageBase:    38863,
	OnChainMessagePerByte: 16,
	MethodBase:            1000,
	ActorCreation:         650000,
	TransferBase:          6000,
	StorageBase:           2000,
	StoragePerByte:        1300,
	HashBase:              31355,
	HashPerByte:           3,
	HashPerRound:          2400,
}

var priceListV2 = PriceList{
	OnChainMessageBase:    38863,
	OnChainMessagePerByte: 16,
	MethodBase:            1200,
	ActorCreation:         650000,
	TransferBase:          6000,
	StorageBase:           2500,
	StoragePerByte:        1500,
	HashBase:              31355,
	HashPerByte:           3,
	HashPerRound:          2000,
}

// PricesFor obtains the price list in effect for the given network version.
func PricesFor(version fvm.NetworkVersion) PriceList {
	if version < NetworkVersionRepricing {
		return priceListV1
	}
	return priceListV2
}

const errOutOfGas = fvm.ConstError("out of gas")

// gasMeter tracks the gas consumed by a single message.
type gasMeter struct {
	limit fvm.Gas
	used  fvm.Gas
}

func (m *gasMeter) charge(amount fvm.Gas) error {
	if amount < 0 || m.limit-m.used < amount {
		m.used = m.limit
		return errOutOfGas
	}
	m.used += amount
	return nil
}
