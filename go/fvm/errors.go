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

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// ErrFatal is reported whenever a machine signals an unrecoverable fault,
// e.g. the violation of an internal invariant. It is distinct from failing
// receipts, which are a regular outcome of a message application.
const ErrFatal = ConstError("fatal machine fault")
