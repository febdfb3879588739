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
	"encoding/base64"
	"encoding/json"
)

// Encode produces the manifest of the given vector. Decoding the result
// yields a vector equal to the input; unrecognized fields retained while
// decoding are emitted unchanged.
func Encode(v *Vector) ([]byte, error) {
	fields := make(map[string]any, len(v.Extra)+len(knownFields))
	for name, value := range v.Extra {
		fields[name] = value
	}

	fields[fieldClass] = v.Class
	fields[fieldFormatVersion] = FormatVersion
	fields[fieldMeta] = jsonMeta{
		ID:          v.ID,
		Description: v.Description,
		Comment:     v.Comment,
	}
	if len(v.Tags) > 0 {
		fields[fieldSelector] = v.Tags
	}
	if v.Archive.Ref != "" {
		fields[fieldCarRef] = v.Archive.Ref
	} else {
		fields[fieldCar] = base64.StdEncoding.EncodeToString(v.Archive.Inline)
	}
	if v.GasTolerance != 0 {
		fields[fieldGasTolerance] = v.GasTolerance
	}
	if v.PostconditionExempt {
		fields[fieldPostconditionExempt] = true
	}

	root := v.Preconditions.StateRoot
	pre := jsonPreconditions{
		StateTree:  &jsonStateTree{RootCid: &root},
		Epoch:      v.Preconditions.Epoch,
		Timestamp:  v.Preconditions.Timestamp,
		BaseFee:    v.Preconditions.BaseFee,
		CircSupply: v.Preconditions.CircSupply,
		Randomness: v.Preconditions.Randomness,
	}
	for _, variant := range v.Variants {
		pre.Variants = append(pre.Variants, encodeVariant(variant))
	}
	fields[fieldPreconditions] = pre

	messages := make([]jsonMessage, 0, len(v.Messages))
	for _, msg := range v.Messages {
		messages = append(messages, jsonMessage{
			Bytes:       base64.StdEncoding.EncodeToString(msg.Bytes),
			EpochOffset: msg.EpochOffset,
		})
	}
	fields[fieldApplyMessages] = messages

	post := jsonPostconditions{
		ReceiptsRoots: v.Postconditions.ReceiptsRoots,
		Receipts:      make([]jsonReceipt, 0, len(v.Postconditions.Receipts)),
	}
	if v.Postconditions.StateRoot.Defined() {
		root := v.Postconditions.StateRoot
		post.StateTree = &jsonStateTree{RootCid: &root}
	}
	for _, receipt := range v.Postconditions.Receipts {
		post.Receipts = append(post.Receipts, jsonReceipt{
			ExitCode: receipt.ExitCode,
			Return:   receipt.Return,
			GasUsed:  receipt.GasUsed,
		})
	}
	fields[fieldPostconditions] = post

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var res bytes.Buffer
	if err := json.Indent(&res, data, "", "  "); err != nil {
		return nil, err
	}
	res.WriteByte('\n')
	return res.Bytes(), nil
}

func encodeVariant(variant Variant) jsonVariant {
	res := jsonVariant{
		ID:             variant.ID,
		NetworkVersion: variant.NetworkVersion,
		Epoch:          &variant.Epoch,
		Timestamp:      &variant.Timestamp,
		BaseFee:        &variant.BaseFee,
		CircSupply:     &variant.CircSupply,
		Requires:       variant.Requires,
	}
	if variant.ActorBundle.Defined() {
		res.ActorBundle = &variant.ActorBundle
	}
	return res
}
