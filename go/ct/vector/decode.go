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
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"golang.org/x/exp/maps"
)

// Decode parses a vector manifest. Decoding does not access any archive
// referenced by the manifest.
func Decode(manifest []byte) (*Vector, error) {
	return decode(manifest, true)
}

// DecodeTemplate parses a manifest whose expectations are yet to be
// recorded. Unlike Decode, postconditions may be missing.
func DecodeTemplate(manifest []byte) (*Vector, error) {
	return decode(manifest, false)
}

func decode(manifest []byte, requirePostconditions bool) (*Vector, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(manifest, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: manifest is not an object", ErrMalformedVector)
	}

	version, err := decodeFormatVersion(fields[fieldFormatVersion])
	if err != nil {
		return nil, err
	}
	res := &Vector{FormatVersion: version}

	if err := decodeField(fields, fieldClass, &res.Class, true); err != nil {
		return nil, err
	}
	if res.Class != ClassMessage {
		return nil, fmt.Errorf("%w: unsupported class %q", ErrMalformedVector, res.Class)
	}

	var meta jsonMeta
	if err := decodeField(fields, fieldMeta, &meta, true); err != nil {
		return nil, err
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("%w: missing vector id", ErrMalformedVector)
	}
	res.ID = meta.ID
	res.Description = meta.Description
	res.Comment = meta.Comment

	if res.Tags, err = decodeSelector(fields[fieldSelector]); err != nil {
		return nil, err
	}
	if res.Archive, err = decodeArchive(fields); err != nil {
		return nil, err
	}

	var pre jsonPreconditions
	if err := decodeField(fields, fieldPreconditions, &pre, true); err != nil {
		return nil, err
	}
	if res.Preconditions, res.Variants, err = convertPreconditions(pre); err != nil {
		return nil, err
	}

	var messages []jsonMessage
	if err := decodeField(fields, fieldApplyMessages, &messages, false); err != nil {
		return nil, err
	}
	if res.Messages, err = convertMessages(messages); err != nil {
		return nil, err
	}

	if err := decodeField(fields, fieldGasTolerance, &res.GasTolerance, false); err != nil {
		return nil, err
	}
	if res.GasTolerance < 0 {
		return nil, fmt.Errorf("%w: negative gas tolerance %d", ErrMalformedVector, res.GasTolerance)
	}
	if err := decodeField(fields, fieldPostconditionExempt, &res.PostconditionExempt, false); err != nil {
		return nil, err
	}

	var post *jsonPostconditions
	if err := decodeField(fields, fieldPostconditions, &post, requirePostconditions); err != nil {
		return nil, err
	}
	if post == nil && requirePostconditions {
		return nil, fmt.Errorf("%w: missing field %s", ErrMalformedVector, fieldPostconditions)
	}
	if post != nil {
		if res.Postconditions, err = convertPostconditions(*post, res.PostconditionExempt); err != nil {
			return nil, err
		}
	}

	for name, value := range fields {
		if knownFields[name] {
			continue
		}
		if res.Extra == nil {
			res.Extra = map[string]json.RawMessage{}
		}
		res.Extra[name] = compact(value)
	}
	return res, nil
}

// LoadFile reads and decodes the vector stored in the given file.
func LoadFile(path string) (*Vector, error) {
	return loadFile(path, Decode)
}

// LoadTemplateFile reads a vector template using DecodeTemplate.
func LoadTemplateFile(path string) (*Vector, error) {
	return loadFile(path, DecodeTemplate)
}

func loadFile(path string, decode func([]byte) (*Vector, error)) (*Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Path = path
	return res, nil
}

func decodeFormatVersion(data json.RawMessage) (int, error) {
	if data == nil {
		return 0, fmt.Errorf("%w: missing format version", ErrUnsupportedFormatVersion)
	}
	version, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid format version %s", ErrUnsupportedFormatVersion, data)
	}
	if version != FormatVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFormatVersion, version)
	}
	return version, nil
}

func decodeField(fields map[string]json.RawMessage, name string, target any, required bool) error {
	data, found := fields[name]
	if !found || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		if required {
			return fmt.Errorf("%w: missing field %s", ErrMalformedVector, name)
		}
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: invalid field %s: %v", ErrMalformedVector, name, err)
	}
	return nil
}

// decodeSelector accepts either a list of tags or the legacy object form,
// in which {"k":"true"} denotes tag k and {"k":"v"} denotes tag k=v.
func decodeSelector(data json.RawMessage) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	tags := map[string]bool{}
	switch data[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: invalid selector: %v", ErrMalformedVector, err)
		}
		for _, tag := range list {
			tags[tag] = true
		}
	case '{':
		var object map[string]string
		if err := json.Unmarshal(data, &object); err != nil {
			return nil, fmt.Errorf("%w: invalid selector: %v", ErrMalformedVector, err)
		}
		for key, value := range object {
			if value == "true" {
				tags[key] = true
			} else {
				tags[key+"="+value] = true
			}
		}
	default:
		return nil, fmt.Errorf("%w: selector must be a list or an object", ErrMalformedVector)
	}
	for tag := range tags {
		if tag == "" {
			return nil, fmt.Errorf("%w: empty selector tag", ErrMalformedVector)
		}
	}
	res := maps.Keys(tags)
	sort.Strings(res)
	return res, nil
}

func decodeArchive(fields map[string]json.RawMessage) (Archive, error) {
	var inline, ref string
	if err := decodeField(fields, fieldCar, &inline, false); err != nil {
		return Archive{}, err
	}
	if err := decodeField(fields, fieldCarRef, &ref, false); err != nil {
		return Archive{}, err
	}
	switch {
	case inline == "" && ref == "":
		return Archive{}, fmt.Errorf("%w: missing archive", ErrMalformedVector)
	case inline != "" && ref != "":
		return Archive{}, fmt.Errorf("%w: both inline and external archive given", ErrMalformedVector)
	case ref != "":
		return Archive{Ref: ref}, nil
	}
	data, err := base64.StdEncoding.DecodeString(inline)
	if err != nil {
		return Archive{}, fmt.Errorf("%w: invalid inline archive: %v", ErrMalformedVector, err)
	}
	return Archive{Inline: data}, nil
}

func convertPreconditions(pre jsonPreconditions) (Preconditions, []Variant, error) {
	if pre.StateTree == nil || pre.StateTree.RootCid == nil || !pre.StateTree.RootCid.Defined() {
		return Preconditions{}, nil, fmt.Errorf("%w: missing precondition state root", ErrMalformedVector)
	}
	res := Preconditions{
		StateRoot:  *pre.StateTree.RootCid,
		Epoch:      pre.Epoch,
		Timestamp:  pre.Timestamp,
		BaseFee:    pre.BaseFee,
		CircSupply: pre.CircSupply,
		Randomness: compact(pre.Randomness),
	}

	if len(pre.Variants) == 0 {
		return Preconditions{}, nil, fmt.Errorf("%w: empty variant list", ErrMalformedVector)
	}
	seen := map[string]bool{}
	variants := make([]Variant, 0, len(pre.Variants))
	for i, cur := range pre.Variants {
		if cur.ID == "" {
			return Preconditions{}, nil, fmt.Errorf("%w: variant %d has no id", ErrMalformedVector, i)
		}
		if seen[cur.ID] {
			return Preconditions{}, nil, fmt.Errorf("%w: duplicate variant %q", ErrMalformedVector, cur.ID)
		}
		seen[cur.ID] = true

		variant := Variant{
			ID:             cur.ID,
			NetworkVersion: cur.NetworkVersion,
			Epoch:          res.Epoch,
			Timestamp:      res.Timestamp,
			BaseFee:        res.BaseFee,
			CircSupply:     res.CircSupply,
			Requires:       cur.Requires,
		}
		if cur.Epoch != nil {
			variant.Epoch = *cur.Epoch
		}
		if cur.Timestamp != nil {
			variant.Timestamp = *cur.Timestamp
		}
		if cur.BaseFee != nil {
			variant.BaseFee = *cur.BaseFee
		}
		if cur.CircSupply != nil {
			variant.CircSupply = *cur.CircSupply
		}
		if cur.ActorBundle != nil {
			variant.ActorBundle = *cur.ActorBundle
		}
		variants = append(variants, variant)
	}
	return res, variants, nil
}

// convertMessages decodes the message list. If any message declares an
// index, all must do so; messages are then ordered by index.
func convertMessages(messages []jsonMessage) ([]fvm.Message, error) {
	indexed := 0
	for _, msg := range messages {
		if msg.Index != nil {
			indexed++
		}
	}
	if indexed != 0 && indexed != len(messages) {
		return nil, fmt.Errorf("%w: only %d of %d messages are indexed", ErrMalformedVector, indexed, len(messages))
	}

	type entry struct {
		index   int
		message fvm.Message
	}
	entries := make([]entry, 0, len(messages))
	seen := map[int]bool{}
	for i, msg := range messages {
		data, err := base64.StdEncoding.DecodeString(msg.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid encoding of message %d: %v", ErrMalformedVector, i, err)
		}
		index := i
		if msg.Index != nil {
			index = *msg.Index
			if seen[index] {
				return nil, fmt.Errorf("%w: duplicate message index %d", ErrMalformedVector, index)
			}
			seen[index] = true
		}
		entries = append(entries, entry{
			index:   index,
			message: fvm.Message{Bytes: data, EpochOffset: msg.EpochOffset},
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	res := make([]fvm.Message, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.message)
	}
	return res, nil
}

func convertPostconditions(post jsonPostconditions, exempt bool) (Postconditions, error) {
	res := Postconditions{
		ReceiptsRoots: compact(post.ReceiptsRoots),
		Receipts:      make([]fvm.Receipt, 0, len(post.Receipts)),
	}
	if post.StateTree != nil && post.StateTree.RootCid != nil {
		res.StateRoot = *post.StateTree.RootCid
	}
	if !res.StateRoot.Defined() && !exempt {
		return Postconditions{}, fmt.Errorf("%w: missing postcondition state root", ErrMalformedVector)
	}
	for _, receipt := range post.Receipts {
		res.Receipts = append(res.Receipts, fvm.Receipt{
			ExitCode: receipt.ExitCode,
			Return:   receipt.Return,
			GasUsed:  receipt.GasUsed,
		})
	}
	return res, nil
}

// compact normalizes retained raw JSON values such that they compare equal
// independent of the formatting of the manifest they were read from.
func compact(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var res bytes.Buffer
	if err := json.Compact(&res, data); err != nil {
		return bytes.Clone(data)
	}
	return res.Bytes()
}
