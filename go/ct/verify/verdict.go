// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package verify

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies the result of running a (vector, variant) pair.
type Outcome int

const (
	// Pass indicates that all expectations were met.
	Pass Outcome = iota
	// Fail indicates an expectation mismatch or an error preventing the
	// vector from being checked, e.g. a corrupt archive or a timeout.
	Fail
	// Skipped indicates that the pair was not executed.
	Skipped
	// Fatal indicates an unrecoverable fault of the machine.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Skipped:
		return "skipped"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(data []byte) error {
	for _, cur := range []Outcome{Pass, Fail, Skipped, Fatal} {
		if cur.String() == strings.ToLower(string(data)) {
			*o = cur
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", data)
}

// IsFailure is true for outcomes making a run unsuccessful.
func (o Outcome) IsFailure() bool {
	return o == Fail || o == Fatal
}

// RootIndex is the message index reported for mismatches of the final
// state root and other vector-level properties.
const RootIndex = -1

// Mismatch describes the first observed divergence between expected and
// actual results.
type Mismatch struct {
	Field        string `json:"field"`
	Expected     string `json:"expected"`
	Actual       string `json:"actual"`
	MessageIndex int    `json:"message_index"`
}

func (m Mismatch) String() string {
	if m.MessageIndex == RootIndex {
		return fmt.Sprintf("%s mismatch: expected %s, actual %s", m.Field, m.Expected, m.Actual)
	}
	return fmt.Sprintf("%s mismatch in message %d: expected %s, actual %s", m.Field, m.MessageIndex, m.Expected, m.Actual)
}

// Verdict is the immutable result of running a single (vector, variant)
// pair.
type Verdict struct {
	Index    int           `json:"index"`
	VectorID string        `json:"vector"`
	Variant  string        `json:"variant"`
	Outcome  Outcome       `json:"outcome"`
	Mismatch *Mismatch     `json:"mismatch,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Notes    []string      `json:"notes,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

func (v Verdict) String() string {
	res := fmt.Sprintf("%s/%s: %v", v.VectorID, v.Variant, v.Outcome)
	if v.Reason != "" {
		res += " (" + v.Reason + ")"
	}
	return res
}
