// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package runner

import (
	"context"
	"fmt"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/log"
)

// Record executes the messages of a vector under the given variant and
// returns a copy of the vector expecting exactly the observed receipts and
// final state root. Replaying the result on the same engine passes. The
// archive is kept since only the precondition state is needed for replay.
func Record(
	ctx context.Context,
	engine fvm.Engine,
	v *vector.Vector,
	variant vector.Variant,
	opts Options,
) (*vector.Vector, error) {
	snapshot, err := v.OpenStore(opts.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive of %s: %w", v.ID, err)
	}

	overlay := blockstore.NewOverlay(snapshot.Store)
	result, err := executeWithTimeout(ctx, engine, v, variant, overlay, opts.Timeout, closer(v, snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s/%s: %w", v.ID, variant.ID, err)
	}
	log.Debug("Recorded vector", "vector", v.ID, "variant", variant.ID,
		"receipts", len(result.Receipts), "root", result.Root, "blocks", overlay.Writes().Len())

	post := vector.Postconditions{
		StateRoot:     result.Root,
		Receipts:      result.Receipts,
		ReceiptsRoots: v.Postconditions.ReceiptsRoots,
	}
	return v.WithPostconditions(post, v.Archive), nil
}
