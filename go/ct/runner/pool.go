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
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
)

// DefaultProgressInterval is the default period of progress reports.
const DefaultProgressInterval = 5 * time.Second

// PoolConfig configures the parallel processing of a work list.
type PoolConfig struct {
	// Jobs is the number of workers, defaulting to the number of CPUs.
	Jobs int
	// FailFast stops the dispatch of new pairs after the first failing or
	// fatal verdict. Pairs in flight are completed.
	FailFast bool
	// Progress, if set, is called periodically with the time passed since
	// the start, the recent processing rate, and the number of completed
	// pairs.
	Progress func(elapsed time.Duration, rate float64, done int64)
	// ProgressInterval defaults to DefaultProgressInterval.
	ProgressInterval time.Duration
}

// ForEach runs the given function for every selection using a fixed-size
// pool of workers and returns the verdicts in work list order. Once the
// run is aborted, either by the context or in fail-fast mode, no further
// pairs are dispatched; those pairs are reported as skipped.
func ForEach(
	ctx context.Context,
	work []selection.Selection,
	config PoolConfig,
	run func(context.Context, selection.Selection) verify.Verdict,
) []verify.Verdict {
	numJobs := config.Jobs
	if numJobs <= 0 {
		numJobs = runtime.NumCPU()
	}

	var counter atomic.Int64
	var abort atomic.Bool

	// Start the progress printer.
	done := make(chan bool)
	printerDone := make(chan bool)
	go func() {
		defer close(printerDone)
		if config.Progress == nil {
			return
		}
		interval := config.ProgressInterval
		if interval <= 0 {
			interval = DefaultProgressInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		startTime := time.Now()
		lastTime := startTime
		lastCounter := int64(0)
		for {
			select {
			case <-done:
				return
			case curTime := <-ticker.C:
				cur := counter.Load()
				rate := float64(cur-lastCounter) / curTime.Sub(lastTime).Seconds()
				lastTime = curTime
				lastCounter = cur
				config.Progress(curTime.Sub(startTime), rate, cur)
			}
		}
	}()

	// Run workers; every verdict is written by exactly one worker.
	verdicts := make([]verify.Verdict, len(work))
	dispatched := make([]bool, len(work))
	var workers sync.WaitGroup
	workers.Add(numJobs)
	jobs := make(chan int)
	for i := 0; i < numJobs; i++ {
		go func() {
			defer workers.Done()
			for pos := range jobs {
				if abort.Load() || ctx.Err() != nil {
					continue
				}
				dispatched[pos] = true
				verdict := run(ctx, work[pos])
				verdicts[pos] = verdict
				counter.Add(1)
				if config.FailFast && verdict.Outcome.IsFailure() {
					abort.Store(true)
				}
			}
		}()
	}

	// Feed the workers until everything is dispatched or the run is aborted.
	for pos := range work {
		if abort.Load() || ctx.Err() != nil {
			break
		}
		jobs <- pos
	}
	close(jobs)
	workers.Wait()

	close(done)   // < signals progress printer to stop
	<-printerDone // < blocks until channel is closed by progress printer

	for pos, sel := range work {
		if !dispatched[pos] {
			verdicts[pos] = verify.Verdict{
				Index:    sel.Index,
				VectorID: sel.Vector.ID,
				Variant:  sel.Variant.ID,
				Outcome:  verify.Skipped,
				Reason:   ReasonAborted,
			}
		}
	}
	return verdicts
}
