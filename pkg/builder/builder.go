/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package builder implements the Background Builder: a cancellable,
// bounded worker pool that produces a cached overlay (Excel-merge result
// or generated font atlas) as a TTMP pack, with progress reporting.
package builder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sqpack-overlay/engine/pkg/errdefs"
	"github.com/sqpack-overlay/engine/pkg/metrics"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
	"github.com/sqpack-overlay/engine/pkg/ttmp"
)

// progressPumpInterval is the Progress UI poll/push cadence spec.md §4.7
// fixes at 100ms.
const progressPumpInterval = 100 * time.Millisecond

// Task is one unit of work: producing one entry's archive-encoded bytes.
type Task struct {
	PathSpec sqpack.PathSpec
	DatFile  string
	Produce  func(ctx context.Context) ([]byte, error)
}

// ProgressUI is the external collaborator spec.md §1/§4.7 calls out: it
// receives periodic progress updates and exposes a cancel event.
type ProgressUI interface {
	Update(done, total int)
	Cancelled() bool
}

// Result summarizes one Build call.
type Result struct {
	Completed int
	Failed    int
}

// DefaultConcurrency bounds the worker pool when a caller passes zero.
const DefaultConcurrency = 4

// Build runs tasks through a bounded errgroup worker pool, appending
// each successful result to a ttmp.Writer and committing it to outDir
// on completion. Per spec.md §4.7, a failed task is logged and skipped,
// and the build as a whole succeeds if at least one task succeeds;
// cancellation (detected via progress.Cancelled()) discards all partial
// output instead of committing it.
func Build(ctx context.Context, tasks []Task, concurrency int, progress ProgressUI, outDir string, logger logrus.FieldLogger) (Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "background-builder")

	writer := ttmp.NewWriter()
	var completed, failed int32

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		ticker := time.NewTicker(progressPumpInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				done := int(atomic.LoadInt32(&completed) + atomic.LoadInt32(&failed))
				progress.Update(done, len(tasks))
				metrics.BuilderProgressDone.Set(float64(done))
				metrics.BuilderProgressTotal.Set(float64(len(tasks)))
				if progress.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(concurrency)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if gctx.Err() != nil || progress.Cancelled() {
				return nil
			}

			payload, err := task.Produce(gctx)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				logger.WithError(err).WithField("path", task.PathSpec.OriginalPath).Warn("background builder: task failed, skipping")
				return nil
			}

			if gctx.Err() != nil || progress.Cancelled() {
				return nil
			}

			writer.Append(task.PathSpec.OriginalPath, task.DatFile, payload)
			atomic.AddInt32(&completed, 1)
			return nil
		})
	}

	_ = g.Wait()
	cancel()
	<-pumpDone

	result := Result{Completed: int(atomic.LoadInt32(&completed)), Failed: int(atomic.LoadInt32(&failed))}

	if progress.Cancelled() {
		writer.Abort()
		metrics.BuilderTasksTotal.WithLabelValues("cancelled").Add(float64(len(tasks)))
		return result, errdefs.ErrCancelledByUser
	}

	metrics.BuilderTasksTotal.WithLabelValues("completed").Add(float64(result.Completed))
	metrics.BuilderTasksTotal.WithLabelValues("failed").Add(float64(result.Failed))

	if result.Completed == 0 {
		writer.Abort()
		return result, errors.New("background builder: no task completed successfully")
	}

	if err := writer.Commit(outDir); err != nil {
		return result, errors.Wrap(err, "background builder: commit pack")
	}

	return result, nil
}
