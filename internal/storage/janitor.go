package storage

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"tasknotes/pkg/metrics"
	"tasknotes/pkg/util"
)

const cleanupRetryScope = "attachment_cleanup"

// RetryTracker counts attempts per key. *util.RetryCounter satisfies it.
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// ReferenceChecker reports whether a committed note lists a stored path.
// *repository.TaskRepository satisfies it.
type ReferenceChecker interface {
	AttachmentReferenced(ctx context.Context, storedPath string) (bool, error)
}

type JanitorConfig struct {
	// MaxTries bounds delete attempts per orphan.
	MaxTries int64
	// Grace is how long a tracked path is left alone before it counts as orphaned.
	// It must exceed the longest create request.
	Grace time.Duration
}

// Janitor removes attachments that belong to no committed note. Create tracks
// every path before writing it and releases the paths once its transaction
// commits. Discard runs inline as compensation for a failed write. RunOnce and
// Run sweep whatever stays tracked past the grace period, which also covers
// files written by a process that died before committing.
type Janitor struct {
	store    Store
	ledger   OrphanLedger
	refs     ReferenceChecker
	retries  RetryTracker
	maxTries int64
	grace    time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewJanitor(store Store, ledger OrphanLedger, refs ReferenceChecker, retries RetryTracker, cfg JanitorConfig, logger *zap.Logger) *Janitor {
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 5
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 15 * time.Minute
	}
	return &Janitor{
		store:    store,
		ledger:   ledger,
		refs:     refs,
		retries:  retries,
		maxTries: cfg.MaxTries,
		grace:    cfg.Grace,
		logger:   logger,
		now:      time.Now,
	}
}

// Track records paths that are about to be written.
func (j *Janitor) Track(ctx context.Context, paths []string) error {
	return j.ledger.Add(ctx, j.now(), paths...)
}

// Release forgets paths whose note has committed.
func (j *Janitor) Release(ctx context.Context, paths []string) error {
	return j.ledger.Remove(context.WithoutCancel(ctx), paths...)
}

// Discard deletes every path and forgets the ones deleted. Paths that fail to
// delete stay in the ledger for RunOnce. It returns the paths left behind.
func (j *Janitor) Discard(ctx context.Context, paths []string) []string {
	// compensation must finish even if the request was cancelled
	ctx = context.WithoutCancel(ctx)

	var deleted, failed []string
	for _, p := range paths {
		if err := j.store.Delete(ctx, p); err != nil {
			j.logger.Warn("Failed to delete attachment, leaving it tracked",
				zap.String("path", p),
				zap.Error(err),
			)
			failed = append(failed, p)
			metrics.IncrementAttachmentCleanup("orphaned")
			continue
		}
		deleted = append(deleted, p)
		metrics.IncrementAttachmentCleanup("deleted")
	}

	if err := j.ledger.Remove(ctx, deleted...); err != nil {
		j.logger.Warn("Failed to forget deleted attachments", zap.Strings("paths", deleted), zap.Error(err))
	}
	if err := j.ledger.Add(ctx, j.now(), failed...); err != nil {
		j.logger.Error("Failed to record orphaned attachments",
			zap.Strings("paths", failed),
			zap.Error(err),
		)
	}
	return failed
}

// RunOnce handles every path tracked for longer than the grace period. Paths a
// committed note references are forgotten. Others are deleted, and dropped once
// deleted, once the error is permanent or once maxTries is reached.
func (j *Janitor) RunOnce(ctx context.Context) (reconciled, abandoned int, err error) {
	paths, err := j.ledger.Due(ctx, j.now().Add(-j.grace))
	if err != nil {
		return 0, 0, err
	}
	sort.Strings(paths)

	for _, p := range paths {
		key := util.FormatRetryKey(cleanupRetryScope, p)

		referenced, err := j.refs.AttachmentReferenced(ctx, p)
		if err != nil {
			return reconciled, abandoned, err
		}
		if referenced {
			if err := j.ledger.Remove(ctx, p); err != nil {
				return reconciled, abandoned, err
			}
			metrics.IncrementAttachmentCleanup("kept")
			continue
		}

		delErr := j.store.Delete(ctx, p)
		if delErr == nil {
			if err := j.ledger.Remove(ctx, p); err != nil {
				return reconciled, abandoned, err
			}
			_ = j.retries.Reset(ctx, key)
			metrics.IncrementAttachmentCleanup("reconciled")
			reconciled++
			continue
		}

		retryable, kind := util.ClassifyError(delErr)
		tries, countErr := j.retries.IncrementAndGet(ctx, key)
		if countErr != nil {
			j.logger.Warn("Failed to count cleanup retry", zap.String("path", p), zap.Error(countErr))
		}

		if !retryable || tries >= j.maxTries {
			j.logger.Error("Abandoning orphaned attachment",
				zap.String("path", p),
				zap.String("error_type", kind),
				zap.Int64("tries", tries),
				zap.Error(delErr),
			)
			if err := j.ledger.Remove(ctx, p); err != nil {
				return reconciled, abandoned, err
			}
			_ = j.retries.Reset(ctx, key)
			metrics.IncrementAttachmentCleanup("abandoned")
			abandoned++
			continue
		}

		j.logger.Warn("Orphaned attachment still not deleted",
			zap.String("path", p),
			zap.String("error_type", kind),
			zap.Int64("tries", tries),
			zap.Error(delErr),
		)
	}
	return reconciled, abandoned, nil
}

// Run calls RunOnce every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	j.logger.Info("Attachment janitor started", zap.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Attachment janitor stopped")
			return
		case <-ticker.C:
			reconciled, abandoned, err := j.RunOnce(ctx)
			if err != nil {
				j.logger.Error("Orphan reconciliation failed", zap.Error(err))
				continue
			}
			if reconciled > 0 || abandoned > 0 {
				j.logger.Info("Orphan reconciliation finished",
					zap.Int("reconciled", reconciled),
					zap.Int("abandoned", abandoned),
				)
			}
		}
	}
}
