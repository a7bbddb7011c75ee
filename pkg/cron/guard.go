// Package cron coordinates scheduled job executions across instances: a
// distributed lock plus idempotency guard over the cache layer, and an HTTP
// wrapper that turns a job handler into a secured cron endpoint.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/provakit/provakit/pkg/cache"
	"github.com/provakit/provakit/pkg/observability/logger"
)

const (
	defaultPrefix  = "cron"
	defaultLockTTL = 5 * time.Minute
)

// ErrInvalidArgument classifies invalid caller arguments.
var ErrInvalidArgument = errors.New("cron invalid argument")

func cronError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}

// GuardConfig tunes guard defaults; per-job options override them.
type GuardConfig struct {
	Prefix            string
	DefaultLockTTL    time.Duration
	DefaultSkipWindow time.Duration
}

func (c *GuardConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultPrefix
	}
	if c.DefaultLockTTL <= 0 {
		c.DefaultLockTTL = defaultLockTTL
	}
	if c.DefaultSkipWindow < 0 {
		c.DefaultSkipWindow = 0
	}
}

// Guard prevents concurrent and duplicate runs of named jobs. Locking is as
// strong as the underlying cache: atomic with a Redis backend, per-process
// when degraded to memory. Storage failures fail open so a broken cache
// never blocks scheduled work.
type Guard struct {
	store  cache.Cache
	log    logger.Logger
	config GuardConfig
}

// NewGuard creates a guard over the given cache.
func NewGuard(store cache.Cache, cfg GuardConfig, log logger.Logger) (*Guard, error) {
	if store == nil {
		return nil, cronError(ErrInvalidArgument, "cache is required")
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	cfg.normalize()
	return &Guard{store: store, log: log, config: cfg}, nil
}

// AcquireOptions tunes a single acquisition.
type AcquireOptions struct {
	// LockTTL bounds how long the lock survives a crashed holder. Defaults
	// to the guard's DefaultLockTTL.
	LockTTL time.Duration
	// SkipWindow suppresses re-acquisition for this long after a recorded
	// successful run. Zero disables the window.
	SkipWindow time.Duration
	// HolderID identifies this holder in the lock record. Defaults to a
	// random UUID.
	HolderID string
}

// AcquireResult reports the outcome of an acquisition attempt.
type AcquireResult struct {
	// Acquired is true when this caller holds the lock and should run.
	Acquired bool
	// Skipped is true only when the skip window suppressed the run. Lock
	// contention reports Acquired false and Skipped false, with the current
	// holder named in the Reason.
	Skipped  bool
	Reason   string
	HolderID string
}

// LockRecord is the JSON value stored under the lock key.
type LockRecord struct {
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// Acquire attempts to take the named job's lock. The skip window is checked
// first so a recently completed run short-circuits without writing anything.
// Storage errors on the lock path fail open: the job runs, the degraded
// acquisition is logged and reported in the Reason.
func (g *Guard) Acquire(ctx context.Context, job string, opts AcquireOptions) (AcquireResult, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return AcquireResult{}, cronError(ErrInvalidArgument, "job name is required")
	}

	if opts.LockTTL <= 0 {
		opts.LockTTL = g.config.DefaultLockTTL
	}
	if opts.SkipWindow < 0 {
		opts.SkipWindow = g.config.DefaultSkipWindow
	}
	if opts.HolderID == "" {
		opts.HolderID = uuid.NewString()
	}

	if opts.SkipWindow > 0 {
		if reason, skip := g.checkSkipWindow(ctx, job, opts.SkipWindow); skip {
			recordAcquire(job, "skipped")
			return AcquireResult{Skipped: true, Reason: reason}, nil
		}
	}

	record := LockRecord{
		HolderID:   opts.HolderID,
		AcquiredAt: time.Now().UTC(),
		TTLSeconds: int64(opts.LockTTL / time.Second),
	}

	created, err := g.store.SetIfNotExists(ctx, g.lockKey(job), record, opts.LockTTL)
	if err != nil {
		// The job is more important than the lock. Run it and say so.
		g.log.Warn("lock storage unavailable, proceeding without lock", "job", job, "error", err)
		recordAcquire(job, "fail_open")
		return AcquireResult{
			Acquired: true,
			Reason:   "lock storage unavailable, proceeding unguarded",
			HolderID: opts.HolderID,
		}, nil
	}
	if !created {
		recordAcquire(job, "held")
		return AcquireResult{Reason: g.holderReason(ctx, job)}, nil
	}

	// Verify ownership: on a degraded memory backend two instances can both
	// believe they created the record, so re-read and compare holders.
	var stored LockRecord
	if found, err := g.store.Get(ctx, g.lockKey(job), &stored); err == nil && found && stored.HolderID != opts.HolderID {
		recordAcquire(job, "lost_race")
		return AcquireResult{Reason: holderReason(stored)}, nil
	}

	recordAcquire(job, "acquired")
	return AcquireResult{Acquired: true, HolderID: opts.HolderID}, nil
}

// ReleaseOptions tunes a release.
type ReleaseOptions struct {
	// RecordLastRun writes the completion timestamp that feeds the skip
	// window. Set it only after a successful run.
	RecordLastRun bool
	// SkipWindow is the TTL of the last-run record. Defaults to the guard's
	// DefaultSkipWindow; zero skips the record entirely.
	SkipWindow time.Duration
}

// Release drops the job's lock and optionally records the run. Best effort:
// storage errors are logged, never returned, since the lock expires by TTL
// anyway.
func (g *Guard) Release(ctx context.Context, job string, opts ReleaseOptions) {
	job = strings.TrimSpace(job)
	if job == "" {
		return
	}

	if err := g.store.Delete(ctx, g.lockKey(job)); err != nil {
		g.log.Warn("lock release failed, lock will expire by TTL", "job", job, "error", err)
	}

	if opts.SkipWindow <= 0 {
		opts.SkipWindow = g.config.DefaultSkipWindow
	}
	if opts.RecordLastRun && opts.SkipWindow > 0 {
		stamp := time.Now().UTC().Format(time.RFC3339)
		if err := g.store.Set(ctx, g.lastRunKey(job), stamp, opts.SkipWindow); err != nil {
			g.log.Warn("last-run record write failed", "job", job, "error", err)
		}
	}
}

// Holder reads the current lock record for a job, if any.
func (g *Guard) Holder(ctx context.Context, job string) (LockRecord, bool) {
	var record LockRecord
	found, err := g.store.Get(ctx, g.lockKey(job), &record)
	if err != nil || !found {
		return LockRecord{}, false
	}
	return record, true
}

// holderReason describes who holds the lock for a contention result. The
// record can be gone by the time we read it back; fall back to a generic
// description rather than claim a holder we cannot name.
func (g *Guard) holderReason(ctx context.Context, job string) string {
	record, found := g.Holder(ctx, job)
	if !found {
		return "lock held by another instance"
	}
	return holderReason(record)
}

func holderReason(record LockRecord) string {
	return fmt.Sprintf("held by %s since %s", record.HolderID, record.AcquiredAt.Format(time.RFC3339))
}

// checkSkipWindow reports whether the job completed within the window.
// Storage errors and unparseable records count as "not recently run".
func (g *Guard) checkSkipWindow(ctx context.Context, job string, window time.Duration) (string, bool) {
	var stamp string
	found, err := g.store.Get(ctx, g.lastRunKey(job), &stamp)
	if err != nil {
		g.log.Warn("skip-window lookup failed, treating as not recently run", "job", job, "error", err)
		return "", false
	}
	if !found {
		return "", false
	}

	lastRun, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		g.log.Warn("unparseable last-run record, ignoring", "job", job, "value", stamp)
		return "", false
	}

	elapsed := time.Since(lastRun)
	if elapsed < window {
		return fmt.Sprintf("job completed %s ago, within %s skip window", elapsed.Round(time.Second), window), true
	}
	return "", false
}

func (g *Guard) lockKey(job string) string {
	return fmt.Sprintf("%s:lock:%s", g.config.Prefix, job)
}

func (g *Guard) lastRunKey(job string) string {
	return fmt.Sprintf("%s:lastrun:%s", g.config.Prefix, job)
}
