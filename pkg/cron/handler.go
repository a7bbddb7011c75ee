package cron

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/provakit/provakit/pkg/observability/logger"
	"github.com/provakit/provakit/pkg/resilience"
	"github.com/provakit/provakit/pkg/retry"
)

// JobHandler is the unit of work a cron endpoint executes. The returned
// value, if any, is echoed in the response body.
type JobHandler func(ctx context.Context) (any, error)

// HandlerOptions configures a wrapped cron endpoint.
type HandlerOptions struct {
	// Secret gates the endpoint. Requests must carry it as a Bearer token or
	// in X-Cron-Secret. Empty disables the gate.
	Secret string
	// LockTTL, SkipWindow and HolderID feed the guard's Acquire.
	LockTTL    time.Duration
	SkipWindow time.Duration
	// AttemptTimeout bounds a single handler attempt. Zero means unbounded.
	AttemptTimeout time.Duration
	// Retry tunes the retry executor the handler runs under.
	Retry retry.Options
}

// jobResponse is the fixed JSON shape every cron endpoint returns.
type jobResponse struct {
	Success    bool   `json:"success"`
	JobName    string `json:"jobName"`
	Skipped    bool   `json:"skipped,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Data       any    `json:"data,omitempty"`
	DurationMS int64  `json:"duration,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WrapHandler turns a job handler into an HTTP endpoint: it authenticates
// the caller, acquires the job lock, runs the handler under the retry
// executor, and always releases the lock. Skips and lock contention return
// 200 so schedulers don't alert on them; skipped is set only when the skip
// window suppressed the run.
func (g *Guard) WrapHandler(job string, handler JobHandler, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, opts.Secret) {
			recordRun(job, "unauthorized")
			writeJSON(w, http.StatusUnauthorized, jobResponse{
				JobName: job,
				Error:   "unauthorized",
			})
			return
		}

		ctx := logger.ContextWithJob(r.Context(), job)
		log := g.log.WithContext(ctx)

		acquire, err := g.Acquire(ctx, job, AcquireOptions{
			LockTTL:    opts.LockTTL,
			SkipWindow: opts.SkipWindow,
		})
		if err != nil {
			recordRun(job, "error")
			writeJSON(w, http.StatusInternalServerError, jobResponse{
				JobName: job,
				Error:   err.Error(),
			})
			return
		}
		if !acquire.Acquired {
			log.Info("job not run", "skipped", acquire.Skipped, "reason", acquire.Reason)
			writeJSON(w, http.StatusOK, jobResponse{
				Success: true,
				JobName: job,
				Skipped: acquire.Skipped,
				Reason:  acquire.Reason,
			})
			return
		}

		// Released from a defer so a panicking handler cannot leak the lock
		// until the TTL expires.
		succeeded := false
		defer func() {
			g.Release(ctx, job, ReleaseOptions{
				RecordLastRun: succeeded,
				SkipWindow:    opts.SkipWindow,
			})
		}()

		start := time.Now()
		result := retry.WithRetry(ctx, func(ctx context.Context) (any, error) {
			return runAttempt(ctx, handler, opts.AttemptTimeout)
		}, opts.Retry)
		succeeded = result.Success

		durationMS := time.Since(start).Milliseconds()
		if !result.Success {
			log.Error("job failed", "attempts", result.Attempts, "error", result.Err)
			recordRun(job, "failed")
			writeJSON(w, http.StatusInternalServerError, jobResponse{
				JobName:    job,
				DurationMS: durationMS,
				Attempts:   result.Attempts,
				Error:      result.Err.Error(),
			})
			return
		}

		log.Info("job completed", "attempts", result.Attempts, "duration_ms", durationMS)
		recordRun(job, "succeeded")
		writeJSON(w, http.StatusOK, jobResponse{
			Success:    true,
			JobName:    job,
			Data:       result.Data,
			DurationMS: durationMS,
			Attempts:   result.Attempts,
		})
	}
}

func runAttempt(ctx context.Context, handler JobHandler, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return handler(ctx)
	}
	var data any
	err := resilience.WithTimeout(ctx, timeout, func(ctx context.Context) error {
		var err error
		data, err = handler(ctx)
		return err
	})
	return data, err
}

func authorized(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if strings.TrimPrefix(auth, "Bearer ") == secret {
			return true
		}
	}
	return r.Header.Get("X-Cron-Secret") == secret
}

func writeJSON(w http.ResponseWriter, status int, body jobResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
