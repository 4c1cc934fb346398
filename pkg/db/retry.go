package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nateruiz/saasbase-backend/pkg/config"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
)

const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second

	opPreviewLimit = 120
)

// RetryPolicy controls how connectivity failures are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// PolicyFromConfig builds a retry policy from the DB configuration.
func PolicyFromConfig(cfg config.DBConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaximumBackoff: cfg.RetryMaximumBackoff,
	}
}

// DataError is the terminal failure of a resilient operation: the retry
// budget is exhausted or the cause was never retryable.
type DataError struct {
	Op       string
	Attempts int
	Retried  bool
	Err      error
}

func (e *DataError) Error() string {
	if e == nil {
		return ""
	}
	if e.Retried {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Executor wraps every database operation in classify-and-retry with
// exponential backoff. It has no entity knowledge.
type Executor struct {
	client *Client
	policy RetryPolicy
	logg   *logger.Logger
}

// NewExecutor returns an executor bound to the shared pool.
func NewExecutor(client *Client, policy RetryPolicy, logg *logger.Logger) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = defaultInitialBackoff
	}
	if policy.MaximumBackoff <= 0 {
		policy.MaximumBackoff = defaultMaximumBackoff
	}
	if policy.MaximumBackoff < policy.InitialBackoff {
		policy.MaximumBackoff = policy.InitialBackoff
	}
	return &Executor{client: client, policy: policy, logg: logg}, nil
}

// Run executes fn against the pooled handle, retrying transient connectivity
// failures. fn must be safe to replay: every write in this codebase is
// upsert-shaped.
func (e *Executor) Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return e.retry(ctx, op, func() error {
		return fn(e.client.conn.WithContext(ctx))
	})
}

// Transact runs fn inside a transaction. Acquisition goes through the same
// retry policy since BEGIN is itself network I/O; once fn runs, the outcome
// is commit-or-rollback exactly once, and the connection is always released.
func (e *Executor) Transact(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	var tx *gorm.DB
	if err := e.retry(ctx, op+" begin", func() error {
		tx = e.client.conn.WithContext(ctx).Begin()
		return tx.Error
	}); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil && e.logg != nil {
			e.logg.Error(ctx, "rollback failed", rbErr)
		}
		return &DataError{Op: previewOp(op), Attempts: 1, Err: err}
	}

	// A failed COMMIT is never replayed: the transaction may have landed.
	if err := tx.Commit().Error; err != nil {
		return &DataError{Op: previewOp(op), Attempts: 1, Err: err}
	}
	return nil
}

func (e *Executor) retry(ctx context.Context, op string, attempt func() error) error {
	preview := previewOp(op)
	attempts := 0
	backoff := e.policy.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return &DataError{Op: preview, Attempts: attempts, Retried: attempts > 1, Err: err}
		}

		start := time.Now()
		err := attempt()
		attempts++
		e.logAttempt(ctx, preview, attempts, time.Since(start), err)

		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return &DataError{Op: preview, Attempts: attempts, Retried: attempts > 1, Err: err}
		}
		if attempts >= e.policy.MaxAttempts {
			return &DataError{Op: preview, Attempts: attempts, Retried: true, Err: err}
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &DataError{Op: preview, Attempts: attempts, Retried: attempts > 1, Err: ctx.Err()}
		case <-timer.C:
		}
		timer.Stop()

		backoff = minDuration(backoff*2, e.policy.MaximumBackoff)
	}
}

func (e *Executor) logAttempt(ctx context.Context, op string, attempt int, elapsed time.Duration, err error) {
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"op":          op,
		"attempt":     attempt,
		"duration_ms": elapsed.Milliseconds(),
	})
	if err == nil {
		e.logg.Info(ctx, "db.op")
		return
	}
	if isRetryable(err) {
		e.logg.Warn(ctx, fmt.Sprintf("db.op transient failure: %v", err))
		return
	}
	e.logg.Error(ctx, "db.op failed", err)
}

func previewOp(op string) string {
	if len(op) <= opPreviewLimit {
		return op
	}
	return op[:opPreviewLimit] + "..."
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
