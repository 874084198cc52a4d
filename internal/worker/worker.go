// Package worker runs the per-tenant mailbox processing pipeline:
// candidate selection, classification, policy gating, thread-lease
// coordination, reply generation and delivery, and durable state
// recording. Multiple instances may poll the same accounts; the shared
// database is the only coordination medium.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/altomsoft/aimail/internal/ai"
	"github.com/altomsoft/aimail/internal/config"
	"github.com/altomsoft/aimail/internal/database"
	"github.com/altomsoft/aimail/internal/mailbox"
	"github.com/altomsoft/aimail/internal/policy"
	"github.com/altomsoft/aimail/pkg/models"
)

const (
	// Mutual-exclusion window for one generate-and-send critical
	// section. The TTL adds a margin so a slow but alive worker is not
	// pre-empted mid-send; a crashed worker's lease simply expires.
	lockWindow    = 10 * time.Minute
	lockTTLMargin = 2 * time.Minute

	// Conversation exchanges included in the generation prompt.
	contextTurns = 6

	transportRetryDelay = 2 * time.Second
	maxErrorLen         = 2000
)

// MailSession is one short-lived IMAP connection.
type MailSession interface {
	ListCandidates(limit int) ([]uint32, error)
	FetchHeaders(uid uint32) (string, error)
	FetchMessage(uid uint32) (*mailbox.Message, error)
	MarkSeen(uid uint32) error
	Close()
}

// SessionFactory opens a mail session for one account.
type SessionFactory func(cfg mailbox.SessionConfig) (MailSession, error)

// Generator produces reply text from a system+user prompt pair.
type Generator interface {
	Complete(ctx context.Context, system, user string) (*ai.Completion, error)
}

// Deliverer sends one outbound reply, reporting success as a boolean.
type Deliverer interface {
	Send(account *models.EmailAccount, to, subject, body string) bool
}

// Worker is one poll-loop instance.
type Worker struct {
	id     string
	cfg    *config.Config
	db     *database.DB
	gate   *policy.Gate
	gen    Generator
	sender Deliverer
	logger *slog.Logger

	retryDelay time.Duration

	// Swapped in tests.
	newSession SessionFactory
	markSeen   func(cfg mailbox.SessionConfig, uid uint32)
}

// New creates a worker over the given collaborators.
func New(cfg *config.Config, db *database.DB, gen Generator, sender Deliverer, logger *slog.Logger) *Worker {
	id := cfg.WorkerIdentity()
	return &Worker{
		id:         id,
		cfg:        cfg,
		db:         db,
		gate:       policy.NewGate(db),
		gen:        gen,
		sender:     sender,
		logger:     logger.With("component", "worker", "worker_id", id),
		retryDelay: transportRetryDelay,
		newSession: func(c mailbox.SessionConfig) (MailSession, error) {
			return mailbox.Dial(c, logger)
		},
		markSeen: func(c mailbox.SessionConfig, uid uint32) {
			mailbox.MarkSeenFresh(c, uid, logger)
		},
	}
}

// ID returns the worker identity recorded on leases and heartbeats.
func (w *Worker) ID() string {
	return w.id
}

// Run executes poll cycles until the context is cancelled. A cycle
// failure never stops the loop; in-flight leases expire naturally and
// the next cycle resumes from persisted state.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "poll_interval", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			w.RunCycle(ctx)
		}
	}
}

// RunCycle performs one poll pass over every auto-reply account. Each
// account is processed in isolation so one tenant's failure cannot
// stall the others.
func (w *Worker) RunCycle(ctx context.Context) {
	w.heartbeat(ctx, database.Heartbeat{
		LockHealthOK:    true,
		CreditsHealthOK: true,
	})

	accounts, err := w.db.ListAutoReplyAccounts(ctx)
	if err != nil {
		w.logger.Error("failed to list accounts", "error", err)
		return
	}
	w.logger.Debug("cycle start", "accounts", len(accounts))

	dedup := policy.NewDedup()
	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		org, err := w.db.GetOrganization(ctx, account.OrgID)
		if err != nil {
			w.logger.Error("failed to load organization", "org_id", account.OrgID, "error", err)
			continue
		}
		w.processAccount(ctx, org, account, dedup)
	}
}

func (w *Worker) heartbeat(ctx context.Context, hb database.Heartbeat) {
	hb.WorkerID = w.id
	if hb.LastRunAt.IsZero() {
		hb.LastRunAt = time.Now().UTC()
	}
	if len(hb.LastError) > maxErrorLen {
		hb.LastError = hb.LastError[:maxErrorLen]
	}
	if err := w.db.UpsertWorkerStatus(ctx, hb); err != nil {
		w.logger.Warn("failed to upsert worker status", "error", err)
	}
}
