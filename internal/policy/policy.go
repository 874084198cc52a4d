// Package policy enforces the per-tenant reply rules: toggles, hourly
// rate cap, cooldowns, dedup and credit balance. Denials are expected
// control flow, never errors; each carries a reason code.
package policy

import (
	"context"
	"time"

	"github.com/altomsoft/aimail/pkg/models"
)

// Deny reason codes.
const (
	ReasonAutoReplyDisabled       = "auto_reply_disabled"
	ReasonAutoReplyDisabledLegacy = "auto_reply_disabled_legacy"
	ReasonSubscriptionInactive    = "subscription_inactive"
	ReasonRateLimited             = "rate_limited"
	ReasonAlreadyReplied          = "already_replied"
	ReasonDuplicateInRun          = "duplicate_in_run"
	ReasonCooldownThread          = "cooldown_thread"
	ReasonCooldownSender          = "cooldown_sender"
	ReasonThreadAnswered          = "thread_answered"
	ReasonNoCredits               = "blocked_no_credits"
)

// Store is the slice of the database the gate reads. Every check is a
// single round trip.
type Store interface {
	RepliesSentLastHour(ctx context.Context, orgID int64) (int, error)
	AlreadyReplied(ctx context.Context, orgID int64, messageID string) (bool, error)
	RepliedToThreadRecently(ctx context.Context, orgID int64, threadKey string, window time.Duration) (bool, error)
	RepliedToSenderRecently(ctx context.Context, orgID int64, senderEmail string, window time.Duration) (bool, error)
	ThreadNeedsReply(ctx context.Context, orgID int64, threadKey string) (bool, error)
	RemainingCredits(ctx context.Context, orgID int64) (int, error)
}

// Input identifies the message being gated.
type Input struct {
	MessageID   string // normalized, may be empty
	ThreadKey   string
	SenderEmail string
}

// Decision is the gate outcome. A denied message is marked seen and
// skipped, never retried for policy reasons.
type Decision struct {
	Allow  bool
	Reason string
}

func deny(reason string) Decision { return Decision{Reason: reason} }

// Gate runs the sequential policy checks.
type Gate struct {
	store Store
}

// NewGate creates a policy gate over the given store.
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Evaluate runs every check in order and returns the first denial, or
// an allowing decision. The caller owns side effects tied to specific
// reasons (heartbeat credit flag, usage events).
func (g *Gate) Evaluate(ctx context.Context, org *models.Organization, in Input, dedup *Dedup) (Decision, error) {
	if !org.AutoReplyEnabled {
		return deny(ReasonAutoReplyDisabled), nil
	}
	if org.AutoReply == 0 {
		return deny(ReasonAutoReplyDisabledLegacy), nil
	}
	if !org.CanProcess() {
		return deny(ReasonSubscriptionInactive), nil
	}

	sent, err := g.store.RepliesSentLastHour(ctx, org.ID)
	if err != nil {
		return Decision{}, err
	}
	maxPerHour := org.MaxRepliesPerHour
	if maxPerHour <= 0 {
		maxPerHour = 10
	}
	if sent >= maxPerHour {
		return deny(ReasonRateLimited), nil
	}

	if in.MessageID != "" {
		replied, err := g.store.AlreadyReplied(ctx, org.ID, in.MessageID)
		if err != nil {
			return Decision{}, err
		}
		if replied {
			return deny(ReasonAlreadyReplied), nil
		}
	}

	// Cheap in-run guard before any further round trips.
	if dedup != nil && (dedup.SeenMessage(in.MessageID) || dedup.SeenThread(in.ThreadKey)) {
		return deny(ReasonDuplicateInRun), nil
	}

	cooldown := org.Cooldown()
	if in.ThreadKey != "" {
		recent, err := g.store.RepliedToThreadRecently(ctx, org.ID, in.ThreadKey, cooldown)
		if err != nil {
			return Decision{}, err
		}
		if recent {
			return deny(ReasonCooldownThread), nil
		}
	} else {
		recent, err := g.store.RepliedToSenderRecently(ctx, org.ID, in.SenderEmail, cooldown)
		if err != nil {
			return Decision{}, err
		}
		if recent {
			return deny(ReasonCooldownSender), nil
		}
	}

	needsReply, err := g.store.ThreadNeedsReply(ctx, org.ID, in.ThreadKey)
	if err != nil {
		return Decision{}, err
	}
	if !needsReply {
		return deny(ReasonThreadAnswered), nil
	}

	remaining, err := g.store.RemainingCredits(ctx, org.ID)
	if err != nil {
		return Decision{}, err
	}
	if remaining <= 0 {
		return deny(ReasonNoCredits), nil
	}

	return Decision{Allow: true}, nil
}
