package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/altomsoft/aimail/internal/ai"
	"github.com/altomsoft/aimail/internal/classify"
	"github.com/altomsoft/aimail/internal/database"
	"github.com/altomsoft/aimail/internal/mailbox"
	"github.com/altomsoft/aimail/internal/policy"
	"github.com/altomsoft/aimail/internal/reply"
	"github.com/altomsoft/aimail/internal/thread"
	"github.com/altomsoft/aimail/pkg/models"
)

// transportError marks mailbox connectivity failures, which get one
// retry per account instead of tripping the lock-health flag.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

// processAccount runs the pipeline for one account, retrying once on a
// transport failure. Any other error is terminal for this account until
// the next cycle.
func (w *Worker) processAccount(ctx context.Context, org *models.Organization, account *models.EmailAccount, dedup *policy.Dedup) {
	logger := w.logger.With("org_id", org.ID, "account", account.Email)

	for attempt := 1; attempt <= 2; attempt++ {
		err := w.processOnce(ctx, org, account, dedup, logger)
		if err == nil {
			return
		}

		var terr *transportError
		if errors.As(err, &terr) {
			logger.Warn("mailbox transport error", "attempt", attempt, "error", err)
			w.heartbeat(ctx, database.Heartbeat{
				LockHealthOK:    true,
				CreditsHealthOK: true,
				LastError:       "transport error: " + err.Error(),
			})
			if attempt == 1 {
				time.Sleep(w.retryDelay)
				continue
			}
			return
		}

		logger.Error("account processing failed", "error", err)
		w.heartbeat(ctx, database.Heartbeat{
			LockHealthOK:    false,
			CreditsHealthOK: true,
			LastError:       err.Error(),
		})
		return
	}
}

// processOnce handles at most one email for the account: newest
// candidate that survives the static screen, classification, the policy
// gate and lease acquisition ends up generated, delivered and recorded.
func (w *Worker) processOnce(ctx context.Context, org *models.Organization, account *models.EmailAccount, dedup *policy.Dedup, logger *slog.Logger) error {
	sessCfg := mailbox.SessionConfig{
		Addr:        account.IMAPAddr(),
		Username:    account.IMAPUsername,
		Password:    account.IMAPPassword,
		DialTimeout: w.cfg.IMAPDialTimeout,
	}

	session, err := w.newSession(sessCfg)
	if err != nil {
		return &transportError{err: err}
	}
	closed := false
	closeSession := func() {
		if !closed {
			session.Close()
			closed = true
		}
	}
	defer closeSession()

	uids, err := session.ListCandidates(w.cfg.ScanLastN)
	if err != nil {
		return &transportError{err: err}
	}
	if len(uids) == 0 {
		logger.Debug("no unseen messages")
		return nil
	}

	// Header prescreen: walk newest-first past obvious bulk mail so a
	// newsletter at the top of the inbox does not shadow a real enquiry.
	var chosen uint32
	var chosenHdr string
	found := false
	for _, uid := range uids {
		hdr, err := session.FetchHeaders(uid)
		if err != nil {
			return &transportError{err: err}
		}
		if classify.MatchesStaticIgnore(strings.ToLower(hdr)) {
			continue
		}
		chosen, chosenHdr, found = uid, hdr, true
		break
	}
	if !found {
		logger.Debug("no candidate passed the header screen")
		return nil
	}

	msg, err := session.FetchMessage(chosen)
	if err != nil {
		return &transportError{err: err}
	}

	messageID := thread.NormalizeMessageID(msg.MessageID)
	threadKey := thread.Key(org.ID, msg.FromEmail, msg.Subject, msg.InReplyTo, msg.References)
	logger = logger.With("message_id", messageID, "thread_key", threadKey)
	logger.Info("email selected", "uid", chosen, "from", msg.FromEmail, "subject", msg.Subject)

	if classify.MatchesStaticIgnore(strings.ToLower(msg.Subject + "\n" + msg.From + "\n" + msg.MessageID)) {
		logger.Info("skipped", "reason", "ignored_static")
		w.markSeenQuiet(session, chosen, logger)
		return nil
	}

	verdict := classify.Classify(classify.Input{
		Subject:       msg.Subject,
		Sender:        msg.From,
		Body:          msg.BodyText,
		RawHeaders:    chosenHdr,
		TrustedSender: classify.IsTrustedSender(msg.FromEmail, org),
	})
	if verdict.Verdict != classify.VerdictEnquiry {
		logger.Info("not an enquiry", "verdict", verdict.Verdict.String(), "reason", verdict.Reason)
		w.markSeenQuiet(session, chosen, logger)
		return nil
	}

	decision, err := w.gate.Evaluate(ctx, org, policy.Input{
		MessageID:   messageID,
		ThreadKey:   threadKey,
		SenderEmail: msg.FromEmail,
	}, dedup)
	if err != nil {
		return fmt.Errorf("policy check: %w", err)
	}
	if !decision.Allow {
		logger.Info("policy denied", "reason", decision.Reason)
		w.markSeenQuiet(session, chosen, logger)
		if decision.Reason == policy.ReasonNoCredits {
			w.heartbeat(ctx, database.Heartbeat{
				LockHealthOK:    true,
				CreditsHealthOK: false,
				LastError:       "no credits left",
			})
			if err := w.db.LogUsage(ctx, org.ID, models.UsageBlockedNoCredits, 1, map[string]any{
				"thread_key": threadKey,
				"from":       msg.FromEmail,
				"message_id": messageID,
			}); err != nil {
				logger.Warn("failed to log usage event", "error", err)
			}
		}
		return nil
	}

	acquired, err := w.db.AcquireThreadLease(ctx, org.ID, threadKey, w.id, lockWindow, lockWindow+lockTTLMargin)
	if err != nil {
		return fmt.Errorf("acquire thread lease: %w", err)
	}
	if !acquired {
		logger.Info("thread leased by another worker, skipping")
		w.markSeenQuiet(session, chosen, logger)
		return nil
	}

	// The gate may have read a stale row; re-check the toggle now that
	// we hold the lease, so an operator flipping it off wins the race.
	if live, err := w.db.GetOrganization(ctx, org.ID); err == nil {
		if !live.CanProcess() {
			logger.Info("auto-reply disabled mid-flight")
			w.markSeenQuiet(session, chosen, logger)
			return nil
		}
		org = live
	}

	inTurn := &models.AuditTurn{
		OrgID:            org.ID,
		ThreadKey:        threadKey,
		Direction:        models.DirectionIn,
		CustomerEmail:    msg.FromEmail,
		Subject:          msg.Subject,
		BodyText:         msg.BodyText,
		EmailMessageID:   messageID,
		InReplyTo:        msg.InReplyTo,
		ReferencesHeader: msg.References,
	}
	if err := w.db.AppendTurn(ctx, inTurn); err != nil && !errors.Is(err, database.ErrAlreadyExists) {
		return fmt.Errorf("record inbound turn: %w", err)
	}

	turns, err := w.db.RecentTurns(ctx, org.ID, threadKey, contextTurns)
	if err != nil {
		logger.Warn("failed to load thread context", "error", err)
		turns = nil
	}
	threadContext := thread.FormatContext(turns)

	// Generation can take a while; do not hold the IMAP connection
	// open across it. The message is flagged seen on a fresh session.
	closeSession()

	system, user := reply.BuildPrompt(org, msg.Subject, msg.From, msg.BodyText, threadContext)

	var completion *ai.Completion
	var replyText string
	completion, err = w.gen.Complete(ctx, system, user)
	if err != nil {
		logger.Error("reply generation failed", "error", err)
		replyText = reply.FailurePlaceholder
	} else {
		replyText = reply.Resolve(completion.Text, org)
		if strings.TrimSpace(completion.Text) != replyText && strings.EqualFold(strings.TrimSpace(completion.Text), reply.DeclineSentinel) {
			logger.Warn("model declined a classified enquiry, using fallback reply")
		}
	}

	sent := w.sender.Send(account, msg.FromEmail, replySubject(msg.Subject), replyText)

	outBody := replyText
	if !sent {
		outBody = "(SMTP FAILED)\n\n" + replyText
	}
	outTurn := &models.AuditTurn{
		OrgID:          org.ID,
		ThreadKey:      threadKey,
		Direction:      models.DirectionOut,
		CustomerEmail:  msg.FromEmail,
		Subject:        replySubject(msg.Subject),
		BodyText:       outBody,
		EmailMessageID: messageID,
	}
	if completion != nil {
		outTurn.AIModel = completion.Model
		outTurn.AITokensIn = completion.TokensIn
		outTurn.AITokensOut = completion.TokensOut
	}
	if err := w.db.AppendTurn(ctx, outTurn); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			logger.Info("outbound turn already recorded for this message")
		} else {
			logger.Error("failed to record outbound turn", "error", err)
		}
	}

	now := time.Now().UTC()
	hb := database.Heartbeat{
		LastRunAt:            now,
		LastEmailProcessedAt: now,
		LastEmailMessageID:   messageID,
		LastThreadKey:        threadKey,
		LockHealthOK:         true,
		CreditsHealthOK:      true,
	}
	if !sent {
		hb.LastError = "smtp send failed"
	}
	w.heartbeat(ctx, hb)

	meta := map[string]any{
		"thread_key": threadKey,
		"to":         msg.FromEmail,
		"message_id": messageID,
	}
	if sent {
		ok, err := w.db.ConsumeCredits(ctx, org.ID, 1)
		if err != nil {
			logger.Warn("failed to consume credits", "error", err)
		} else if !ok {
			logger.Warn("credits exhausted after send")
		}
		if err := w.db.LogUsage(ctx, org.ID, models.UsageReplySent, 1, meta); err != nil {
			logger.Warn("failed to log usage event", "error", err)
		}
	} else {
		if err := w.db.LogUsage(ctx, org.ID, models.UsageSMTPFailed, 1, meta); err != nil {
			logger.Warn("failed to log usage event", "error", err)
		}
	}

	// Session is gone by now; mark seen on a fresh connection so a
	// flag failure never undoes the reply we already recorded.
	w.markSeen(sessCfg, chosen)

	dedup.Mark(messageID, threadKey)
	logger.Info("email processed", "sent", sent)
	return nil
}

func (w *Worker) markSeenQuiet(session MailSession, uid uint32, logger *slog.Logger) {
	if err := session.MarkSeen(uid); err != nil {
		logger.Warn("failed to mark message seen", "uid", uid, "error", err)
	}
}

func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		return "Re: your enquiry"
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
