package mailbox

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/altomsoft/aimail/internal/parser"
)

// Header fields fetched for candidate screening. List-Unsubscribe and
// the automation headers are needed by the classifier before the full
// body is pulled.
var headerFields = []string{
	"From", "Subject", "Date", "Message-Id", "In-Reply-To", "References",
	"List-Unsubscribe", "List-Id", "Precedence", "Auto-Submitted",
}

// Message is one fetched inbound email, reduced to the fields the
// pipeline needs.
type Message struct {
	UID        uint32
	Subject    string
	From       string // full From header value
	FromEmail  string
	MessageID  string
	InReplyTo  string
	References string
	BodyText   string
	Date       time.Time
}

// SessionConfig configuration for one IMAP session
type SessionConfig struct {
	Addr        string // host:port
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Session is a short-lived IMAP connection. The worker opens one per
// logical unit of work and closes it before the slow generation call,
// so idle-session timeouts never hit mid-flight.
type Session struct {
	cfg    SessionConfig
	client *client.Client
	logger *slog.Logger
}

// Dial connects over TLS, logs in and selects INBOX.
func Dial(cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if _, err := imapClient.Select("INBOX", false); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	return &Session{
		cfg:    cfg,
		client: imapClient,
		logger: logger.With("mailbox", cfg.Username),
	}, nil
}

// ListCandidates returns candidate UIDs, newest first, bounded to the
// last limit messages. Unread messages are preferred; when none exist
// the most recent messages are scanned instead.
func (s *Session) ListCandidates(limit int) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unseen: %w", err)
	}

	if len(uids) == 0 {
		uids, err = s.client.UidSearch(imap.NewSearchCriteria())
		if err != nil {
			return nil, fmt.Errorf("failed to search all: %w", err)
		}
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}
	return uids, nil
}

// FetchHeaders returns the raw screening-header block for one message
// without setting \Seen.
func (s *Session) FetchHeaders(uid uint32) (string, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    headerFields,
		},
		Peek: true,
	}

	msg, err := s.fetchOne(uid, []imap.FetchItem{imap.FetchUid, section.FetchItem()})
	if err != nil {
		return "", err
	}

	body := msg.GetBody(section)
	if body == nil {
		return "", fmt.Errorf("no header section for uid %d", uid)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read headers: %w", err)
	}
	return string(raw), nil
}

// FetchMessage fetches and parses the full message without setting
// \Seen. Prefers the text/plain part; an HTML-only message is reduced
// to plain text.
func (s *Session) FetchMessage(uid uint32) (*Message, error) {
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	msg, err := s.fetchOne(uid, items)
	if err != nil {
		return nil, err
	}

	out := &Message{UID: uid}
	if msg.Envelope != nil {
		out.Subject = msg.Envelope.Subject
		out.Date = msg.Envelope.Date
		out.MessageID = msg.Envelope.MessageId
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			out.FromEmail = from.Address()
			if from.PersonalName != "" {
				out.From = fmt.Sprintf("%s <%s>", from.PersonalName, from.Address())
			} else {
				out.From = from.Address()
			}
		}
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return nil, fmt.Errorf("no body section for uid %d", uid)
	}

	mr, err := mail.CreateReader(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	out.InReplyTo = strings.TrimSpace(mr.Header.Get("In-Reply-To"))
	out.References = strings.TrimSpace(mr.Header.Get("References"))
	if out.MessageID == "" {
		out.MessageID = strings.TrimSpace(mr.Header.Get("Message-Id"))
	}

	var bodyText, bodyHTML string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("failed to read part", "uid", uid, "error", err)
			break
		}

		if h, ok := part.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(ct, "text/plain") && bodyText == "":
				bodyText = string(content)
			case strings.HasPrefix(ct, "text/html") && bodyHTML == "":
				bodyHTML = string(content)
			}
		}
	}

	out.BodyText = strings.TrimSpace(bodyText)
	if out.BodyText == "" && bodyHTML != "" {
		text, err := parser.HTMLToText(bodyHTML)
		if err != nil {
			s.logger.Warn("failed to convert html body", "uid", uid, "error", err)
		} else {
			out.BodyText = text
		}
	}

	return out, nil
}

// MarkSeen adds the \Seen flag. A failure here is non-fatal for the
// pipeline; redelivery is handled by the audit dedup.
func (s *Session) MarkSeen(uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := s.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	return nil
}

// Close logs the session out. Errors are ignored; the server drops the
// connection either way.
func (s *Session) Close() {
	if s.client != nil {
		_ = s.client.Logout()
		s.client = nil
	}
}

func (s *Session) fetchOne(uid uint32, items []imap.FetchItem) (*imap.Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("message %d not found", uid)
	}
	return fetched, nil
}

// MarkSeenFresh dials a new session just to set \Seen on one message.
// The worker logs out before the slow generation call, so this is how
// a processed message is flagged afterwards. Failures are logged and
// ignored: at-least-once redelivery is acceptable.
func MarkSeenFresh(cfg SessionConfig, uid uint32, logger *slog.Logger) {
	session, err := Dial(cfg, logger)
	if err != nil {
		logger.Warn("failed to reopen session for mark seen", "error", err)
		return
	}
	defer session.Close()

	if err := session.MarkSeen(uid); err != nil {
		logger.Warn("failed to mark message seen", "uid", uid, "error", err)
	}
}
