// Package outbound sends generated replies over authenticated SMTP
// with a bounded retry. Exhaustion is reported as false, not an error,
// so the caller can still record audit state and a failure reason.
package outbound

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/altomsoft/aimail/pkg/models"
)

const (
	maxAttempts = 3
	retryDelay  = 3 * time.Second
)

// Sender delivers replies for tenant accounts.
type Sender struct {
	logger     *slog.Logger
	retryDelay time.Duration

	// transport is swapped in tests
	transport func(account *models.EmailAccount, to string, raw []byte) error
}

// NewSender creates an SMTP sender.
func NewSender(logger *slog.Logger) *Sender {
	s := &Sender{
		logger:     logger.With("component", "outbound"),
		retryDelay: retryDelay,
	}
	s.transport = s.smtpSend
	return s
}

// Send builds and delivers one plain-text reply, retrying up to three
// times with a fixed delay. Returns whether delivery succeeded.
func (s *Sender) Send(account *models.EmailAccount, to, subject, body string) bool {
	if to == "" {
		return false
	}

	raw, err := buildMessage(account, to, subject, body)
	if err != nil {
		s.logger.Error("failed to build outbound message", "to", to, "error", err)
		return false
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.transport(account, to, raw)
		if err == nil {
			s.logger.Info("reply delivered", "to", to, "attempt", attempt)
			return true
		}
		s.logger.Warn("smtp attempt failed", "to", to, "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			time.Sleep(s.retryDelay)
		}
	}
	return false
}

func (s *Sender) smtpSend(account *models.EmailAccount, to string, raw []byte) error {
	c, err := smtp.DialStartTLS(account.SMTPAddr(), &tls.Config{ServerName: account.SMTPHost})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	auth := sasl.NewPlainClient("", account.Email, account.IMAPPassword)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := c.SendMail(account.Email, []string{to}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	return c.Quit()
}

func buildMessage(account *models.EmailAccount, to, subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: account.FromName, Address: account.Email}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}
