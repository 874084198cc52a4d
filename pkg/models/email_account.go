package models

import (
	"fmt"
	"time"
)

// EmailAccount represents one inbound/outbound mailbox owned by a tenant.
// Created and updated by the admin surface; read-only to the worker.
type EmailAccount struct {
	ID           int64     `db:"id"`
	OrgID        int64     `db:"org_id"`
	Label        string    `db:"label"`
	Email        string    `db:"email"`
	IMAPHost     string    `db:"imap_host"`
	IMAPPort     int       `db:"imap_port"`
	IMAPUsername string    `db:"imap_username"`
	IMAPPassword string    `db:"imap_password"`
	SMTPHost     string    `db:"smtp_host"`
	SMTPPort     int       `db:"smtp_port"`
	FromName     string    `db:"from_name"`
	CreatedAt    time.Time `db:"created_at"`
}

// IMAPAddr returns the host:port dial address for the IMAP endpoint.
func (a *EmailAccount) IMAPAddr() string {
	port := a.IMAPPort
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", a.IMAPHost, port)
}

// SMTPAddr returns the host:port dial address for the SMTP endpoint.
func (a *EmailAccount) SMTPAddr() string {
	port := a.SMTPPort
	if port == 0 {
		port = 587
	}
	return fmt.Sprintf("%s:%d", a.SMTPHost, port)
}
