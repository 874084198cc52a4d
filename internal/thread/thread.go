// Package thread derives stable conversation identities from email
// headers and formats prior turns for the generation prompt.
package thread

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/altomsoft/aimail/pkg/models"
)

var (
	subjectPrefixRegex = regexp.MustCompile(`(?i)^\s*((re|fw|fwd)\s*:\s*)+`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	messageIDRegex     = regexp.MustCompile(`<[^>]+>`)
)

// Per-side character budget when formatting thread context, so prompt
// size stays bounded regardless of thread length.
const turnCharBudget = 1200

// Key derives the stable thread key. A header-linked reply always keys
// on its parent message id, surviving subject edits; a headerless
// message degenerates to a deterministic subject/sender fingerprint.
func Key(orgID int64, senderEmail, subject, inReplyTo, references string) string {
	if inReplyTo = strings.TrimSpace(inReplyTo); inReplyTo != "" {
		return "m:" + inReplyTo
	}
	if refs := ExtractMessageIDs(references); len(refs) > 0 {
		return "m:" + refs[len(refs)-1]
	}

	raw := fmt.Sprintf("%d|%s|%s", orgID, strings.ToLower(strings.TrimSpace(senderEmail)), NormalizeSubject(subject))
	sum := sha1.Sum([]byte(raw))
	return "s:" + hex.EncodeToString(sum[:])[:16]
}

// NormalizeSubject strips repeated Re:/Fw:/Fwd: prefixes, lowercases
// and collapses whitespace.
func NormalizeSubject(s string) string {
	s = strings.TrimSpace(s)
	s = subjectPrefixRegex.ReplaceAllString(s, "")
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRegex.ReplaceAllString(s, " ")
	if len(s) > 180 {
		s = s[:180]
	}
	return s
}

// ExtractMessageIDs returns every <...> token from a References header.
func ExtractMessageIDs(header string) []string {
	if header == "" {
		return nil
	}
	return messageIDRegex.FindAllString(header, -1)
}

// NormalizeMessageID lowercases a Message-ID and strips the angle
// brackets, giving one canonical form for dedup lookups.
func NormalizeMessageID(mid string) string {
	mid = strings.ToLower(strings.TrimSpace(mid))
	if strings.HasPrefix(mid, "<") && strings.HasSuffix(mid, ">") {
		mid = strings.TrimSpace(mid[1 : len(mid)-1])
	}
	return mid
}

// FormatContext renders prior turns as numbered Customer/Assistant
// exchanges, oldest first, each side truncated to the character budget.
// A trailing customer message without an answer yet is rendered with a
// pending marker.
func FormatContext(turns []*models.AuditTurn) string {
	if len(turns) == 0 {
		return ""
	}

	var chunks []string
	var pendingIn, pendingTime string
	i := 1

	for _, turn := range turns {
		body := strings.TrimSpace(turn.BodyText)
		ts := turn.CreatedAt.Format("2006-01-02 15:04:05")

		switch turn.Direction {
		case models.DirectionIn:
			pendingIn = body
			pendingTime = ts
		case models.DirectionOut:
			customer := truncate(pendingIn)
			assistant := truncate(body)
			if customer != "" || assistant != "" {
				when := pendingTime
				if when == "" {
					when = ts
				}
				chunks = append(chunks, fmt.Sprintf("[%d] (%s)\nCustomer:\n%s\n\nAssistant:\n%s\n", i, when, customer, assistant))
				i++
			}
			pendingIn = ""
			pendingTime = ""
		}
	}

	if pendingIn != "" {
		chunks = append(chunks, fmt.Sprintf("[%d] (%s)\nCustomer:\n%s\n\nAssistant:\n(pending)\n", i, pendingTime, truncate(pendingIn)))
	}

	return strings.TrimSpace(strings.Join(chunks, "\n"))
}

func truncate(s string) string {
	if len(s) > turnCharBudget {
		return s[:turnCharBudget]
	}
	return s
}
