// Package reply builds generation prompts from tenant configuration
// and resolves the generated text into the message that actually goes
// out.
package reply

import (
	"fmt"
	"strings"

	"github.com/altomsoft/aimail/pkg/models"
)

// DeclineSentinel is the token the model emits to decline automated or
// system mail.
const DeclineSentinel = "SKIP_REPLY"

// FailurePlaceholder is used when generation itself errors; the OUT
// audit row still records what would have been sent.
const FailurePlaceholder = "(generation failed) Please try again later."

const basePolicy = `You are an AI email support assistant inside a multi-tenant SaaS platform.

NON-NEGOTIABLE RULES:
1) Use ONLY the provided Knowledge Base (KB) for factual answers (fees, duration, pricing, policies, contacts, addresses, timings, placements, refund, EMI).
2) If the requested information EXISTS in KB, you MUST answer it clearly.
3) If the exact detail is NOT in KB, ask 1-2 short clarification questions. Do NOT guess.
4) If the email is an OTP, invoice, login alert, newsletter, security notification, or automated system message, output exactly: SKIP_REPLY
5) Keep replies concise, structured, and actionable. Prefer bullet points.`

// BuildPrompt assembles the system instructions and user content for
// one generation call. The fixed platform policy sits under the org's
// own system prompt, its per-tenant policy block and its KB text.
func BuildPrompt(org *models.Organization, subject, sender, body, threadContext string) (system, user string) {
	orgName := strings.TrimSpace(org.Name)
	if orgName == "" {
		orgName = "our company"
	}
	supportName := strings.TrimSpace(org.SupportName)
	if supportName == "" {
		supportName = "Support Team"
	}
	supportEmail := strings.TrimSpace(org.SupportEmail)
	website := strings.TrimSpace(org.Website)
	kbText := strings.TrimSpace(org.KBText)

	orgPolicy := fmt.Sprintf(`You are the official email support assistant for %s.

Hard rules:
- Use ONLY the Knowledge Base (KB) below for factual details such as courses, fees, duration, syllabus, schedules, admissions, contact, and address.
- If the exact fee or detail is not present in KB, do NOT guess. Clearly state that it is not listed and ask 1-2 specific follow-up questions.
- Never use placeholders. Address the user neutrally (Hello or Hi).
- Keep the reply concise (5-10 lines), clear, and helpful.
- End every reply exactly with:
  Best regards,
  %s
  %s`, orgName, supportName, supportEmail)

	var parts []string
	parts = append(parts, basePolicy)
	if sysPrompt := strings.TrimSpace(org.SystemPrompt); sysPrompt != "" {
		parts = append(parts, sysPrompt)
	}
	parts = append(parts, orgPolicy, "KB:\n"+kbText)
	system = strings.Join(parts, "\n\n")

	user = fmt.Sprintf(`INCOMING EMAIL
Subject: %s
From: %s

Message:
%s

ORG WEBSITE (reference only):
%s

RECENT THREAD CONTEXT (latest first):
%s

ORG KNOWLEDGE BASE (KB):
%s
`,
		subject, sender, body,
		orEmpty(website, "(not provided)"),
		orEmpty(threadContext, "(none)"),
		orEmpty(kbText, "(not provided)"),
	)
	return system, user
}

// orEmpty returns s, or fallback when s is empty.
func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Fallback is the safe generic reply used when the model declines a
// message the classifier already judged a genuine enquiry. Local
// classification outranks the model once a human made it this far.
func Fallback(org *models.Organization) string {
	supportName := strings.TrimSpace(org.SupportName)
	if supportName == "" {
		supportName = "Support Team"
	}

	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("Thanks for reaching out. We received your enquiry and we're happy to help.\n")
	b.WriteString("Could you please share a bit more detail about what you need (service/course/topic) and your preferred mode/timing?\n")
	b.WriteString("If you want a callback, share your phone number (optional).\n\n")
	b.WriteString("Best regards,\n")
	b.WriteString(supportName)
	if supportEmail := strings.TrimSpace(org.SupportEmail); supportEmail != "" {
		b.WriteString("\n" + supportEmail)
	}
	return b.String()
}

// Resolve maps generated text to the outgoing reply, substituting the
// fallback when the model emitted the decline sentinel.
func Resolve(generated string, org *models.Organization) string {
	if strings.EqualFold(strings.TrimSpace(generated), DeclineSentinel) {
		return Fallback(org)
	}
	return generated
}
