package classify

import "strings"

// Marketing/newsletter-only keywords. Login/OTP/password terms do NOT
// belong here: they appear in normal email footers and are handled by
// the stricter security rule instead.
var ignoreKeywords = []string{
	"unsubscribe", "manage preferences", "preference center", "view in browser",
	"nurture", "campaign", "offer", "promotion", "newsletter",
	"webinar", "join us", "register", "event", "summit",
	"do not reply", "no reply", "noreply", "donotreply",
	"privacy policy", "powered by", "email preferences", "mailing list",
}

// Bulk sender patterns (domains / platforms)
var ignoreSenders = []string{
	"no-reply", "noreply", "donotreply", "mailer-daemon", "postmaster",
	"bounce@", "secureserver.net", "go.", "marketing@", "news@", "updates@",
	"sender-sib.com", "sibmail.com", "sendinblue", "brevo",
	"sender-sib", "sendib", "mailchimp", "sendgrid.net", "campaign-", "email.",
}

// Bulk signals checked ONLY against subject+sender+headers, never the
// body: list footers legitimately mention "unsubscribe".
var bulkHeaderSignals = []string{
	"list-unsubscribe", "list-id", "list-help", "list-post",
	"unsubscribe", "manage preferences", "view in browser",
	"you are receiving this email because", "email preferences",
	"newsletter", "promotion", "campaign", "marketing",
}

// Strong automated/system header signals.
var autoHeaderSignals = []string{
	"auto-submitted: auto-generated",
	"auto-submitted: auto-replied",
	"x-autoreply",
	"x-auto-response-suppress",
	"precedence: bulk",
	"precedence: junk",
	"precedence: list",
	"list-id:",
	"list-unsubscribe:",
	"feedback-id:",
}

// Bounce / DSN / delivery failure patterns. Always system mail.
var bounceSignals = []string{
	"mailer-daemon", "postmaster@",
	"delivery status notification", "undelivered mail", "returned mail",
	"diagnostic-code:", "final-recipient:", "x-failed-recipients:",
	"report-type=delivery-status", "message/delivery-status",
}

// Security-alert style keywords. Never enough alone: a human writing
// the security team about a password reset is a real enquiry.
var securityKeywords = []string{
	"security alert", "suspicious sign", "new sign-in", "new login",
	"unusual activity", "verify your account",
	"password reset", "reset your password",
	"2-step verification", "two-step verification",
	"verification code", "one-time password", "otp",
}

var subjectEnquirySignals = []string{
	"web", "website", "design", "developer", "consultant",
	"seo", "marketing", "app", "service", "quote", "pricing", "cost", "fees",
}

var positiveIntentSignals = []string{
	"enquiry", "inquiry", "quote", "quotation", "estimate",
	"pricing", "price", "fees", "fee", "cost",
	"demo", "trial", "meeting", "schedule", "call", "callback",
	"support", "help", "issue", "problem", "error", "unable", "not working",
	"refund", "cancel",
	"admission", "join", "apply", "register",
	"need", "require", "looking for", "want to", "i want", "i need",
	"web design", "web developer", "developer", "consultant",
	"ui", "ux", "digital marketing", "branding", "app development",
}

var humanGreetingSignals = []string{
	"hi", "hello", "dear", "please", "kindly", "thanks", "thank you",
}

func containsAny(text string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return n, true
		}
	}
	return "", false
}

// MatchesStaticIgnore reports whether text trips the static marketing
// keyword or bulk-sender lists. The mailbox candidate scan uses it to
// skip obvious bulk mail on headers alone.
func MatchesStaticIgnore(text string) bool {
	text = strings.ToLower(text)
	if _, ok := containsAny(text, ignoreKeywords); ok {
		return true
	}
	_, ok := containsAny(text, ignoreSenders)
	return ok
}
