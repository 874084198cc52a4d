// Package classify decides whether an inbound email deserves an
// automated reply. It is a pure function over the message text plus a
// trusted-sender flag; all verdicts carry a diagnostic reason code.
package classify

import (
	"strings"

	"github.com/altomsoft/aimail/pkg/models"
)

// Verdict is the classification outcome.
type Verdict int

const (
	// VerdictIgnore marks bulk/marketing/system mail with no reply value.
	VerdictIgnore Verdict = iota
	// VerdictSecuritySystem marks bounces, DSNs and automated security
	// notifications. Never replied to, even for trusted senders.
	VerdictSecuritySystem
	// VerdictEnquiry marks a genuine customer message worth answering.
	VerdictEnquiry
)

func (v Verdict) String() string {
	switch v {
	case VerdictSecuritySystem:
		return "security_system"
	case VerdictEnquiry:
		return "enquiry"
	default:
		return "ignore"
	}
}

// Input is everything the classifier looks at.
type Input struct {
	Subject       string
	Sender        string // full From header value
	Body          string
	RawHeaders    string
	TrustedSender bool
}

// Result is a verdict plus the tag of the rule that fired.
type Result struct {
	Verdict Verdict
	Reason  string
}

type ruleContext struct {
	subject     string
	body        string
	headerCombo string // subject + sender + headers, lowercased
	combined    string // headerCombo + body
}

// rule is one ordered classification check. trustable rules are
// bypassed for trusted senders; the bounce rule is absolute.
type rule struct {
	tag       string
	verdict   Verdict
	trustable bool
	match     func(c *ruleContext) bool
}

var rules = []rule{
	{
		tag:       "bulk_header",
		verdict:   VerdictIgnore,
		trustable: true,
		match: func(c *ruleContext) bool {
			_, ok := containsAny(c.headerCombo, bulkHeaderSignals)
			return ok
		},
	},
	{
		tag:     "bounce",
		verdict: VerdictSecuritySystem,
		match: func(c *ruleContext) bool {
			_, ok := containsAny(c.combined, bounceSignals)
			return ok
		},
	},
	{
		tag:       "security_auto",
		verdict:   VerdictSecuritySystem,
		trustable: true,
		match: func(c *ruleContext) bool {
			// A security keyword alone is not enough; it must co-occur
			// with an automation header signal.
			if _, ok := containsAny(c.combined, securityKeywords); !ok {
				return false
			}
			_, ok := containsAny(c.combined, autoHeaderSignals)
			return ok
		},
	},
	{
		tag:       "ignored_static",
		verdict:   VerdictIgnore,
		trustable: true,
		match: func(c *ruleContext) bool {
			return MatchesStaticIgnore(c.combined)
		},
	},
	{
		tag:     "subject_enquiry",
		verdict: VerdictEnquiry,
		match: func(c *ruleContext) bool {
			if len(c.subject) < 3 || len(c.subject) > 90 {
				return false
			}
			_, ok := containsAny(c.subject, subjectEnquirySignals)
			return ok
		},
	},
	{
		tag:     "positive_intent",
		verdict: VerdictEnquiry,
		match: func(c *ruleContext) bool {
			_, ok := containsAny(c.combined, positiveIntentSignals)
			return ok
		},
	},
	{
		tag:     "short_human",
		verdict: VerdictEnquiry,
		match: func(c *ruleContext) bool {
			if len(c.body) < 20 || len(c.body) > 600 {
				return false
			}
			if strings.Contains(c.body, "?") {
				return true
			}
			_, ok := containsAny(c.body, humanGreetingSignals)
			return ok
		},
	},
}

// Classify runs the ordered rule list; the first matching rule wins.
// With no match the message is ignored with reason "no_signal".
func Classify(in Input) Result {
	c := newRuleContext(in)
	for _, r := range rules {
		if in.TrustedSender && r.trustable {
			continue
		}
		if r.match(c) {
			return Result{Verdict: r.verdict, Reason: r.tag}
		}
	}
	return Result{Verdict: VerdictIgnore, Reason: "no_signal"}
}

func newRuleContext(in Input) *ruleContext {
	subject := strings.ToLower(strings.TrimSpace(in.Subject))
	sender := strings.ToLower(strings.TrimSpace(in.Sender))
	body := strings.ToLower(strings.TrimSpace(in.Body))
	headers := strings.ToLower(strings.TrimSpace(in.RawHeaders))

	headerCombo := strings.Join([]string{subject, sender, headers}, "\n")
	return &ruleContext{
		subject:     subject,
		body:        body,
		headerCombo: headerCombo,
		combined:    headerCombo + "\n" + body,
	}
}

// IsTrustedSender reports whether the sender matches the org's support
// identity or domain. Trusted senders bypass the bulk, security-keyword
// and static-ignore rules.
func IsTrustedSender(senderEmail string, org *models.Organization) bool {
	se := strings.ToLower(strings.TrimSpace(senderEmail))
	if se == "" || !strings.Contains(se, "@") {
		return false
	}

	supportEmail := strings.ToLower(strings.TrimSpace(org.SupportEmail))

	var orgDomain string
	website := strings.ToLower(strings.TrimSpace(org.Website))
	if idx := strings.Index(website, "://"); idx >= 0 {
		website = website[idx+3:]
	}
	if website != "" {
		orgDomain, _, _ = strings.Cut(website, "/")
	}
	if strings.Contains(supportEmail, "@") {
		orgDomain = supportEmail[strings.Index(supportEmail, "@")+1:]
	}
	orgDomain = strings.TrimPrefix(strings.TrimSpace(orgDomain), "www.")

	if orgDomain != "" && strings.HasSuffix(se, "@"+orgDomain) {
		return true
	}
	return supportEmail != "" && se == supportEmail
}
