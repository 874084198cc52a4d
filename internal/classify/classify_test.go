package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/altomsoft/aimail/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		verdict Verdict
		reason  string
	}{
		{
			name: "bulk header wins over enquiry body",
			in: Input{
				Subject:    "Big savings this week",
				Sender:     "deals@shop.example",
				Body:       "hi, i need pricing for your service",
				RawHeaders: "List-Unsubscribe: <mailto:unsub@shop.example>",
			},
			verdict: VerdictIgnore,
			reason:  "bulk_header",
		},
		{
			name: "bounce is system mail",
			in: Input{
				Subject: "Undelivered Mail Returned to Sender",
				Sender:  "MAILER-DAEMON@mx.example",
				Body:    "This is the mail system at host mx.example.",
			},
			verdict: VerdictSecuritySystem,
			reason:  "bounce",
		},
		{
			name: "bounce applies even to trusted senders",
			in: Input{
				Subject:       "Delivery Status Notification (Failure)",
				Sender:        "postmaster@acme.example",
				Body:          "Diagnostic-Code: smtp; 550 mailbox unavailable",
				TrustedSender: true,
			},
			verdict: VerdictSecuritySystem,
			reason:  "bounce",
		},
		{
			name: "security keyword alone is not a system message",
			in: Input{
				Subject: "Password reset not working",
				Sender:  "alice@customer.example",
				Body:    "hi, the password reset link does nothing, please help",
			},
			verdict: VerdictEnquiry,
			reason:  "positive_intent",
		},
		{
			name: "security keyword with automation header is system mail",
			in: Input{
				Subject:    "Password reset requested",
				Sender:     "accounts@provider.example",
				Body:       "A password reset was requested for your account.",
				RawHeaders: "Precedence: bulk",
			},
			verdict: VerdictSecuritySystem,
			reason:  "security_auto",
		},
		{
			name: "newsletter keywords are ignored",
			in: Input{
				Subject: "April update",
				Sender:  "news@vendor.example",
				Body:    "View in browser. You can manage preferences any time.",
			},
			verdict: VerdictIgnore,
			reason:  "ignored_static",
		},
		{
			name: "service subject is an enquiry",
			in: Input{
				Subject: "Quote for web design",
				Sender:  "bob@customer.example",
				Body:    "see subject",
			},
			verdict: VerdictEnquiry,
			reason:  "subject_enquiry",
		},
		{
			name: "short human question",
			in: Input{
				Subject: "question",
				Sender:  "carol@customer.example",
				Body:    "do you have weekend batches available?",
			},
			verdict: VerdictEnquiry,
			reason:  "short_human",
		},
		{
			name: "short human greeting without question mark",
			in: Input{
				Subject: "about joining",
				Sender:  "dan@customer.example",
				Body:    "hello, kindly share the admission details.",
			},
			verdict: VerdictEnquiry,
			reason:  "positive_intent",
		},
		{
			name: "no signal defaults to ignore",
			in: Input{
				Subject: "fyi",
				Sender:  "someone@random.example",
				Body:    "zxqv",
			},
			verdict: VerdictIgnore,
			reason:  "no_signal",
		},
		{
			name: "trusted sender bypasses the bulk screen",
			in: Input{
				Subject:       "Pricing update for the team",
				Sender:        "ops@acme.example",
				Body:          "please review the new pricing sheet",
				RawHeaders:    "List-Id: internal.acme.example",
				TrustedSender: true,
			},
			verdict: VerdictEnquiry,
			reason:  "subject_enquiry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.in)
			assert.Equal(t, tt.verdict, res.Verdict, "verdict")
			assert.Equal(t, tt.reason, res.Reason, "reason")
		})
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "ignore", VerdictIgnore.String())
	assert.Equal(t, "security_system", VerdictSecuritySystem.String())
	assert.Equal(t, "enquiry", VerdictEnquiry.String())
}

func TestMatchesStaticIgnore(t *testing.T) {
	assert.True(t, MatchesStaticIgnore("from: noreply@service.example"))
	assert.True(t, MatchesStaticIgnore("Click here to UNSUBSCRIBE"))
	assert.True(t, MatchesStaticIgnore("sent via sendgrid.net"))
	assert.False(t, MatchesStaticIgnore("hi, i would like a callback about fees"))
}

func TestIsTrustedSender(t *testing.T) {
	org := &models.Organization{
		Website:      "https://www.acme.example/contact",
		SupportEmail: "support@acme.example",
	}

	assert.True(t, IsTrustedSender("anyone@acme.example", org))
	assert.True(t, IsTrustedSender("SUPPORT@ACME.EXAMPLE", org))
	assert.False(t, IsTrustedSender("anyone@other.example", org))
	assert.False(t, IsTrustedSender("not-an-address", org))
	assert.False(t, IsTrustedSender("", org))

	// The support email's domain overrides the website domain.
	org = &models.Organization{
		Website:      "https://marketing-site.example",
		SupportEmail: "help@real-domain.example",
	}
	assert.True(t, IsTrustedSender("sales@real-domain.example", org))
	assert.False(t, IsTrustedSender("sales@marketing-site.example", org))

	// Website alone works when no support email is set.
	org = &models.Organization{Website: "acme.example"}
	assert.True(t, IsTrustedSender("team@acme.example", org))
}
