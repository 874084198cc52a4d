package thread

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altomsoft/aimail/pkg/models"
)

func TestKeyPrefersInReplyTo(t *testing.T) {
	key := Key(1, "alice@example.com", "Re: Pricing", "<parent@mx.example>", "<root@mx.example> <parent@mx.example>")
	assert.Equal(t, "m:<parent@mx.example>", key)
}

func TestKeyFallsBackToLastReference(t *testing.T) {
	key := Key(1, "alice@example.com", "Re: Pricing", "", "<root@mx.example> <parent@mx.example>")
	assert.Equal(t, "m:<parent@mx.example>", key)
}

func TestKeySubjectFingerprint(t *testing.T) {
	a := Key(1, "alice@example.com", "Pricing question", "", "")
	b := Key(1, "Alice@Example.COM", "Re: Re: pricing   question", "", "")
	c := Key(2, "alice@example.com", "Pricing question", "", "")
	d := Key(1, "alice@example.com", "A different subject", "", "")

	// Same org, sender and normalized subject collapse to one key.
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	require.True(t, strings.HasPrefix(a, "s:"))
	assert.Len(t, a, 2+16)
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Re: Hello", "hello"},
		{"RE: FW: Fwd:   Hello  World", "hello world"},
		{"  Plain subject ", "plain subject"},
		{"", ""},
		{"Reminder: meeting", "reminder: meeting"}, // not a Re: prefix
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSubject(tt.in), "input %q", tt.in)
	}

	long := strings.Repeat("x", 300)
	assert.Len(t, NormalizeSubject(long), 180)
}

func TestExtractMessageIDs(t *testing.T) {
	ids := ExtractMessageIDs("<a@x> <b@y>\n <c@z>")
	assert.Equal(t, []string{"<a@x>", "<b@y>", "<c@z>"}, ids)
	assert.Nil(t, ExtractMessageIDs(""))
	assert.Nil(t, ExtractMessageIDs("no ids here"))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@mx.example", NormalizeMessageID(" <ABC@mx.example> "))
	assert.Equal(t, "abc@mx.example", NormalizeMessageID("abc@mx.example"))
	assert.Equal(t, "", NormalizeMessageID(""))
}

func TestFormatContext(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	turns := []*models.AuditTurn{
		{Direction: models.DirectionIn, BodyText: "What are the fees?", CreatedAt: now},
		{Direction: models.DirectionOut, BodyText: "The course fee is 5000.", CreatedAt: now.Add(time.Minute)},
		{Direction: models.DirectionIn, BodyText: "Do you offer EMI?", CreatedAt: now.Add(2 * time.Minute)},
	}

	out := FormatContext(turns)
	assert.Contains(t, out, "[1] (2025-03-01 10:00:00)")
	assert.Contains(t, out, "Customer:\nWhat are the fees?")
	assert.Contains(t, out, "Assistant:\nThe course fee is 5000.")

	// The unanswered trailing customer turn is rendered as pending.
	assert.Contains(t, out, "Do you offer EMI?")
	assert.Contains(t, out, "(pending)")

	assert.Empty(t, FormatContext(nil))
}

func TestFormatContextTruncatesLongTurns(t *testing.T) {
	long := strings.Repeat("a", 5000)
	turns := []*models.AuditTurn{
		{Direction: models.DirectionIn, BodyText: long, CreatedAt: time.Now()},
	}
	out := FormatContext(turns)
	assert.Less(t, len(out), 2000)
	assert.Contains(t, out, strings.Repeat("a", turnCharBudget))
	assert.NotContains(t, out, strings.Repeat("a", turnCharBudget+1))
}
