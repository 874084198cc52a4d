package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToText(t *testing.T) {
	html := `
		<html>
		<head><title>ignored</title><style>p { color: red; }</style></head>
		<body>
			<script>alert("nope")</script>
			<h1>Fees</h1>
			<p>The course fee is <b>5000</b>.</p>
			<ul><li>Duration: 3 months</li><li>Mode: online</li></ul>
		</body>
		</html>`

	text, err := HTMLToText(html)
	require.NoError(t, err)

	assert.Contains(t, text, "Fees")
	assert.Contains(t, text, "The course fee is 5000.")
	assert.Contains(t, text, "Duration: 3 months")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "<p>")
}

func TestHTMLToTextBlockBreaks(t *testing.T) {
	text, err := HTMLToText(`<div>first</div><div>second</div>`)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", text)
}

func TestHTMLToTextStripsInvisibleCharacters(t *testing.T) {
	text, err := HTMLToText("<p>he\u200bllo\ufeff</p>")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestHTMLToTextEmpty(t *testing.T) {
	text, err := HTMLToText("")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestHTMLToTextPlainInput(t *testing.T) {
	text, err := HTMLToText("just a sentence")
	require.NoError(t, err)
	assert.Equal(t, "just a sentence", text)
}
