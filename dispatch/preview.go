package dispatch

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// previewMaxLen bounds the notification body; FCM truncates long bodies
// anyway, this keeps the cut point deliberate.
const previewMaxLen = 128

var stripPolicy = bluemonday.StrictPolicy()

// Preview flattens message text into a single plain-text line suitable for
// a notification body: markdown is rendered, every tag stripped, whitespace
// collapsed and the result truncated.
func Preview(text string) string {
	rendered := blackfriday.Run([]byte(text))
	plain := stripPolicy.Sanitize(string(rendered))
	plain = html.UnescapeString(plain)
	plain = strings.Join(strings.Fields(plain), " ")

	runes := []rune(plain)
	if len(runes) > previewMaxLen {
		plain = string(runes[:previewMaxLen-1]) + "…"
	}
	return plain
}
