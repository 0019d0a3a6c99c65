package receipt

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	receiptPolicyOnce sync.Once
	receiptPolicy     *bluemonday.Policy
)

// sanitizeMarkup strips anything a document author could smuggle into the
// receipt through attribute values or validator output.
func sanitizeMarkup(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(receiptSanitizer().Sanitize(trimmed))
}

func receiptSanitizer() *bluemonday.Policy {
	receiptPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements(
			"h1", "h2", "h3", "p", "br", "hr", "strong", "em", "code", "pre",
			"ul", "ol", "li", "table", "thead", "tbody", "tr", "th", "td",
		)
		policy.AllowAttrs("align").OnElements("th", "td")
		receiptPolicy = policy
	})
	return receiptPolicy
}
