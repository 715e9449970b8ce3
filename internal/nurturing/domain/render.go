package domain

import (
	"regexp"
	"strings"

	"leadflow_backend/platform/sanitize"
)

// LinkKey is the placeholder that expands to a tracked short link.
const LinkKey = "link"

var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render substitutes {{key}} placeholders. Unknown keys render empty and
// values are cleaned before substitution.
func Render(body string, vars map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholderRegex.FindStringSubmatch(match)[1]
		return sanitize.Placeholder(vars[key])
	})
}

// UsesKey reports whether body references {{key}}.
func UsesKey(body, key string) bool {
	for _, m := range placeholderRegex.FindAllStringSubmatch(body, -1) {
		if m[1] == key {
			return true
		}
	}
	return false
}

// Delivery is how a rendered step goes out.
type Delivery string

const (
	DeliveryText     Delivery = "text"
	DeliveryDocument Delivery = "document"
)

// DetectDelivery picks document delivery for PDF media, text otherwise. A
// template without a media URL is always text, whatever its mime says.
func DetectDelivery(mediaURL, mime *string) Delivery {
	if mediaURL == nil || strings.TrimSpace(*mediaURL) == "" {
		return DeliveryText
	}
	if mime != nil && strings.EqualFold(strings.TrimSpace(*mime), "application/pdf") {
		return DeliveryDocument
	}
	u := strings.ToLower(strings.TrimSpace(*mediaURL))
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if strings.HasSuffix(u, ".pdf") {
		return DeliveryDocument
	}
	return DeliveryText
}
