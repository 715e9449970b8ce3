// Package domain holds tracked short links and click classification.
package domain

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// codeBytes yields 8-character codes.
const codeBytes = 6

// Link is a short link minted for one lead.
type Link struct {
	ID        uuid.UUID
	Code      string
	LeadID    uuid.UUID
	SalesID   uuid.UUID
	TargetURL string
	CreatedAt time.Time
}

// ClickMeta describes an incoming request on a short link.
type ClickMeta struct {
	IP        string
	UserAgent string
	Method    string
}

// NewCode returns a random URL-safe link code.
func NewCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Link unfurlers of chat apps and social networks fetch links before a human does.
var crawlerAgents = []string{
	"whatsapp",
	"facebookexternalhit",
	"facebot",
	"twitterbot",
	"slackbot",
	"telegrambot",
	"discordbot",
	"linkedinbot",
	"skypeuripreview",
	"googlebot",
	"bingbot",
	"applebot",
	"embedly",
	"bot/",
	"crawler",
	"spider",
	"preview",
}

// IsPreview reports whether a click came from a link unfurler rather than a person.
func IsPreview(meta ClickMeta) bool {
	if meta.Method == http.MethodHead {
		return true
	}
	ua := strings.ToLower(meta.UserAgent)
	for _, marker := range crawlerAgents {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
