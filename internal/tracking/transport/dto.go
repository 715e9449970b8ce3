package transport

import (
	"time"

	"github.com/google/uuid"
)

// MintRequest creates a tracked link. An empty TargetURL uses the landing page.
type MintRequest struct {
	TargetURL string `json:"targetUrl" validate:"omitempty,url,max=2048"`
}

// LinkResponse represents a tracked link in API responses.
type LinkResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	ShortURL  string    `json:"shortUrl"`
	LeadID    uuid.UUID `json:"leadId"`
	TargetURL string    `json:"targetUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
