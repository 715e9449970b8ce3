package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"name": "Anna <b>de Vries</b>",
		"link": "https://go.example/l/abc",
	}

	got := Render("Hi {{name}}, see {{ link }}. {{unknown}}done", vars)
	assert.Equal(t, "Hi Anna de Vries, see https://go.example/l/abc. done", got)
}

func TestRenderDoesNotExpandNestedPlaceholders(t *testing.T) {
	got := Render("{{name}}", map[string]string{"name": "{{link}}"})
	assert.Equal(t, "link", got)
}

func TestUsesKey(t *testing.T) {
	assert.True(t, UsesKey("click {{ link }}", LinkKey))
	assert.False(t, UsesKey("no links {{linkText}}", LinkKey))
}

func TestDetectDelivery(t *testing.T) {
	pdfMime := "application/PDF"
	pngMime := "image/png"
	pdfURL := "https://cdn.example/brochure.PDF?v=2"
	s3URL := "s3://docs/offer.pdf"
	imgURL := "https://cdn.example/photo.png"
	blank := "  "

	tests := []struct {
		name string
		url  *string
		mime *string
		want Delivery
	}{
		{"no media", nil, nil, DeliveryText},
		{"pdf mime without url", nil, &pdfMime, DeliveryText},
		{"pdf mime with blank url", &blank, &pdfMime, DeliveryText},
		{"pdf mime", &imgURL, &pdfMime, DeliveryDocument},
		{"pdf suffix with query", &pdfURL, nil, DeliveryDocument},
		{"object storage pdf", &s3URL, &pngMime, DeliveryDocument},
		{"image", &imgURL, &pngMime, DeliveryText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelivery(tt.url, tt.mime))
		})
	}
}
