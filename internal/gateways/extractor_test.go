package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altf4-games/credshield-node/internal/core/services"
)

func extractionServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.NotEmpty(t, req.Contents[0].Parts[1].InlineData.Data)

		body := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{map[string]any{"text": reply}},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newTestExtractor(url string) *DocumentExtractor {
	return NewDocumentExtractor(ExtractorConfig{
		ServerURL:       url,
		APIKey:          "test-key",
		Model:           "gemini-1.5-flash",
		ResponseTimeout: 5 * time.Second,
	})
}

func TestExtractParsesModelReply(t *testing.T) {
	srv := extractionServer(t, "NAME: Ada Lovelace\nGPA: 8.75")
	defer srv.Close()

	doc, err := newTestExtractor(srv.URL).Extract(context.Background(), []byte("pdf-bytes"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", doc.Name)
	assert.InDelta(t, 8.75, doc.Gpa, 1e-9)
}

func TestExtractNormalizesFourPointScale(t *testing.T) {
	srv := extractionServer(t, "NAME: Ada Lovelace\nGPA: 3.5")
	defer srv.Close()

	doc, err := newTestExtractor(srv.URL).Extract(context.Background(), []byte("pdf-bytes"), "application/pdf")
	require.NoError(t, err)
	assert.InDelta(t, 8.75, doc.Gpa, 1e-9)
}

func TestExtractRejectsUnparseableReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "no name", reply: "GPA: 8.75"},
		{name: "no gpa", reply: "NAME: Ada Lovelace"},
		{name: "gpa out of range", reply: "NAME: Ada Lovelace\nGPA: 42"},
		{name: "gpa not a number", reply: "NAME: Ada Lovelace\nGPA: eight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := extractionServer(t, tt.reply)
			defer srv.Close()

			var extErr *services.ExtractionError
			_, err := newTestExtractor(srv.URL).Extract(context.Background(), []byte("pdf-bytes"), "application/pdf")
			require.ErrorAs(t, err, &extErr)
		})
	}
}

func TestExtractRejectsEmptyDocument(t *testing.T) {
	var extErr *services.ExtractionError
	_, err := newTestExtractor("http://localhost:1").Extract(context.Background(), nil, "application/pdf")
	require.ErrorAs(t, err, &extErr)
}

func TestNormalizeGpa(t *testing.T) {
	assert.InDelta(t, 10.0, normalizeGpa(4.0), 1e-9)
	assert.InDelta(t, 5.0, normalizeGpa(2.0), 1e-9)
	assert.InDelta(t, 8.2, normalizeGpa(8.2), 1e-9)
}
