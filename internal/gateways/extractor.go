package gateways

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/altf4-games/credshield-node/internal/core/domain"
	"github.com/altf4-games/credshield-node/internal/core/services"
	"github.com/altf4-games/credshield-node/internal/log"
)

// The model is asked for a strict two-line answer so parsing stays trivial.
const extractionPrompt = `Analyze this academic document (transcript, marksheet or certificate).
Extract the student's full name and the GPA or CGPA value.
If the GPA is on a 4.0 scale, return it as-is. If you find a percentage, divide it by 10.
Reply with exactly two lines and nothing else:
NAME: <full name>
GPA: <number>`

const fourPointScaleMax = 4.0

// ExtractorConfig configures the document extraction client.
type ExtractorConfig struct {
	ServerURL       string
	APIKey          string
	Model           string
	ResponseTimeout time.Duration
}

// DocumentExtractor sends a transcript image or PDF to the external vision
// model and parses the name and GPA out of its reply. GPAs reported on the
// 4.0 scale are normalized to the 10-point scale the pipeline works in.
type DocumentExtractor struct {
	cfg  ExtractorConfig
	base *http.Client
}

// NewDocumentExtractor returns an extraction client with retry behavior.
func NewDocumentExtractor(cfg ExtractorConfig) *DocumentExtractor {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.HTTPClient.Timeout = cfg.ResponseTimeout
	return &DocumentExtractor{cfg: cfg, base: rc.StandardClient()}
}

type generatePart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData,omitempty"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Extract runs the vision model over document and returns the subject name
// and GPA. Every failure surfaces as an ExtractionError; nothing here ever
// reaches the proof engine.
func (e *DocumentExtractor) Extract(ctx context.Context, document []byte, mimeType string) (*domain.ExtractedDocument, error) {
	if len(document) == 0 {
		return nil, &services.ExtractionError{Cause: errors.New("empty document")}
	}

	text, err := e.generate(ctx, document, mimeType)
	if err != nil {
		return nil, &services.ExtractionError{Cause: err}
	}

	name, gpa, err := parseExtraction(text)
	if err != nil {
		return nil, &services.ExtractionError{Cause: err}
	}

	normalized := normalizeGpa(gpa)
	if normalized != gpa {
		log.Debug(ctx, "normalized 4.0-scale gpa", "raw", gpa, "normalized", normalized)
	}

	return &domain.ExtractedDocument{Name: name, Gpa: normalized}, nil
}

func (e *DocumentExtractor) generate(ctx context.Context, document []byte, mimeType string) (string, error) {
	inline := &struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	}{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(document)}
	req := generateRequest{Contents: []generateContent{{
		Parts: []generatePart{
			{Text: extractionPrompt},
			{InlineData: inline},
		},
	}}}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(e.cfg.ServerURL, "/"), e.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", e.cfg.APIKey)

	resp, err := e.base.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision model returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("vision model returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// parseExtraction reads the strict NAME/GPA two-line reply.
func parseExtraction(text string) (string, float64, error) {
	var name string
	gpa := -1.0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "NAME:"):
			name = strings.TrimSpace(line[len("NAME:"):])
		case strings.HasPrefix(strings.ToUpper(line), "GPA:"):
			v, err := strconv.ParseFloat(strings.TrimSpace(line[len("GPA:"):]), 64)
			if err != nil {
				return "", 0, fmt.Errorf("could not parse gpa from model reply: %w", err)
			}
			gpa = v
		}
	}

	if name == "" {
		return "", 0, errors.New("no name found in document")
	}
	if gpa < 0 || gpa > 10 {
		return "", 0, errors.New("no valid gpa found in document")
	}
	return name, gpa, nil
}

// normalizeGpa maps 4.0-scale values onto the 10-point scale.
func normalizeGpa(gpa float64) float64 {
	if gpa <= fourPointScaleMax {
		return gpa / fourPointScaleMax * 10
	}
	return gpa
}
