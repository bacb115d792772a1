// Package api exposes the issuance and redemption pipelines over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/altf4-games/credshield-node/internal/core/ports"
	"github.com/altf4-games/credshield-node/internal/core/services"
	"github.com/altf4-games/credshield-node/internal/health"
	"github.com/altf4-games/credshield-node/internal/log"
)

// maxDocumentSize bounds transcript uploads.
const maxDocumentSize = 10 << 20

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

// Server wires the HTTP surface to the verification orchestrator.
type Server struct {
	verification ports.VerificationService
	health       *health.Status
}

// NewServer returns an api server
func NewServer(verification ports.VerificationService, health *health.Status) *Server {
	return &Server{
		verification: verification,
		health:       health,
	}
}

// Routes registers all endpoints on mux.
func (s *Server) Routes(mux *chi.Mux) {
	mux.Get("/health", s.Health)
	mux.Route("/v1/proofs", func(r chi.Router) {
		r.Post("/generate", s.GenerateProof)
		r.Post("/generate-from-document", s.GenerateFromDocument)
		r.Post("/verify-code", s.VerifyCode)
		r.Get("/stats", s.Stats)
	})
}

// Health reports reachability of the external collaborators.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := s.health.Status(ctx)
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"status":   "ok",
		"services": status,
	})
}

// GenerateProofRequest is the issuance request body.
type GenerateProofRequest struct {
	Name      string  `json:"name"`
	Gpa       float64 `json:"gpa"`
	Threshold float64 `json:"threshold"`
}

// GenerateProof issues a threshold proof for an explicitly supplied GPA.
func (s *Server) GenerateProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "Invalid JSON body"})
		return
	}

	issued, err := s.verification.IssueProof(ctx, req.Name, req.Gpa, req.Threshold)
	if err != nil {
		var notMet *services.ThresholdNotMetError
		if errors.As(err, &notMet) {
			writeJSON(ctx, w, http.StatusOK, map[string]any{
				"eligible": false,
				"message":  "GPA does not meet the required threshold. No proof was generated.",
			})
			return
		}
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, issued)
}

// GenerateFromDocument issues a threshold proof from an uploaded transcript.
// The request is multipart form data with the file under "document" and the
// threshold as a form value.
func (s *Server) GenerateFromDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "Expected multipart form data with a document file"})
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "No document uploaded"})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	document, err := io.ReadAll(io.LimitReader(file, maxDocumentSize))
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "Could not read uploaded document"})
		return
	}

	threshold, err := parseThreshold(r.FormValue("threshold"))
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "threshold must be a number between 0 and 10"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	issued, err := s.verification.IssueFromDocument(ctx, document, mimeType, threshold)
	if err != nil {
		var notMet *services.ThresholdNotMetError
		if errors.As(err, &notMet) {
			writeJSON(ctx, w, http.StatusOK, map[string]any{
				"eligible": false,
				"message":  "GPA does not meet the required threshold. No proof was generated.",
			})
			return
		}
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, issued)
}

// VerifyCodeRequest is the redemption request body.
type VerifyCodeRequest struct {
	Code string `json:"code"`
}

// VerifyCode redeems a verification code and returns the verification result.
func (s *Server) VerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "Invalid JSON body"})
		return
	}
	if !codePattern.MatchString(req.Code) {
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: "Verification code must be 8 alphanumeric characters"})
		return
	}

	result, err := s.verification.ResolveCode(ctx, req.Code)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

// Stats reports how many verification codes are live.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(ctx, w, http.StatusOK, s.verification.Stats())
}

func parseThreshold(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("threshold is required")
	}
	var v float64
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return 0, err
	}
	return v, nil
}

// LogMiddleware adds the configured logger plus the request id to every
// request context.
func LogMiddleware(ctx context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqCtx := log.CopyFromContext(ctx, r.Context())
			reqCtx = log.With(reqCtx, "req-id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}
		return http.HandlerFunc(fn)
	}
}
