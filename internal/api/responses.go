package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/altf4-games/credshield-node/internal/core/services"
	"github.com/altf4-games/credshield-node/internal/log"
)

// ErrorResponse is the uniform error body every endpoint returns.
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error(ctx, "writing response", err)
	}
}

// writeError maps service errors onto http statuses. Business rejections are
// client errors; faults of external collaborators surface as bad gateway so
// callers can tell "retry later" from "fix your request".
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		invalidInput *services.InvalidInputError
		timeout      *services.ProvingTimeoutError
		unavailable  *services.LedgerUnavailableError
		rejected     *services.LedgerRejectedError
		extraction   *services.ExtractionError
	)

	switch {
	case errors.As(err, &invalidInput):
		writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Message: invalidInput.Message})
	case errors.Is(err, services.ErrCodeNotFound):
		writeJSON(ctx, w, http.StatusNotFound, ErrorResponse{Message: "Invalid or expired verification code"})
	case errors.As(err, &timeout):
		log.Error(ctx, "proving timed out", err)
		writeJSON(ctx, w, http.StatusBadGateway, ErrorResponse{Message: "Proof generation timed out"})
	case errors.As(err, &unavailable):
		log.Error(ctx, "ledger unavailable", err)
		writeJSON(ctx, w, http.StatusBadGateway, ErrorResponse{Message: "Attestation ledger is unavailable"})
	case errors.As(err, &rejected):
		log.Error(ctx, "ledger rejected submission", err)
		writeJSON(ctx, w, http.StatusBadGateway, ErrorResponse{Message: "Attestation ledger rejected the submission"})
	case errors.As(err, &extraction):
		log.Error(ctx, "document extraction failed", err)
		writeJSON(ctx, w, http.StatusBadGateway, ErrorResponse{Message: "Could not extract name and GPA from the document"})
	default:
		log.Error(ctx, "unexpected error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, ErrorResponse{Message: "Internal error"})
	}
}
