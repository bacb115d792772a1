package ports

import (
	"context"

	"github.com/altf4-games/credshield-node/internal/core/domain"
)

// Ledger records verification outcomes on chain and reads them back. Submit
// is the irrevocable step: once mined, the attestation is permanent. Resolve
// is a pure read, safe to retry indefinitely.
type Ledger interface {
	Submit(ctx context.Context, tuple domain.LedgerProofTuple, publicSignals []string, code, subjectName string) (*domain.LedgerReceipt, error)
	Resolve(ctx context.Context, code string) (*domain.LedgerAttestation, error)
}
