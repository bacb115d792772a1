package ports

import (
	"context"

	"github.com/altf4-games/credshield-node/internal/core/domain"
)

// ProofEngine is the interface implemented by the proof engine service. It
// isolates every proof-object-shape assumption so any conformant groth16
// backend can sit behind it.
type ProofEngine interface {
	// Prove generates proof material for the claim "gpa meets threshold".
	// It refuses to prove a false claim.
	Prove(ctx context.Context, gpa, threshold float64) (*domain.ProofMaterial, error)
	// VerifyLocally checks a proof off-chain. Defensive against arbitrary
	// input: malformed material yields false, never a panic or an error.
	VerifyLocally(ctx context.Context, proof *domain.ProofData, publicSignals []string) bool
	// FormatForLedger reshapes a proof into the calldata layout the on-chain
	// verifier expects. Pure and exactly reversible.
	FormatForLedger(proof *domain.ProofData) (domain.LedgerProofTuple, error)
}
