package ports

import (
	"context"

	"github.com/altf4-games/credshield-node/internal/core/domain"
)

// CodeRegistry binds short human-shareable codes to proof material with an
// expiry. Codes stay resolvable until they expire; resolution never consumes
// them.
type CodeRegistry interface {
	Issue(ctx context.Context, proof *domain.ProofMaterial, meta domain.RecordMetadata) (string, error)
	Resolve(ctx context.Context, code string) (*domain.VerificationRecord, error)
	Stats() domain.RegistryStats
}
