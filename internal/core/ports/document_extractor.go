package ports

import (
	"context"

	"github.com/altf4-games/credshield-node/internal/core/domain"
)

// DocumentExtractor is the external vision-model collaborator that turns an
// uploaded transcript into a subject name and a GPA.
type DocumentExtractor interface {
	Extract(ctx context.Context, document []byte, mimeType string) (*domain.ExtractedDocument, error)
}
