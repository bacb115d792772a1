package services

import (
	"context"
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/altf4-games/credshield-node/internal/core/domain"
	"github.com/altf4-games/credshield-node/internal/core/ports"
	"github.com/altf4-games/credshield-node/internal/fixedpoint"
	"github.com/altf4-games/credshield-node/internal/log"
	"github.com/altf4-games/credshield-node/pkg/rand"
	"github.com/altf4-games/credshield-node/pkg/syncttlmap"
)

// Mode selects when attestations reach the ledger.
type Mode string

// Deployment modes. Deferred keeps proofs off chain until a code is first
// redeemed; eager anchors every issuance immediately and retains nothing
// locally.
const (
	ModeDeferred Mode = "deferred"
	ModeEager    Mode = "eager"
)

// Valid reports whether m is a known deployment mode.
func (m Mode) Valid() bool {
	return m == ModeDeferred || m == ModeEager
}

const (
	// eagerSubmitAttempts bounds code regeneration when an eager submission
	// collides with an already-used code hash on chain.
	eagerSubmitAttempts = 3

	verificationCodeLength = 8

	// submittedTTL bounds the submit-once bookkeeping. An entry is useless
	// once the code itself has expired, so it matches the default code TTL.
	submittedTTL = 24 * time.Hour

	// submittedCleanupInterval is how often expired bookkeeping entries are
	// physically evicted.
	submittedCleanupInterval = time.Hour

	thresholdNotMetMessage = "GPA does not meet the required threshold. No proof was generated."
)

// Verification orchestrates the issuance and redemption pipelines. It owns
// the mode decision and the submit-once bookkeeping; everything cryptographic
// or external sits behind the injected ports.
type Verification struct {
	mode      Mode
	engine    ports.ProofEngine
	registry  ports.CodeRegistry
	ledger    ports.Ledger
	extractor ports.DocumentExtractor

	now    func() time.Time
	random io.Reader

	// submitted tracks codes whose attestation already reached the ledger in
	// deferred mode, so redemption submits at most once per code from this
	// process. The ledger's own one-time-code rule backstops races across
	// processes. A nil ref means the attestation exists but was mined by a
	// submission we did not observe.
	submitted *syncttlmap.TTLMap
}

// VerificationOption configures the orchestrator.
type VerificationOption func(*Verification)

// WithVerificationClock injects the time source.
func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(v *Verification) { v.now = now }
}

// WithVerificationRandom injects the random source used for eager-mode code
// generation.
func WithVerificationRandom(random io.Reader) VerificationOption {
	return func(v *Verification) { v.random = random }
}

// NewVerification returns the orchestrator wired for the given mode.
func NewVerification(mode Mode, engine ports.ProofEngine, registry ports.CodeRegistry, ledger ports.Ledger, extractor ports.DocumentExtractor, opts ...VerificationOption) *Verification {
	v := &Verification{
		mode:      mode,
		engine:    engine,
		registry:  registry,
		ledger:    ledger,
		extractor: extractor,
		now:       time.Now,
		random:    cryptorand.Reader,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.submitted = syncttlmap.NewWithClock(submittedTTL, v.now)
	v.submitted.CleaningBackground(submittedCleanupInterval)
	return v
}

// Mode returns the configured deployment mode.
func (v *Verification) Mode() Mode {
	return v.mode
}

// IssueProof runs the full issuance pipeline: eligibility check, proof
// generation, code binding and (in eager mode) immediate ledger anchoring.
// An ineligible GPA is a normal outcome, not an error: the response carries
// Eligible=false and no code, and the proving backend is never invoked.
func (v *Verification) IssueProof(ctx context.Context, subjectName string, gpa, threshold float64) (*domain.IssuedProof, error) {
	subjectName = strings.TrimSpace(subjectName)
	if subjectName == "" {
		return nil, &InvalidInputError{Message: "subject name is required"}
	}

	scaledGpa, err := fixedpoint.Scale(gpa)
	if err != nil {
		return nil, &InvalidInputError{Message: "gpa must be between 0 and 10"}
	}
	scaledThreshold, err := fixedpoint.Scale(threshold)
	if err != nil {
		return nil, &InvalidInputError{Message: "threshold must be between 0 and 10"}
	}

	issuanceID := uuid.NewString()
	ctx = log.With(ctx, "issuance", issuanceID)

	if scaledGpa < scaledThreshold {
		log.Info(ctx, "issuance rejected, threshold not met", "scaledThreshold", scaledThreshold)
		return &domain.IssuedProof{
			Eligible:  false,
			Message:   thresholdNotMetMessage,
			Threshold: threshold,
		}, nil
	}

	proof, err := v.engine.Prove(ctx, gpa, threshold)
	if err != nil {
		return nil, err
	}

	generatedAt := v.now()
	meta := domain.RecordMetadata{
		SubjectName:      subjectName,
		ScaledThreshold:  scaledThreshold,
		MeetsRequirement: true,
		GeneratedAt:      generatedAt,
	}

	issued := &domain.IssuedProof{
		Eligible:    true,
		SubjectName: subjectName,
		Gpa:         gpa,
		Threshold:   threshold,
		ProofHash:   proof.ProofHash,
		GeneratedAt: generatedAt,
	}

	if v.mode == ModeEager {
		code, ref, err := v.submitEager(ctx, proof, meta)
		if err != nil {
			return nil, err
		}
		issued.VerificationCode = code
		issued.Ledger = ref
		log.Info(ctx, "proof issued and anchored", "block", ref.BlockNumber)
		return issued, nil
	}

	code, err := v.registry.Issue(ctx, proof, meta)
	if err != nil {
		return nil, err
	}
	issued.VerificationCode = code
	issued.Proof = proof
	log.Info(ctx, "proof issued", "scaledThreshold", scaledThreshold)
	return issued, nil
}

// IssueFromDocument extracts the subject name and GPA from an uploaded
// transcript and feeds them through the regular issuance pipeline.
func (v *Verification) IssueFromDocument(ctx context.Context, document []byte, mimeType string, threshold float64) (*domain.IssuedProof, error) {
	if v.extractor == nil {
		return nil, &InvalidInputError{Message: "document extraction is not configured"}
	}

	extracted, err := v.extractor.Extract(ctx, document, mimeType)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "document extracted", "gpa", extracted.Gpa)

	return v.IssueProof(ctx, extracted.Name, extracted.Gpa, threshold)
}

// ResolveCode redeems a verification code. In deferred mode the locally held
// proof is re-verified and, on the first successful redemption, submitted to
// the ledger; in eager mode the ledger record is the only source of truth.
// Redemption never consumes the code.
func (v *Verification) ResolveCode(ctx context.Context, code string) (*domain.VerificationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if v.mode == ModeEager {
		return v.resolveEager(ctx, code)
	}
	return v.resolveDeferred(ctx, code)
}

// Stats reports code registry introspection data.
func (v *Verification) Stats() domain.RegistryStats {
	return v.registry.Stats()
}

// submitEager anchors the proof on chain under a fresh code, regenerating the
// code when the ledger reports its hash already used. The proof material is
// not retained: the ledger record is the only artifact.
func (v *Verification) submitEager(ctx context.Context, proof *domain.ProofMaterial, meta domain.RecordMetadata) (string, *domain.LedgerRef, error) {
	tuple, err := v.engine.FormatForLedger(proof.Proof)
	if err != nil {
		return "", nil, err
	}

	for attempt := 0; attempt < eagerSubmitAttempts; attempt++ {
		code, err := rand.Code(v.random, verificationCodeLength)
		if err != nil {
			return "", nil, fmt.Errorf("generating verification code: %w", err)
		}

		receipt, err := v.ledger.Submit(ctx, tuple, proof.PublicSignals, code, meta.SubjectName)
		if err != nil {
			var rejected *LedgerRejectedError
			if errors.As(err, &rejected) && rejected.AlreadyUsed {
				log.Warn(ctx, "code hash collision on ledger, regenerating", "attempt", attempt+1)
				continue
			}
			return "", nil, err
		}

		return code, &domain.LedgerRef{TxHash: receipt.TxHash, BlockNumber: receipt.BlockNumber}, nil
	}

	return "", nil, &LedgerRejectedError{Reason: "could not find an unused code hash"}
}

// resolveDeferred serves redemption from the local registry. The proof is
// re-verified on every redemption; submission to the ledger happens exactly
// once, on the first redemption that verifies.
func (v *Verification) resolveDeferred(ctx context.Context, code string) (*domain.VerificationResult, error) {
	record, err := v.registry.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		SubjectName:      record.Metadata.SubjectName,
		Threshold:        fixedpoint.Unscale(record.Metadata.ScaledThreshold),
		MeetsRequirement: record.Metadata.MeetsRequirement,
		ResolvedAt:       v.now(),
	}

	if !v.engine.VerifyLocally(ctx, record.Proof.Proof, record.Proof.PublicSignals) {
		// A stored proof that fails verification is never anchored.
		log.Warn(ctx, "stored proof failed verification", "code", code)
		return result, nil
	}
	result.Verified = true

	ref, err := v.submitOnce(ctx, code, record)
	if err != nil {
		return nil, err
	}
	result.Ledger = ref
	return result, nil
}

// resolveEager serves redemption straight from the ledger.
func (v *Verification) resolveEager(ctx context.Context, code string) (*domain.VerificationResult, error) {
	att, err := v.ledger.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if !att.Exists() {
		return nil, ErrCodeNotFound
	}

	return &domain.VerificationResult{
		Verified:         att.Verified,
		SubjectName:      att.SubjectName,
		Threshold:        fixedpoint.Unscale(att.ScaledThreshold),
		MeetsRequirement: att.Verified,
		ResolvedAt:       v.now(),
	}, nil
}

// submitOnce sends the attestation for code to the ledger the first time it
// is asked to, and hands back the cached ledger ref on every later call. The
// lock only guards the bookkeeping map, never the network call, so a racing
// pair of redemptions may both submit; the ledger's one-time-code rule makes
// the loser land in the AlreadyUsed branch and still succeed.
func (v *Verification) submitOnce(ctx context.Context, code string, record *domain.VerificationRecord) (*domain.LedgerRef, error) {
	if prev := v.submitted.Load(code); prev != nil {
		return prev.(*domain.LedgerRef), nil
	}

	tuple, err := v.engine.FormatForLedger(record.Proof.Proof)
	if err != nil {
		return nil, err
	}

	receipt, err := v.ledger.Submit(ctx, tuple, record.Proof.PublicSignals, code, record.Metadata.SubjectName)
	if err != nil {
		var rejected *LedgerRejectedError
		if errors.As(err, &rejected) && rejected.AlreadyUsed {
			// Another submitter won the race. Read the attestation back to
			// confirm it is really there; either way the redemption succeeds.
			if att, rerr := v.ledger.Resolve(ctx, code); rerr != nil || !att.Exists() {
				log.Warn(ctx, "ledger reported code used but attestation is not readable", "code", code, "err", rerr)
			} else {
				log.Info(ctx, "attestation already on ledger", "code", code, "submitter", att.Submitter)
			}
			v.submitted.Store(code, (*domain.LedgerRef)(nil))
			return nil, nil
		}
		return nil, err
	}

	ref := &domain.LedgerRef{TxHash: receipt.TxHash, BlockNumber: receipt.BlockNumber}
	v.submitted.Store(code, ref)
	log.Info(ctx, "attestation submitted", "code", code, "block", receipt.BlockNumber)
	return ref, nil
}
