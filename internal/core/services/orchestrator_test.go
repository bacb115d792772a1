package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altf4-games/credshield-node/internal/core/domain"
	"github.com/altf4-games/credshield-node/internal/core/services"
	"github.com/altf4-games/credshield-node/internal/registry"
)

type fakeEngine struct {
	proveCalls  int
	verifyValid bool
}

func (f *fakeEngine) Prove(_ context.Context, _, threshold float64) (*domain.ProofMaterial, error) {
	f.proveCalls++
	return domain.NewProofMaterial(
		&domain.ProofData{
			A:        []string{"11", "12", "1"},
			B:        [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
			C:        []string{"31", "32", "1"},
			Protocol: domain.ProtocolGroth16,
			Curve:    domain.CurveBN128,
		},
		[]string{"700", "1"},
		"deadbeef",
		"cafebabe",
	), nil
}

func (f *fakeEngine) VerifyLocally(_ context.Context, _ *domain.ProofData, _ []string) bool {
	return f.verifyValid
}

func (f *fakeEngine) FormatForLedger(proof *domain.ProofData) (domain.LedgerProofTuple, error) {
	return domain.LedgerProofTuple{
		A: [2]string{proof.A[0], proof.A[1]},
		B: [2][2]string{{proof.B[0][1], proof.B[0][0]}, {proof.B[1][1], proof.B[1][0]}},
		C: [2]string{proof.C[0], proof.C[1]},
	}, nil
}

type submission struct {
	code        string
	subjectName string
}

type fakeLedger struct {
	mu               sync.Mutex
	submissions      []submission
	submitErrs       []error
	rejectReusedCode bool
	attestation      *domain.LedgerAttestation
	resolveErr       error
}

func (f *fakeLedger) Submit(_ context.Context, _ domain.LedgerProofTuple, _ []string, code, subjectName string) (*domain.LedgerReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.rejectReusedCode {
		for _, s := range f.submissions {
			if s.code == code {
				return nil, &services.LedgerRejectedError{Reason: "code already used", AlreadyUsed: true}
			}
		}
	}
	f.submissions = append(f.submissions, submission{code: code, subjectName: subjectName})
	return &domain.LedgerReceipt{TxHash: "0xabc", BlockNumber: 42, SubmittedAt: time.Now()}, nil
}

func (f *fakeLedger) Resolve(_ context.Context, code string) (*domain.LedgerAttestation, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	if f.attestation != nil {
		return f.attestation, nil
	}
	return &domain.LedgerAttestation{Code: code}, nil
}

func (f *fakeLedger) submitted() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.submissions...)
}

type fakeExtractor struct {
	doc *domain.ExtractedDocument
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _ string) (*domain.ExtractedDocument, error) {
	return f.doc, f.err
}

func newDeferred(t *testing.T, engine *fakeEngine, ledger *fakeLedger) *services.Verification {
	t.Helper()
	return services.NewVerification(services.ModeDeferred, engine, registry.New(time.Hour), ledger, nil)
}

func TestIssueProofIneligibleIsNotAnError(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{}
	v := newDeferred(t, engine, ledger)

	issued, err := v.IssueProof(context.Background(), "Ada Lovelace", 6.99, 7.0)
	require.NoError(t, err)

	assert.False(t, issued.Eligible)
	assert.Empty(t, issued.VerificationCode)
	assert.Nil(t, issued.Proof)
	assert.NotEmpty(t, issued.Message)
	assert.Zero(t, engine.proveCalls, "an ineligible GPA must never reach the proving backend")
	assert.Empty(t, ledger.submitted())
}

func TestIssueProofRequiresSubjectName(t *testing.T) {
	v := newDeferred(t, &fakeEngine{}, &fakeLedger{})

	var invalid *services.InvalidInputError
	_, err := v.IssueProof(context.Background(), "   ", 8.5, 7.0)
	require.ErrorAs(t, err, &invalid)
}

func TestDeferredIssueAndRedeem(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{}
	v := newDeferred(t, engine, ledger)
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)
	require.True(t, issued.Eligible)
	require.Len(t, issued.VerificationCode, 8)
	assert.NotNil(t, issued.Proof)
	assert.Empty(t, ledger.submitted(), "deferred mode must not touch the ledger at issuance")

	result, err := v.ResolveCode(ctx, issued.VerificationCode)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.True(t, result.MeetsRequirement)
	assert.Equal(t, "Ada Lovelace", result.SubjectName)
	assert.InDelta(t, 7.0, result.Threshold, 1e-9)
	require.NotNil(t, result.Ledger)
	assert.Equal(t, "0xabc", result.Ledger.TxHash)
	require.Len(t, ledger.submitted(), 1)
	assert.Equal(t, issued.VerificationCode, ledger.submitted()[0].code)
}

func TestDeferredRedemptionSubmitsOnlyOnce(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{}
	v := newDeferred(t, engine, ledger)
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, err := v.ResolveCode(ctx, issued.VerificationCode)
		require.NoError(t, err)
		assert.True(t, result.Verified)
	}
	assert.Len(t, ledger.submitted(), 1, "re-checking a code must not resubmit")
}

func TestDeferredConcurrentRedemptions(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{
		rejectReusedCode: true,
		attestation:      &domain.LedgerAttestation{Verified: true, TimestampSeconds: 1700000000},
	}
	v := newDeferred(t, engine, ledger)
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	const redemptions = 8
	results := make([]*domain.VerificationResult, redemptions)
	errs := make([]error, redemptions)
	var wg sync.WaitGroup
	for i := 0; i < redemptions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = v.ResolveCode(ctx, issued.VerificationCode)
		}(i)
	}
	wg.Wait()

	for i := 0; i < redemptions; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Verified)
	}
	assert.Len(t, ledger.submitted(), 1, "the ledger accepts each code once, racing losers still succeed")
}

func TestDeferredResubmitsAfterBookkeepingExpiry(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{}
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := services.NewVerification(services.ModeDeferred, engine, registry.New(48*time.Hour), ledger, nil,
		services.WithVerificationClock(func() time.Time { return current }))
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	_, err = v.ResolveCode(ctx, issued.VerificationCode)
	require.NoError(t, err)
	require.Len(t, ledger.submitted(), 1)

	// Once the bookkeeping entry lapses the ledger's own one-time-code rule
	// is the only guard again.
	current = current.Add(25 * time.Hour)
	_, err = v.ResolveCode(ctx, issued.VerificationCode)
	require.NoError(t, err)
	assert.Len(t, ledger.submitted(), 2)
}

func TestDeferredRedemptionIsCaseInsensitive(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	v := newDeferred(t, engine, &fakeLedger{})
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	result, err := v.ResolveCode(ctx, "  "+strings.ToLower(issued.VerificationCode)+" ")
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestDeferredRedemptionOfCorruptProof(t *testing.T) {
	engine := &fakeEngine{verifyValid: false}
	ledger := &fakeLedger{}
	v := newDeferred(t, engine, ledger)
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	result, err := v.ResolveCode(ctx, issued.VerificationCode)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Nil(t, result.Ledger)
	assert.Empty(t, ledger.submitted(), "a proof that fails verification must never be anchored")
}

func TestDeferredRedemptionLosesSubmitRace(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{
		submitErrs:  []error{&services.LedgerRejectedError{Reason: "code already used", AlreadyUsed: true}},
		attestation: &domain.LedgerAttestation{Verified: true, TimestampSeconds: 1700000000},
	}
	v := newDeferred(t, engine, ledger)
	ctx := context.Background()

	issued, err := v.IssueProof(ctx, "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	// The ledger already holds the attestation: redemption still succeeds.
	result, err := v.ResolveCode(ctx, issued.VerificationCode)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	// And the loss is remembered: no further submit attempts.
	_, err = v.ResolveCode(ctx, issued.VerificationCode)
	require.NoError(t, err)
	assert.Empty(t, ledger.submitted())
}

func TestResolveUnknownCode(t *testing.T) {
	v := newDeferred(t, &fakeEngine{verifyValid: true}, &fakeLedger{})

	_, err := v.ResolveCode(context.Background(), "NOPE1234")
	require.ErrorIs(t, err, services.ErrCodeNotFound)
}

func TestEagerIssueAnchorsImmediately(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	ledger := &fakeLedger{}
	v := services.NewVerification(services.ModeEager, engine, registry.New(time.Hour), ledger, nil)

	issued, err := v.IssueProof(context.Background(), "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)

	assert.True(t, issued.Eligible)
	assert.Len(t, issued.VerificationCode, 8)
	assert.Nil(t, issued.Proof, "eager mode retains no proof material")
	require.NotNil(t, issued.Ledger)
	assert.Equal(t, uint64(42), issued.Ledger.BlockNumber)
	require.Len(t, ledger.submitted(), 1)
	assert.Equal(t, issued.VerificationCode, ledger.submitted()[0].code)
	assert.Zero(t, v.Stats().Count, "eager mode keeps nothing in the registry")
}

func TestEagerIssueRegeneratesCollidingCode(t *testing.T) {
	ledger := &fakeLedger{
		submitErrs: []error{&services.LedgerRejectedError{Reason: "code already used", AlreadyUsed: true}},
	}
	v := services.NewVerification(services.ModeEager, &fakeEngine{verifyValid: true}, registry.New(time.Hour), ledger, nil)

	issued, err := v.IssueProof(context.Background(), "Ada Lovelace", 8.5, 7.0)
	require.NoError(t, err)
	assert.Len(t, issued.VerificationCode, 8)
	require.Len(t, ledger.submitted(), 1)
}

func TestEagerResolveReadsLedger(t *testing.T) {
	ledger := &fakeLedger{attestation: &domain.LedgerAttestation{
		SubjectName:      "Ada Lovelace",
		ScaledThreshold:  700,
		Verified:         true,
		TimestampSeconds: 1700000000,
	}}
	v := services.NewVerification(services.ModeEager, &fakeEngine{}, registry.New(time.Hour), ledger, nil)

	result, err := v.ResolveCode(context.Background(), "AB12CD34")
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "Ada Lovelace", result.SubjectName)
	assert.InDelta(t, 7.0, result.Threshold, 1e-9)
}

func TestEagerResolveUnknownCode(t *testing.T) {
	// A zero-timestamp attestation means the contract holds nothing.
	v := services.NewVerification(services.ModeEager, &fakeEngine{}, registry.New(time.Hour), &fakeLedger{}, nil)

	_, err := v.ResolveCode(context.Background(), "NOPE1234")
	require.ErrorIs(t, err, services.ErrCodeNotFound)
}

func TestIssueFromDocument(t *testing.T) {
	engine := &fakeEngine{verifyValid: true}
	extractor := &fakeExtractor{doc: &domain.ExtractedDocument{Name: "Ada Lovelace", Gpa: 8.75}}
	v := services.NewVerification(services.ModeDeferred, engine, registry.New(time.Hour), &fakeLedger{}, extractor)

	issued, err := v.IssueFromDocument(context.Background(), []byte("pdf-bytes"), "application/pdf", 7.0)
	require.NoError(t, err)
	assert.True(t, issued.Eligible)
	assert.Equal(t, "Ada Lovelace", issued.SubjectName)
	assert.InDelta(t, 8.75, issued.Gpa, 1e-9)
}

func TestIssueFromDocumentExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: &services.ExtractionError{Cause: assert.AnError}}
	v := services.NewVerification(services.ModeDeferred, &fakeEngine{}, registry.New(time.Hour), &fakeLedger{}, extractor)

	var extErr *services.ExtractionError
	_, err := v.IssueFromDocument(context.Background(), []byte("junk"), "image/png", 7.0)
	require.ErrorAs(t, err, &extErr)
}

func TestIssueFromDocumentUnconfigured(t *testing.T) {
	v := newDeferred(t, &fakeEngine{}, &fakeLedger{})

	var invalid *services.InvalidInputError
	_, err := v.IssueFromDocument(context.Background(), []byte("junk"), "image/png", 7.0)
	require.ErrorAs(t, err, &invalid)
}
