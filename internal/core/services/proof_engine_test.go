package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/iden3/go-rapidsnark/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altf4-games/credshield-node/internal/core/domain"
)

type fakeGenerator struct {
	calls     int
	gotInputs json.RawMessage
	zkp       *types.ZKProof
	err       error
	block     bool
}

func (f *fakeGenerator) Generate(ctx context.Context, inputs json.RawMessage, _ string) (*types.ZKProof, error) {
	f.calls++
	f.gotInputs = inputs
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.zkp, f.err
}

type fakeVerifier struct {
	calls int
	valid bool
	err   error
}

func (f *fakeVerifier) Verify(_ context.Context, _ *types.ZKProof, _ string) (bool, error) {
	f.calls++
	return f.valid, f.err
}

func passingZKProof() *types.ZKProof {
	return &types.ZKProof{
		Proof: &types.ProofData{
			A: []string{"11", "12", "1"},
			B: [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
			C: []string{"31", "32", "1"},
		},
		PubSignals: []string{"700", "1"},
	}
}

func TestProveGeneratesMaterial(t *testing.T) {
	gen := &fakeGenerator{zkp: passingZKProof()}
	engine := NewProofEngine(gen, &fakeVerifier{valid: true}, ProofEngineConfig{CircuitName: "gpa_verifier"})

	material, err := engine.Prove(context.Background(), 8.5, 7.0)
	require.NoError(t, err)

	var inputs map[string]string
	require.NoError(t, json.Unmarshal(gen.gotInputs, &inputs))
	assert.Equal(t, "850", inputs["gpa"])
	assert.Equal(t, "700", inputs["threshold"])

	assert.Equal(t, []string{"700", "1"}, material.PublicSignals)
	assert.Equal(t, domain.ProtocolGroth16, material.Proof.Protocol)
	assert.Equal(t, domain.CurveBN128, material.Proof.Curve)
	assert.Len(t, material.ProofHash, 64)
	assert.Len(t, material.WitnessDigest(), 64)
	assert.NotEqual(t, material.ProofHash, material.WitnessDigest())
}

func TestProveScalesByTruncation(t *testing.T) {
	// 7.499 truncates to 749, strictly below a 750 threshold.
	gen := &fakeGenerator{zkp: passingZKProof()}
	engine := NewProofEngine(gen, &fakeVerifier{valid: true}, ProofEngineConfig{CircuitName: "gpa_verifier"})

	_, err := engine.Prove(context.Background(), 7.499, 7.5)
	var notMet *ThresholdNotMetError
	require.ErrorAs(t, err, &notMet)
	assert.Equal(t, int64(749), notMet.ScaledGpa)
	assert.Equal(t, int64(750), notMet.ScaledThreshold)
	assert.Zero(t, gen.calls, "the proving backend must not see an ineligible claim")
}

func TestProveExactThresholdPasses(t *testing.T) {
	gen := &fakeGenerator{zkp: passingZKProof()}
	engine := NewProofEngine(gen, &fakeVerifier{valid: true}, ProofEngineConfig{CircuitName: "gpa_verifier"})

	_, err := engine.Prove(context.Background(), 7.0, 7.0)
	require.NoError(t, err)
}

func TestProveRejectsOutOfRangeInputs(t *testing.T) {
	engine := NewProofEngine(&fakeGenerator{}, &fakeVerifier{}, ProofEngineConfig{CircuitName: "gpa_verifier"})

	var invalid *InvalidInputError
	_, err := engine.Prove(context.Background(), 10.5, 7.0)
	require.ErrorAs(t, err, &invalid)

	_, err = engine.Prove(context.Background(), 8.0, -1)
	require.ErrorAs(t, err, &invalid)
}

func TestProveTimesOut(t *testing.T) {
	gen := &fakeGenerator{block: true}
	engine := NewProofEngine(gen, &fakeVerifier{}, ProofEngineConfig{
		CircuitName:    "gpa_verifier",
		ProvingTimeout: 20 * time.Millisecond,
	})

	_, err := engine.Prove(context.Background(), 8.5, 7.0)
	var timeout *ProvingTimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestProveRejectsBrokenBackend(t *testing.T) {
	tests := []struct {
		name string
		zkp  *types.ZKProof
		err  error
	}{
		{name: "backend error", err: errors.New("boom")},
		{name: "nil proof", zkp: &types.ZKProof{PubSignals: []string{"700", "1"}}},
		{
			name: "wrong signal arity",
			zkp: &types.ZKProof{
				Proof:      passingZKProof().Proof,
				PubSignals: []string{"700"},
			},
		},
		{
			name: "non-passing proof",
			zkp: &types.ZKProof{
				Proof:      passingZKProof().Proof,
				PubSignals: []string{"700", "0"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewProofEngine(&fakeGenerator{zkp: tt.zkp, err: tt.err}, &fakeVerifier{}, ProofEngineConfig{CircuitName: "gpa_verifier"})
			_, err := engine.Prove(context.Background(), 8.5, 7.0)
			var fault *ProverFaultError
			require.ErrorAs(t, err, &fault)
		})
	}
}

func TestVerifyLocallyNeverErrors(t *testing.T) {
	wellFormed := &domain.ProofData{
		A:        []string{"11", "12", "1"},
		B:        [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
		C:        []string{"31", "32", "1"},
		Protocol: domain.ProtocolGroth16,
		Curve:    domain.CurveBN128,
	}

	tests := []struct {
		name     string
		proof    *domain.ProofData
		signals  []string
		verifier *fakeVerifier
		want     bool
	}{
		{name: "valid proof", proof: wellFormed, signals: []string{"700", "1"}, verifier: &fakeVerifier{valid: true}, want: true},
		{name: "cryptographically invalid", proof: wellFormed, signals: []string{"700", "1"}, verifier: &fakeVerifier{valid: false}, want: false},
		{name: "verifier error swallowed", proof: wellFormed, signals: []string{"700", "1"}, verifier: &fakeVerifier{err: errors.New("bad vkey")}, want: false},
		{name: "nil proof", proof: nil, signals: []string{"700", "1"}, verifier: &fakeVerifier{valid: true}, want: false},
		{name: "missing b point", proof: &domain.ProofData{A: wellFormed.A, B: [][]string{{"21"}}, C: wellFormed.C}, signals: []string{"700", "1"}, verifier: &fakeVerifier{valid: true}, want: false},
		{name: "wrong signal arity", proof: wellFormed, signals: []string{"700"}, verifier: &fakeVerifier{valid: true}, want: false},
		{name: "meets flag out of domain", proof: wellFormed, signals: []string{"700", "2"}, verifier: &fakeVerifier{valid: true}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewProofEngine(&fakeGenerator{}, tt.verifier, ProofEngineConfig{CircuitName: "gpa_verifier"})
			got := engine.VerifyLocally(context.Background(), tt.proof, tt.signals)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyLocallySkipsBackendOnMalformedInput(t *testing.T) {
	v := &fakeVerifier{valid: true}
	engine := NewProofEngine(&fakeGenerator{}, v, ProofEngineConfig{CircuitName: "gpa_verifier"})

	assert.False(t, engine.VerifyLocally(context.Background(), nil, []string{"700", "1"}))
	assert.Zero(t, v.calls)
}

func TestFormatForLedgerSwapsBPairCoordinates(t *testing.T) {
	engine := NewProofEngine(&fakeGenerator{}, &fakeVerifier{}, ProofEngineConfig{CircuitName: "gpa_verifier"})

	proof := &domain.ProofData{
		A: []string{"a0", "a1", "1"},
		B: [][]string{{"b00", "b01"}, {"b10", "b11"}, {"1", "0"}},
		C: []string{"c0", "c1", "1"},
	}
	tuple, err := engine.FormatForLedger(proof)
	require.NoError(t, err)

	assert.Equal(t, [2]string{"a0", "a1"}, tuple.A)
	assert.Equal(t, [2][2]string{{"b01", "b00"}, {"b11", "b10"}}, tuple.B)
	assert.Equal(t, [2]string{"c0", "c1"}, tuple.C)

	// The swap is its own inverse.
	again, err := engine.FormatForLedger(&domain.ProofData{
		A: tuple.A[:],
		B: [][]string{tuple.B[0][:], tuple.B[1][:]},
		C: tuple.C[:],
	})
	require.NoError(t, err)
	assert.Equal(t, [2][2]string{{"b00", "b01"}, {"b10", "b11"}}, again.B)
}

func TestFormatForLedgerRejectsTruncatedProof(t *testing.T) {
	engine := NewProofEngine(&fakeGenerator{}, &fakeVerifier{}, ProofEngineConfig{CircuitName: "gpa_verifier"})

	var invalid *InvalidInputError
	_, err := engine.FormatForLedger(nil)
	require.ErrorAs(t, err, &invalid)

	_, err = engine.FormatForLedger(&domain.ProofData{A: []string{"a0"}})
	require.ErrorAs(t, err, &invalid)
}
