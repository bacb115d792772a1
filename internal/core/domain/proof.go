package domain

import (
	"time"
)

// Proof system tags. The proving backend is snarkjs-compatible groth16 over
// bn128, which is what the on-chain verifier expects.
const (
	ProtocolGroth16 = "groth16"
	CurveBN128      = "bn128"
)

// Indexes into PublicSignals. Order is fixed by the circuit and must match
// the on-chain verifier input layout.
const (
	SignalThreshold = 0
	SignalMeets     = 1
	// SignalCount is the exact arity the circuit exposes.
	SignalCount = 2
)

// ProofData is the proof object emitted by the prover: an A point, a B point
// pair and a C point on the curve, plus protocol and curve tags. The field
// names follow the snarkjs wire format.
type ProofData struct {
	A        []string   `json:"pi_a"`
	B        [][]string `json:"pi_b"`
	C        []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
}

// ProofMaterial bundles a proof object with its public signals and digest.
// The private witness digest deliberately has no JSON mapping: it must never
// be persisted or serialized in plaintext.
type ProofMaterial struct {
	Proof         *ProofData `json:"proof"`
	PublicSignals []string   `json:"publicSignals"`
	ProofHash     string     `json:"proofHash"`

	witnessDigest string
}

// NewProofMaterial builds a ProofMaterial carrying the private witness digest.
func NewProofMaterial(proof *ProofData, publicSignals []string, proofHash, witnessDigest string) *ProofMaterial {
	return &ProofMaterial{
		Proof:         proof,
		PublicSignals: publicSignals,
		ProofHash:     proofHash,
		witnessDigest: witnessDigest,
	}
}

// WitnessDigest returns the digest of the private inputs. In-memory use only.
func (p *ProofMaterial) WitnessDigest() string {
	return p.witnessDigest
}

// LedgerProofTuple is the proof reshaped into the calldata layout the on-chain
// verifier consumes: affine coordinates only, B pairs in ledger ordering.
type LedgerProofTuple struct {
	A [2]string
	B [2][2]string
	C [2]string
}

// RecordMetadata is the human-facing context bound to an issued code.
type RecordMetadata struct {
	SubjectName      string    `json:"subjectName"`
	ScaledThreshold  int64     `json:"scaledThreshold"`
	MeetsRequirement bool      `json:"meetsRequirement"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// VerificationRecord binds a code to proof material and metadata. Records are
// immutable once created and disappear only through expiry.
type VerificationRecord struct {
	Code      string         `json:"code"`
	Proof     *ProofMaterial `json:"proof"`
	Metadata  RecordMetadata `json:"metadata"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// RegistryStats is introspection data for the code registry.
type RegistryStats struct {
	Count    int     `json:"count"`
	TTLHours float64 `json:"ttlHours"`
}

// LedgerAttestation is the immutable record the ledger keeps per code. A zero
// timestamp means no such record exists; the contract never stores one.
type LedgerAttestation struct {
	Code             string
	Submitter        string
	SubjectName      string
	ScaledThreshold  int64
	Verified         bool
	TimestampSeconds int64
}

// Exists reports whether the attestation was actually recorded on chain.
func (a *LedgerAttestation) Exists() bool {
	return a != nil && a.TimestampSeconds != 0
}

// LedgerReceipt describes a mined submission transaction.
type LedgerReceipt struct {
	TxHash      string    `json:"txHash"`
	BlockNumber uint64    `json:"blockNumber"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LedgerRef points a verification result at its on-chain anchor.
type LedgerRef struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// VerificationResult is the uniform shape both deployment modes return when a
// code is redeemed.
type VerificationResult struct {
	Verified         bool       `json:"verified"`
	SubjectName      string     `json:"subjectName"`
	Threshold        float64    `json:"threshold"`
	MeetsRequirement bool       `json:"meetsRequirement"`
	ResolvedAt       time.Time  `json:"resolvedAt"`
	Ledger           *LedgerRef `json:"ledgerRef,omitempty"`
}

// IssuedProof is the issuance response contract. When Eligible is false no
// code was issued and Message carries the user-facing rejection.
type IssuedProof struct {
	Eligible         bool           `json:"eligible"`
	Message          string         `json:"message,omitempty"`
	VerificationCode string         `json:"verificationCode,omitempty"`
	SubjectName      string         `json:"subjectName,omitempty"`
	Gpa              float64        `json:"extractedGpa,omitempty"`
	Threshold        float64        `json:"threshold,omitempty"`
	Proof            *ProofMaterial `json:"proofMaterial,omitempty"`
	ProofHash        string         `json:"proofDigest,omitempty"`
	GeneratedAt      time.Time      `json:"generatedAt,omitempty"`
	Ledger           *LedgerRef     `json:"ledgerRef,omitempty"`
}

// ExtractedDocument is what the document extraction collaborator yields.
type ExtractedDocument struct {
	Name string
	Gpa  float64
}
