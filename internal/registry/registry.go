// Package registry keeps the in-process map of verification codes. The map is
// the only shared mutable state of the issuance pipeline, so every access to
// it (including eviction of expired entries) happens under one lock.
package registry

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/altf4-games/credshield-node/internal/cache"
	"github.com/altf4-games/credshield-node/internal/core/domain"
	"github.com/altf4-games/credshield-node/internal/core/services"
	"github.com/altf4-games/credshield-node/internal/log"
	"github.com/altf4-games/credshield-node/pkg/rand"
)

const (
	// CodeLength is the fixed length of a verification code.
	CodeLength = 8

	// DefaultTTL is how long a code stays redeemable.
	DefaultTTL = 24 * time.Hour

	mirrorKeyPrefix = "vcode:"
)

// Registry is an explicit store object with an injected clock and random
// source, so expiry and collision behavior are testable without real time or
// real randomness. Records are immutable once bound to a code.
type Registry struct {
	mu      sync.Mutex
	records map[string]*domain.VerificationRecord

	ttl    time.Duration
	now    func() time.Time
	random io.Reader
	mirror cache.Cache
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRandom injects the random source used for code generation.
func WithRandom(random io.Reader) Option {
	return func(r *Registry) { r.random = random }
}

// WithMirror writes every issued record through to an external cache with the
// same TTL, so codes survive a process restart. The in-memory map stays
// authoritative for Stats.
func WithMirror(mirror cache.Cache) Option {
	return func(r *Registry) { r.mirror = mirror }
}

// New returns a Registry with the given TTL. A non-positive ttl falls back to
// the 24h default.
func New(ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		records: make(map[string]*domain.VerificationRecord),
		ttl:     ttl,
		now:     time.Now,
		random:  cryptorand.Reader,
		mirror:  cache.NewNullCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue binds proof material and metadata to a fresh unguessable code and
// returns it. Collisions are regenerated; expired entries are swept
// opportunistically on the way in.
func (r *Registry) Issue(ctx context.Context, proof *domain.ProofMaterial, meta domain.RecordMetadata) (string, error) {
	now := r.now()

	r.mu.Lock()
	r.sweepLocked(now)

	var code string
	for {
		var err error
		code, err = rand.Code(r.random, CodeLength)
		if err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("generating verification code: %w", err)
		}
		if _, taken := r.records[code]; !taken {
			break
		}
	}

	record := &domain.VerificationRecord{
		Code:      code,
		Proof:     proof,
		Metadata:  meta,
		ExpiresAt: now.Add(r.ttl),
	}
	r.records[code] = record
	r.mu.Unlock()

	if err := r.mirror.Set(ctx, mirrorKeyPrefix+code, record, r.ttl); err != nil {
		// The in-memory record is already bound; losing the mirror copy only
		// costs restart durability.
		log.Warn(ctx, "could not mirror verification record", "err", err, "code", code)
	}

	return code, nil
}

// Resolve returns the record bound to code, case-insensitively. Expired
// entries are evicted as a side effect of the same locked step. Resolution
// does not consume the code: a recruiter may re-check it any number of times
// within the validity window.
func (r *Registry) Resolve(ctx context.Context, code string) (*domain.VerificationRecord, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := r.now()

	r.mu.Lock()
	record, ok := r.records[code]
	if ok && now.After(record.ExpiresAt) {
		delete(r.records, code)
		ok = false
	}
	r.mu.Unlock()

	if ok {
		return record, nil
	}

	// Fall back to the mirror: the record may predate the current process.
	var mirrored domain.VerificationRecord
	if r.mirror.Get(ctx, mirrorKeyPrefix+code, &mirrored) && now.Before(mirrored.ExpiresAt) {
		r.mu.Lock()
		r.records[code] = &mirrored
		r.mu.Unlock()
		return &mirrored, nil
	}

	return nil, services.ErrCodeNotFound
}

// Stats reports how many codes are live and the configured TTL.
func (r *Registry) Stats() domain.RegistryStats {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)

	return domain.RegistryStats{
		Count:    len(r.records),
		TTLHours: r.ttl.Hours(),
	}
}

// sweepLocked drops expired entries. Caller holds the lock.
func (r *Registry) sweepLocked(now time.Time) {
	for code, record := range r.records {
		if now.After(record.ExpiresAt) {
			delete(r.records, code)
		}
	}
}
