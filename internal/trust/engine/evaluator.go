package engine

import (
	"context"

	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

// ClassifyInput carries the facts the trust policy decides on. Geo distance is
// computed by the caller; the policy only compares it against the threshold.
type ClassifyInput struct {
	// IPAddress is the login's network origin, available to custom policies.
	IPAddress string
	// HasVerifiedRecord is true when a trust record with at least one verified
	// login exists for the (user, fingerprint) pair.
	HasVerifiedRecord bool
	// KnownDevice is true when a trust record exists at all, verified or not.
	KnownDevice bool
	// FirstEver is true when the user has no sessions and no trust records yet.
	FirstEver bool
	// GeoKnown is true when both the login location and at least one trusted
	// location are available.
	GeoKnown bool
	// MinTrustedDistanceKm is the distance from the login location to the
	// nearest trusted location. Meaningless when GeoKnown is false.
	MinTrustedDistanceKm float64
	// GeoThresholdKm is the configured demotion threshold; 0 disables the check.
	GeoThresholdKm float64
}

// Classification is the policy outcome for a session at creation time.
type Classification struct {
	State domain.TrustState
	// VerificationRequired is true when the session must pass an explicit
	// verification step before it can be trusted.
	VerificationRequired bool
}

// Evaluator classifies sessions using OPA or other engines.
type Evaluator interface {
	// Classify returns the trust state for a session being created.
	Classify(ctx context.Context, input ClassifyInput) (Classification, error)
}
