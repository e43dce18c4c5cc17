package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckResult is the outcome of one credential's health check.
type CheckResult struct {
	OwnerID string       `json:"ltuid"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Err     error        `json:"-"`
}

// transition applies the effect of a health status to one credential.
type transition func(ctx context.Context, rec *Record, c Credential) error

func refreshProfile(ctx context.Context, _ *Record, c Credential) error {
	return c.RefreshProfile(ctx)
}

func invalidateProfile(ctx context.Context, _ *Record, c Credential) error {
	return c.InvalidateProfile(ctx)
}

// revokeCredential leaves a credential rebound while its check was in flight
// alone, along with the replacement's cached profile.
func revokeCredential(ctx context.Context, rec *Record, c Credential) error {
	if !rec.RemoveCredentialIf(c) {
		return nil
	}
	return c.InvalidateProfile(ctx)
}

// transitions: partial cookies still read characters, so their profile is
// refreshed; data-lost cookies still read stamina, so they stay bound.
var transitions = map[HealthStatus]transition{
	StatusHealthy:  refreshProfile,
	StatusPartial:  refreshProfile,
	StatusDataLost: invalidateProfile,
	StatusRevoked:  revokeCredential,
}

// Sweeper revalidates every credential of a record.
type Sweeper struct {
	source      CredentialSource
	concurrency int
	logger      *zap.Logger
}

func NewSweeper(source CredentialSource, concurrency int, logger *zap.Logger) *Sweeper {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sweeper{source: source, concurrency: concurrency, logger: logger}
}

// Sweep checks each credential of rec that still holds a token and applies
// the transition for its status. Checks run concurrently; record mutations
// go through rec's lock. Results follow binding order. Per-credential
// failures are reported in the results and joined into the returned error;
// a revocation is a result, not a failure. Nothing is persisted.
func (s *Sweeper) Sweep(ctx context.Context, rec *Record) ([]CheckResult, error) {
	var creds []Credential
	for _, c := range rec.Credentials() {
		if c.OwnerID() == "" || c.Token() == "" {
			continue
		}
		creds = append(creds, c)
	}

	results := make([]CheckResult, len(creds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range creds {
		g.Go(func() error {
			results[i] = s.check(gctx, rec, c)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("ltuid %s: %w", res.OwnerID, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (s *Sweeper) check(ctx context.Context, rec *Record, c Credential) CheckResult {
	res := CheckResult{OwnerID: c.OwnerID()}

	report, err := s.source.CheckHealth(ctx, c.Token())
	if err != nil {
		res.Err = fmt.Errorf("check health: %w", err)
		return res
	}
	res.Status = report.Status
	res.Message = report.Message

	apply, ok := transitions[report.Status]
	if !ok {
		res.Err = fmt.Errorf("%w: %d", ErrUnknownHealthStatus, int(report.Status))
		return res
	}
	if err := apply(ctx, rec, c); err != nil {
		res.Err = fmt.Errorf("apply %s: %w", report.Status, err)
		return res
	}

	s.logger.Debug("credential checked",
		zap.String("user_key", rec.Key()),
		zap.String("ltuid", res.OwnerID),
		zap.Stringer("status", report.Status))
	return res
}
