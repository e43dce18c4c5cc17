package mys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mysbind/userhub/internal/identity"
	"mysbind/userhub/internal/model"
	"mysbind/userhub/internal/repository"
	"mysbind/userhub/pkg/crypto"
)

// Source builds Cookie handles from stored rows and checks their health.
// It implements identity.CredentialSource and identity.BindingEnumerator.
type Source struct {
	cookies    repository.CookieRepository
	cache      repository.StateStore
	checker    HealthChecker
	box        *crypto.Box
	profileTTL time.Duration
	logger     *zap.Logger
}

var (
	_ identity.CredentialSource  = (*Source)(nil)
	_ identity.BindingEnumerator = (*Source)(nil)
)

func NewSource(
	cookies repository.CookieRepository,
	cache repository.StateStore,
	checker HealthChecker,
	box *crypto.Box,
	profileTTL time.Duration,
	logger *zap.Logger,
) *Source {
	return &Source{
		cookies:    cookies,
		cache:      cache,
		checker:    checker,
		box:        box,
		profileTTL: profileTTL,
		logger:     logger,
	}
}

func (s *Source) Create(ctx context.Context, ltuid string) (identity.Credential, error) {
	row, err := s.cookies.Get(ctx, ltuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, identity.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get cookie: %w", err)
	}
	return s.fromRow(row), nil
}

// fromRow unseals the stored cookie. A value that no longer opens yields a
// handle without a token; it stays bound but is skipped by health sweeps.
func (s *Source) fromRow(row *model.MysCookie) *Cookie {
	token := ""
	if row.Cookie != "" {
		plain, err := s.box.Open(row.Cookie)
		if err != nil {
			s.logger.Warn("stored cookie does not unseal", zap.String("ltuid", row.Ltuid), zap.Error(err))
		} else {
			token = plain
		}
	}
	return &Cookie{
		ltuid:  row.Ltuid,
		token:  token,
		isMain: row.IsMain,
		uids:   row.Uids.Clone(),
		cache:  s.cache,
		ttl:    s.profileTTL,
	}
}

func (s *Source) CheckHealth(ctx context.Context, token string) (identity.HealthReport, error) {
	return s.checker.Check(ctx, token)
}

// EnumerateBindings groups every stored cookie by owning user key.
func (s *Source) EnumerateBindings(ctx context.Context) (map[string][]string, error) {
	rows, err := s.cookies.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cookies: %w", err)
	}
	out := make(map[string][]string)
	for _, row := range rows {
		if row.UserKey == "" {
			continue
		}
		out[row.UserKey] = append(out[row.UserKey], row.Ltuid)
	}
	return out, nil
}

// BindInput describes a cookie being bound to a user.
type BindInput struct {
	UserKey string
	Ltuid   string
	Cookie  string
	IsMain  bool
	Uids    map[identity.Game][]string
}

// Bind stores a cookie (sealed) for a user and returns its handle.
func (s *Source) Bind(ctx context.Context, in BindInput) (*Cookie, error) {
	ltuid := strings.TrimSpace(in.Ltuid)
	if ltuid == "" || in.Cookie == "" {
		return nil, errors.New("ltuid and cookie are required")
	}
	sealed, err := s.box.Seal(in.Cookie)
	if err != nil {
		return nil, fmt.Errorf("seal cookie: %w", err)
	}

	uids := make(model.GameUids, len(in.Uids))
	for game, list := range in.Uids {
		for _, uid := range list {
			if uid = strings.TrimSpace(uid); uid != "" {
				uids[string(game)] = append(uids[string(game)], uid)
			}
		}
	}

	row := &model.MysCookie{
		Ltuid:   ltuid,
		UserKey: in.UserKey,
		Cookie:  sealed,
		IsMain:  in.IsMain,
		Uids:    uids,
	}
	if err := s.cookies.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("store cookie: %w", err)
	}
	return s.fromRow(row), nil
}

// BoundTo returns the user key ltuid is currently bound to, or "" if none.
func (s *Source) BoundTo(ctx context.Context, ltuid string) (string, error) {
	row, err := s.cookies.Get(ctx, ltuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get cookie: %w", err)
	}
	return row.UserKey, nil
}

// Forget deletes a stored cookie and its cached profile.
func (s *Source) Forget(ctx context.Context, ltuid string) error {
	row, err := s.cookies.Get(ctx, ltuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get cookie: %w", err)
	}
	if err := s.fromRow(row).InvalidateProfile(ctx); err != nil {
		return err
	}
	return s.cookies.Delete(ctx, ltuid)
}

// ForgetIfCurrent deletes ltuid's row only while it is still bound to userKey
// with the given cookie, so a cookie rebound in the meantime survives.
// Reports whether the row was deleted.
func (s *Source) ForgetIfCurrent(ctx context.Context, userKey, ltuid, token string) (bool, error) {
	row, err := s.cookies.Get(ctx, ltuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get cookie: %w", err)
	}
	if row.UserKey != userKey {
		return false, nil
	}
	cookie := s.fromRow(row)
	if token == "" || cookie.token != token {
		return false, nil
	}
	if err := cookie.InvalidateProfile(ctx); err != nil {
		return false, err
	}
	if err := s.cookies.Delete(ctx, ltuid); err != nil {
		return false, err
	}
	return true, nil
}

// LookupUid returns the ltuid of the cookie whose cached profile claims uid.
func (s *Source) LookupUid(ctx context.Context, game identity.Game, uid string) (string, bool, error) {
	raw, err := s.cache.Get(ctx, uidKey(string(game), uid))
	if err != nil {
		return "", false, err
	}
	if raw == nil {
		return "", false, nil
	}
	return string(raw), true, nil
}
