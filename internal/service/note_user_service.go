package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"mysbind/userhub/internal/identity"
	"mysbind/userhub/internal/mys"
)

var uidPattern = regexp.MustCompile(`^[1-9]\d{8,9}$`)

// CookieStore is the write side of the cookie collaborator.
type CookieStore interface {
	identity.BindingEnumerator
	Bind(ctx context.Context, in mys.BindInput) (*mys.Cookie, error)
	Forget(ctx context.Context, ltuid string) error
	ForgetIfCurrent(ctx context.Context, userKey, ltuid, token string) (bool, error)
	BoundTo(ctx context.Context, ltuid string) (string, error)
	LookupUid(ctx context.Context, game identity.Game, uid string) (string, bool, error)
}

type NoteUserService interface {
	View(ctx context.Context, userKey string) (identity.Snapshot, error)
	RegisterUid(ctx context.Context, userKey, game, uid string) (identity.GameView, error)
	UnregisterUid(ctx context.Context, userKey, game, uid string) (identity.GameView, error)
	SetActiveUid(ctx context.Context, userKey, game, selector string) (identity.GameView, error)
	BindCookie(ctx context.Context, userKey string, in BindCookieInput) (identity.Snapshot, error)
	UnbindCookie(ctx context.Context, userKey, ltuid string) (identity.Snapshot, error)
	CheckCookies(ctx context.Context, userKey string) ([]identity.CheckResult, error)
	SweepAll(ctx context.Context) (SweepSummary, error)
}

// BindCookieInput is a cookie submitted by a user. Uids is keyed by game code
// or alias.
type BindCookieInput struct {
	Ltuid  string
	Cookie string
	IsMain bool
	Uids   map[string][]string
}

// SweepSummary counts the outcome of one SweepAll run.
type SweepSummary struct {
	Users   int `json:"users"`
	Checked int `json:"checked"`
	Revoked int `json:"revoked"`
	Failed  int `json:"failed"`
}

type noteUserService struct {
	registry *identity.Registry
	sweeper  *identity.Sweeper
	cookies  CookieStore
	locks    *userLocks
	logger   *zap.Logger
}

func NewNoteUserService(
	registry *identity.Registry,
	sweeper *identity.Sweeper,
	cookies CookieStore,
	logger *zap.Logger,
) NoteUserService {
	return &noteUserService{
		registry: registry,
		sweeper:  sweeper,
		cookies:  cookies,
		locks:    newUserLocks(),
		logger:   logger,
	}
}

func (s *noteUserService) game(code string) (identity.Game, error) {
	g, _ := identity.ParseGame(code)
	for _, supported := range s.registry.Games() {
		if g == supported {
			return g, nil
		}
	}
	return "", ErrGameUnsupported
}

func (s *noteUserService) record(ctx context.Context, userKey string) (*identity.Record, error) {
	rec, err := s.registry.GetOrLoad(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return rec, nil
}

func gameView(rec *identity.Record, g identity.Game) identity.GameView {
	view, _ := rec.Snapshot().Game(g)
	return view
}

func (s *noteUserService) View(ctx context.Context, userKey string) (identity.Snapshot, error) {
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return identity.Snapshot{}, err
	}
	return rec.Snapshot(), nil
}

// RegisterUid binds a self-declared UID. A UID that the profile cache maps to
// one of the user's own cookies is registered as verified.
func (s *noteUserService) RegisterUid(ctx context.Context, userKey, game, uid string) (identity.GameView, error) {
	// 1. Validate input
	g, err := s.game(game)
	if err != nil {
		return identity.GameView{}, err
	}
	uid = strings.TrimSpace(uid)
	if !uidPattern.MatchString(uid) {
		return identity.GameView{}, ErrUidInvalid
	}

	defer s.locks.lock(userKey)()
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return identity.GameView{}, err
	}

	// 2. Decide the origin from the profile cache
	register := rec.RegisterUid
	owner, ok, err := s.cookies.LookupUid(ctx, g, uid)
	if err != nil {
		s.logger.Warn("uid owner lookup failed", zap.String("uid", uid), zap.Error(err))
	} else if ok {
		if _, own := rec.Credential(owner); own {
			register = rec.RegisterVerifiedUid
		}
	}

	// 3. Register and persist
	if !register(uid, g) {
		return identity.GameView{}, ErrUidAlreadyBound
	}
	if err := rec.Persist(ctx); err != nil {
		return identity.GameView{}, err
	}
	return gameView(rec, g), nil
}

func (s *noteUserService) UnregisterUid(ctx context.Context, userKey, game, uid string) (identity.GameView, error) {
	g, err := s.game(game)
	if err != nil {
		return identity.GameView{}, err
	}

	defer s.locks.lock(userKey)()
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return identity.GameView{}, err
	}

	// 1. Only self-declared UIDs can be removed directly
	b, ok := rec.Binding(uid, g)
	if !ok {
		return identity.GameView{}, ErrUidNotFound
	}
	if !b.Origin.IsManual() {
		return identity.GameView{}, ErrUidCredentialOwned
	}

	// 2. Remove and persist
	if !rec.UnregisterUid(uid, g) {
		return identity.GameView{}, ErrUidNotFound
	}
	if err := rec.Persist(ctx); err != nil {
		return identity.GameView{}, err
	}
	return gameView(rec, g), nil
}

func (s *noteUserService) SetActiveUid(ctx context.Context, userKey, game, selector string) (identity.GameView, error) {
	g, err := s.game(game)
	if err != nil {
		return identity.GameView{}, err
	}

	defer s.locks.lock(userKey)()
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return identity.GameView{}, err
	}
	if !rec.SetActiveUid(selector, g) {
		return identity.GameView{}, ErrUidNotFound
	}
	if err := rec.Persist(ctx); err != nil {
		return identity.GameView{}, err
	}
	return gameView(rec, g), nil
}

// BindCookie stores a cookie and binds it to userKey. A cookie bound to
// another user moves to this one.
func (s *noteUserService) BindCookie(ctx context.Context, userKey string, in BindCookieInput) (identity.Snapshot, error) {
	// 1. Validate input
	ltuid := strings.TrimSpace(in.Ltuid)
	if ltuid == "" || strings.TrimSpace(in.Cookie) == "" {
		return identity.Snapshot{}, ErrCookieInvalid
	}
	uids := make(map[identity.Game][]string, len(in.Uids))
	for code, list := range in.Uids {
		g, err := s.game(code)
		if err != nil {
			return identity.Snapshot{}, err
		}
		for _, uid := range list {
			if !uidPattern.MatchString(strings.TrimSpace(uid)) {
				return identity.Snapshot{}, ErrUidInvalid
			}
		}
		uids[g] = append(uids[g], list...)
	}

	defer s.locks.lock(userKey)()
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return identity.Snapshot{}, err
	}

	// 2. Store the cookie, remembering who held it before
	previous, err := s.cookies.BoundTo(ctx, ltuid)
	if err != nil {
		return identity.Snapshot{}, err
	}
	cookie, err := s.cookies.Bind(ctx, mys.BindInput{
		UserKey: userKey,
		Ltuid:   ltuid,
		Cookie:  in.Cookie,
		IsMain:  in.IsMain,
		Uids:    uids,
	})
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("failed to bind cookie: %w", err)
	}

	// 3. Move it off the previous owner
	if previous != "" && previous != userKey {
		s.detach(ctx, previous, ltuid)
	}

	// 4. Bind, cache the profile and persist
	rec.AddCredential(cookie)
	if err := cookie.RefreshProfile(ctx); err != nil {
		s.logger.Warn("profile refresh failed", zap.String("ltuid", ltuid), zap.Error(err))
	}
	if err := rec.Persist(ctx); err != nil {
		return identity.Snapshot{}, err
	}
	return rec.Snapshot(), nil
}

// detach removes ltuid from the record of the user it was bound to before.
// That user's lock is not taken; the record's own lock covers the removal.
func (s *noteUserService) detach(ctx context.Context, userKey, ltuid string) {
	rec, err := s.record(ctx, userKey)
	if err != nil {
		s.logger.Warn("failed to load previous cookie owner",
			zap.String("user_key", userKey), zap.String("ltuid", ltuid), zap.Error(err))
		return
	}
	if !rec.RemoveCredential(ltuid) {
		return
	}
	if err := rec.Persist(ctx); err != nil {
		s.logger.Warn("failed to persist previous cookie owner",
			zap.String("user_key", userKey), zap.String("ltuid", ltuid), zap.Error(err))
	}
}

// UnbindCookie deletes the stored cookie before touching the record, so a
// failed delete leaves the binding intact for a retry.
func (s *noteUserService) UnbindCookie(ctx context.Context, userKey, ltuid string) (identity.Snapshot, error) {
	defer s.locks.lock(userKey)()
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return identity.Snapshot{}, err
	}

	// 1. Check the cookie belongs to this user
	if _, ok := rec.Credential(ltuid); !ok {
		return identity.Snapshot{}, ErrCookieNotBound
	}

	// 2. Delete the stored cookie
	if err := s.cookies.Forget(ctx, ltuid); err != nil {
		return identity.Snapshot{}, fmt.Errorf("failed to forget cookie: %w", err)
	}

	// 3. Unbind and persist
	rec.RemoveCredential(ltuid)
	if err := rec.Persist(ctx); err != nil {
		return identity.Snapshot{}, err
	}
	return rec.Snapshot(), nil
}

// CheckCookies revalidates every cookie of userKey. Per-cookie failures are
// carried in the results; the error covers loading and persisting only.
func (s *noteUserService) CheckCookies(ctx context.Context, userKey string) ([]identity.CheckResult, error) {
	defer s.locks.lock(userKey)()
	rec, err := s.record(ctx, userKey)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, rec)
}

// check must run under the user's lock.
func (s *noteUserService) check(ctx context.Context, rec *identity.Record) ([]identity.CheckResult, error) {
	// 1. Remember which cookie each check is about
	tokens := make(map[string]string)
	for _, c := range rec.Credentials() {
		tokens[c.OwnerID()] = c.Token()
	}

	// 2. Check health and apply transitions
	results, err := s.sweeper.Sweep(ctx, rec)
	if err != nil {
		s.logger.Warn("cookie check incomplete", zap.String("user_key", rec.Key()), zap.Error(err))
	}

	// 3. Delete revoked cookies that were not rebound meanwhile
	for _, res := range results {
		if res.Err != nil || res.Status != identity.StatusRevoked {
			continue
		}
		if _, err := s.cookies.ForgetIfCurrent(ctx, rec.Key(), res.OwnerID, tokens[res.OwnerID]); err != nil {
			s.logger.Warn("failed to forget revoked cookie", zap.String("ltuid", res.OwnerID), zap.Error(err))
		}
	}

	// 4. Persist
	if err := rec.Persist(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// SweepAll checks the cookies of every bound user. A user whose check fails
// is logged and skipped.
func (s *noteUserService) SweepAll(ctx context.Context) (SweepSummary, error) {
	var sum SweepSummary
	err := s.registry.ForEach(ctx, s.cookies, func(ctx context.Context, rec *identity.Record) (bool, error) {
		unlock := s.locks.lock(rec.Key())
		results, err := s.check(ctx, rec)
		unlock()

		sum.Users++
		for _, res := range results {
			sum.Checked++
			switch {
			case res.Err != nil:
				sum.Failed++
			case res.Status == identity.StatusRevoked:
				sum.Revoked++
			}
		}
		if err != nil {
			s.logger.Error("sweep failed for user", zap.String("user_key", rec.Key()), zap.Error(err))
		}
		return true, nil
	})
	s.logger.Info("cookie sweep finished",
		zap.Int("users", sum.Users),
		zap.Int("checked", sum.Checked),
		zap.Int("revoked", sum.Revoked),
		zap.Int("failed", sum.Failed),
		zap.Int("cached_records", s.registry.Len()),
		zap.Error(err))
	return sum, err
}
