package mys

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mysbind/userhub/internal/identity"
	"mysbind/userhub/internal/model"
	"mysbind/userhub/internal/repository"
)

func profileKey(ltuid string) string {
	return fmt.Sprintf("mys:profile:%s", ltuid)
}

func uidKey(game, uid string) string {
	return fmt.Sprintf("mys:uid:%s:%s", game, uid)
}

// Profile is the cached view of a cookie's account.
type Profile struct {
	Ltuid       string         `json:"ltuid"`
	Uids        model.GameUids `json:"uids"`
	RefreshedAt time.Time      `json:"refreshed_at"`
}

// Cookie is a bound miHoYo session cookie. It implements identity.Credential.
type Cookie struct {
	ltuid  string
	token  string
	isMain bool
	uids   model.GameUids

	cache repository.StateStore
	ttl   time.Duration
}

var _ identity.Credential = (*Cookie)(nil)

func (c *Cookie) OwnerID() string { return c.ltuid }
func (c *Cookie) Token() string   { return c.token }
func (c *Cookie) IsMain() bool    { return c.isMain }

func (c *Cookie) Uids(game identity.Game) []string {
	return c.uids[string(game)]
}

// RefreshProfile caches the cookie's UIDs and indexes each UID back to the
// cookie so other users' lookups can find its owner.
func (c *Cookie) RefreshProfile(ctx context.Context) error {
	data, err := json.Marshal(Profile{Ltuid: c.ltuid, Uids: c.uids, RefreshedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := c.cache.Set(ctx, profileKey(c.ltuid), data, c.ttl); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	for game, uids := range c.uids {
		for _, uid := range uids {
			if err := c.cache.Set(ctx, uidKey(game, uid), []byte(c.ltuid), c.ttl); err != nil {
				return fmt.Errorf("cache uid %s: %w", uid, err)
			}
		}
	}
	return nil
}

// InvalidateProfile drops the cached profile and every uid index entry that
// still points at this cookie, including UIDs only the cached copy knew.
func (c *Cookie) InvalidateProfile(ctx context.Context) error {
	candidates := c.uids.Clone()
	if candidates == nil {
		candidates = model.GameUids{}
	}
	raw, err := c.cache.Get(ctx, profileKey(c.ltuid))
	if err != nil {
		return fmt.Errorf("read cached profile: %w", err)
	}
	if raw != nil {
		var cached Profile
		if json.Unmarshal(raw, &cached) == nil {
			for game, uids := range cached.Uids {
				candidates[game] = append(candidates[game], uids...)
			}
		}
	}

	keys := []string{profileKey(c.ltuid)}
	for game, uids := range candidates {
		for _, uid := range uids {
			owner, err := c.cache.Get(ctx, uidKey(game, uid))
			if err != nil {
				return fmt.Errorf("read uid %s: %w", uid, err)
			}
			if string(owner) == c.ltuid {
				keys = append(keys, uidKey(game, uid))
			}
		}
	}
	return c.cache.Delete(ctx, keys...)
}

// CachedProfile returns the cached profile, or nil if none is cached.
func (c *Cookie) CachedProfile(ctx context.Context) (*Profile, error) {
	raw, err := c.cache.Get(ctx, profileKey(c.ltuid))
	if err != nil || raw == nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
