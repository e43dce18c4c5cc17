package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mysbind/userhub/internal/model"
	"mysbind/userhub/internal/repository"
)

// maxOrdinal bounds the selectors SetActiveUid treats as positions in the
// UID list rather than literal UIDs.
const maxOrdinal = 100

// Record is one user's bound cookies, registered UIDs and per-game active UID.
//
// A Record is shared through a Registry; reads take the read lock and every
// mutation takes the write lock. All derived UID state is rebuilt from scratch
// whenever the set of credentials changes.
type Record struct {
	mu sync.RWMutex

	key    string
	games  []Game
	store  repository.NoteUserRepository
	logger *zap.Logger

	credOrder []string
	creds     map[string]Credential
	index     map[Game]*gameIndex
}

func newRecord(key string, games []Game, store repository.NoteUserRepository, logger *zap.Logger) *Record {
	r := &Record{
		key:    key,
		games:  games,
		store:  store,
		logger: logger,
		creds:  make(map[string]Credential),
		index:  make(map[Game]*gameIndex, len(games)),
	}
	for _, g := range games {
		r.index[g] = &gameIndex{bindings: make(map[string]UidBinding)}
	}
	return r
}

// loadRecord reads the persisted row for key and resolves its cookies.
// Unknown users start empty; owner ids that no longer resolve are dropped.
func loadRecord(
	ctx context.Context,
	key string,
	games []Game,
	store repository.NoteUserRepository,
	source CredentialSource,
	logger *zap.Logger,
) (*Record, error) {
	row, err := store.Find(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find user %s: %w", key, err)
		}
		row = &model.NoteUser{UserKey: key}
	}

	r := newRecord(key, games, store, logger)

	for _, ownerID := range splitOwnerIDs(row.Ltuids) {
		if _, dup := r.creds[ownerID]; dup {
			continue
		}
		cred, err := source.Create(ctx, ownerID)
		if err != nil {
			if errors.Is(err, ErrCredentialNotFound) {
				logger.Debug("dropping unresolved credential",
					zap.String("user_key", key), zap.String("ltuid", ownerID))
				continue
			}
			return nil, fmt.Errorf("resolve credential %s: %w", ownerID, err)
		}
		if cred == nil {
			continue
		}
		r.credOrder = append(r.credOrder, ownerID)
		r.creds[ownerID] = cred
	}

	for _, g := range games {
		gi := r.index[g]
		persisted := row.Game(string(g))
		if persisted == nil {
			continue
		}
		gi.active = persisted.Uid
		manual, err := DecodeRegUids(persisted.RegUids)
		if err != nil {
			logger.Warn("ignoring malformed registered uids",
				zap.String("user_key", key), zap.String("game", string(g)), zap.Error(err))
			manual = nil
		}
		gi.manual = manual
	}

	r.RebuildIndex()
	return r, nil
}

func splitOwnerIDs(joined string) []string {
	var ids []string
	for _, id := range strings.Split(joined, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Key returns the user key the record belongs to.
func (r *Record) Key() string { return r.key }

// Games returns the games this record indexes.
func (r *Record) Games() []Game { return append([]Game(nil), r.games...) }

// RebuildIndex re-derives every game's UID index from the current credentials.
func (r *Record) RebuildIndex() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
}

func (r *Record) rebuildLocked() {
	creds := r.credentialsLocked()
	for _, g := range r.games {
		prev := r.index[g]
		gi := buildGameIndex(g, creds, prev.manual, prev.active)
		r.index[g] = &gi
	}
}

func (r *Record) credentialsLocked() []Credential {
	out := make([]Credential, 0, len(r.credOrder))
	for _, id := range r.credOrder {
		out = append(out, r.creds[id])
	}
	return out
}

// ActiveUid returns the current UID for game, or "" when none is known.
func (r *Record) ActiveUid(game Game) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if gi := r.index[game]; gi != nil {
		return gi.active
	}
	return ""
}

// ActiveBinding returns the binding of the current UID for game.
func (r *Record) ActiveBinding(game Game) (UidBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gi := r.index[game]
	if gi == nil || gi.active == "" {
		return UidBinding{}, false
	}
	b, ok := gi.bindings[gi.active]
	return b, ok
}

// Binding looks up one indexed UID.
func (r *Record) Binding(uid string, game Game) (UidBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gi := r.index[game]
	if gi == nil {
		return UidBinding{}, false
	}
	b, ok := gi.bindings[uid]
	return b, ok
}

func (r *Record) HasAnyCredential() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.creds) > 0
}

// AllBoundUids returns every indexed UID for game in discovery order.
func (r *Record) AllBoundUids(game Game) []UidBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindingsLocked(game)
}

func (r *Record) bindingsLocked(game Game) []UidBinding {
	gi := r.index[game]
	if gi == nil {
		return nil
	}
	out := make([]UidBinding, 0, len(gi.order))
	for _, uid := range gi.order {
		out = append(out, gi.bindings[uid])
	}
	return out
}

// CkUids returns the cookie-reported UIDs for game.
func (r *Record) CkUids(game Game) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gi := r.index[game]
	if gi == nil {
		return nil
	}
	var out []string
	for _, uid := range gi.order {
		if gi.bindings[uid].Origin == OriginCredential {
			out = append(out, uid)
		}
	}
	return out
}

// Credentials returns the bound credentials in binding order.
func (r *Record) Credentials() []Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.credentialsLocked()
}

// PrimaryCredential returns the main cookie among those reporting at least
// one UID, else the first bound cookie.
func (r *Record) PrimaryCredential() (Credential, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds := r.credentialsLocked()
	if len(creds) == 0 {
		return nil, false
	}
	for _, c := range creds {
		if c.IsMain() && r.reportsAnyUid(c) {
			return c, true
		}
	}
	return creds[0], true
}

func (r *Record) reportsAnyUid(c Credential) bool {
	for _, g := range r.games {
		for _, uid := range c.Uids(g) {
			if uid != "" {
				return true
			}
		}
	}
	return false
}

// CredentialFor returns the cookie that owns the active UID for game. When the
// active UID is registered manually any bound cookie is returned instead.
func (r *Record) CredentialFor(game Game) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.creds) == 0 {
		return nil, ErrNoCredential
	}
	if gi := r.index[game]; gi != nil && gi.active != "" {
		if b := gi.bindings[gi.active]; b.Origin == OriginCredential {
			if c, ok := r.creds[b.OwnerID]; ok {
				return c, nil
			}
		}
	}
	return r.creds[r.credOrder[0]], nil
}

// RegisterUid adds uid to game as a self-declared binding. It becomes active
// only if the game had no active UID. Returns false if uid is already indexed.
func (r *Record) RegisterUid(uid string, game Game) bool {
	return r.register(uid, game, OriginManual)
}

// RegisterVerifiedUid is RegisterUid for UIDs whose ownership was checked.
func (r *Record) RegisterVerifiedUid(uid string, game Game) bool {
	return r.register(uid, game, OriginVerified)
}

func (r *Record) register(uid string, game Game, origin Origin) bool {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gi := r.index[game]
	if gi == nil || gi.has(uid) {
		return false
	}
	gi.manual = append(gi.manual, UidBinding{Uid: uid, Origin: origin})
	rebuilt := buildGameIndex(game, r.credentialsLocked(), gi.manual, gi.active)
	r.index[game] = &rebuilt
	return true
}

// UnregisterUid removes a manual or verified binding. Cookie UIDs can only go
// away with their cookie, so those return false.
func (r *Record) UnregisterUid(uid string, game Game) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	gi := r.index[game]
	if gi == nil {
		return false
	}
	b, ok := gi.bindings[uid]
	if !ok || !b.Origin.IsManual() {
		return false
	}

	manual := make([]UidBinding, 0, len(gi.manual))
	for _, m := range gi.manual {
		if m.Uid != uid {
			manual = append(manual, m)
		}
	}
	rebuilt := buildGameIndex(game, r.credentialsLocked(), manual, gi.active)
	r.index[game] = &rebuilt
	return true
}

// SetActiveUid selects the current UID for game. selector is a literal UID or
// a small ordinal into the UID list ("1" picks the second known UID).
// Returns false if it resolves to no indexed UID.
func (r *Record) SetActiveUid(selector string, game Game) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	gi := r.index[game]
	if gi == nil {
		return false
	}
	uid := strings.TrimSpace(selector)
	if n, err := strconv.Atoi(uid); err == nil && n >= 0 && n < maxOrdinal && n < len(gi.order) {
		uid = gi.order[n]
	}
	if !gi.has(uid) {
		return false
	}
	gi.active = uid
	return true
}

// AddCredential binds c, replacing any credential with the same owner id in
// place, and rebuilds every game index.
func (r *Record) AddCredential(c Credential) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.OwnerID()
	if _, ok := r.creds[id]; !ok {
		r.credOrder = append(r.credOrder, id)
	}
	r.creds[id] = c
	r.rebuildLocked()
}

// RemoveCredentialIf unbinds c only if it is still the credential bound
// under its owner id. Returns false when c was replaced or already removed.
func (r *Record) RemoveCredentialIf(c Credential) bool {
	if c == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.OwnerID()
	if current, ok := r.creds[id]; !ok || current != c {
		return false
	}
	r.removeLocked(id)
	return true
}

// Credential returns the credential bound under ownerID.
func (r *Record) Credential(ownerID string) (Credential, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creds[ownerID]
	return c, ok
}

// RemoveCredential unbinds ownerID and rebuilds every game index.
// Returns false if it was not bound.
func (r *Record) RemoveCredential(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.creds[ownerID]; !ok {
		return false
	}
	r.removeLocked(ownerID)
	return true
}

func (r *Record) removeLocked(ownerID string) {
	delete(r.creds, ownerID)
	for i, id := range r.credOrder {
		if id == ownerID {
			r.credOrder = append(r.credOrder[:i:i], r.credOrder[i+1:]...)
			break
		}
	}
	r.rebuildLocked()
}

// Persist writes the record through its store. Cookies without a usable
// token and cookie-reported UIDs are not written; the latter are rebuilt from
// live cookies on the next load.
func (r *Record) Persist(ctx context.Context) error {
	row, err := r.toModel()
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, row); err != nil {
		return fmt.Errorf("save user %s: %w", r.key, err)
	}
	return nil
}

func (r *Record) toModel() (*model.NoteUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ltuids []string
	for _, c := range r.credentialsLocked() {
		if c.Token() != "" {
			ltuids = append(ltuids, c.OwnerID())
		}
	}

	row := &model.NoteUser{
		UserKey: r.key,
		Ltuids:  strings.Join(ltuids, ","),
		Games:   make([]model.NoteUserGame, 0, len(r.games)),
	}
	for _, g := range r.games {
		gi := r.index[g]
		regUids, err := EncodeRegUids(gi.manual)
		if err != nil {
			return nil, fmt.Errorf("encode registered uids for %s: %w", g, err)
		}
		uid := gi.active
		if uid == "" && len(gi.order) > 0 {
			uid = gi.order[0]
		}
		row.Games = append(row.Games, model.NoteUserGame{
			UserKey: r.key,
			Game:    string(g),
			Uid:     uid,
			RegUids: regUids,
		})
	}
	return row, nil
}

// GameView is the resolved UID state of one game.
type GameView struct {
	Game      Game         `json:"game"`
	ActiveUid string       `json:"active_uid"`
	Bindings  []UidBinding `json:"uids"`
}

// CredentialView summarizes one bound cookie without exposing its token.
type CredentialView struct {
	OwnerID  string            `json:"ltuid"`
	IsMain   bool              `json:"is_main"`
	HasToken bool              `json:"has_token"`
	Uids     map[Game][]string `json:"uids"`
}

// Snapshot is a point-in-time copy of a record for rendering.
type Snapshot struct {
	UserKey     string           `json:"user_key"`
	Games       []GameView       `json:"games"`
	Credentials []CredentialView `json:"cookies"`
}

// Game returns the view for g, if indexed.
func (s Snapshot) Game(g Game) (GameView, bool) {
	for _, v := range s.Games {
		if v.Game == g {
			return v, true
		}
	}
	return GameView{}, false
}

func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{UserKey: r.key}
	for _, g := range r.games {
		snap.Games = append(snap.Games, GameView{
			Game:      g,
			ActiveUid: r.index[g].active,
			Bindings:  r.bindingsLocked(g),
		})
	}
	for _, c := range r.credentialsLocked() {
		uids := make(map[Game][]string, len(r.games))
		for _, g := range r.games {
			uids[g] = append([]string(nil), c.Uids(g)...)
		}
		snap.Credentials = append(snap.Credentials, CredentialView{
			OwnerID:  c.OwnerID(),
			IsMain:   c.IsMain(),
			HasToken: c.Token() != "",
			Uids:     uids,
		})
	}
	return snap
}
