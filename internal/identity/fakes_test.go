package identity

import (
	"context"
	"errors"
	"sync"
)

type fakeCredential struct {
	mu          sync.Mutex
	ownerID     string
	token       string
	main        bool
	uids        map[Game][]string
	refreshed   int
	invalidated int
	refreshErr  error
}

func newFakeCredential(ownerID string, gsUids ...string) *fakeCredential {
	return &fakeCredential{
		ownerID: ownerID,
		token:   "cookie-" + ownerID,
		uids:    map[Game][]string{GameGenshin: gsUids},
	}
}

func (c *fakeCredential) OwnerID() string         { return c.ownerID }
func (c *fakeCredential) Token() string           { return c.token }
func (c *fakeCredential) IsMain() bool            { return c.main }
func (c *fakeCredential) Uids(game Game) []string { return c.uids[game] }

func (c *fakeCredential) RefreshProfile(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed++
	return c.refreshErr
}

func (c *fakeCredential) InvalidateProfile(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

func (c *fakeCredential) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshed, c.invalidated
}

type fakeSource struct {
	mu        sync.Mutex
	creds     map[string]*fakeCredential
	health    map[string]HealthReport
	checkErr  map[string]error
	createErr error
	creates   int
	gates     map[string]*checkGate
}

func newFakeSource(creds ...*fakeCredential) *fakeSource {
	s := &fakeSource{
		creds:    make(map[string]*fakeCredential),
		health:   make(map[string]HealthReport),
		checkErr: make(map[string]error),
	}
	for _, c := range creds {
		s.creds[c.ownerID] = c
	}
	return s
}

func (s *fakeSource) Create(_ context.Context, ownerID string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	c, ok := s.creds[ownerID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return c, nil
}

func (s *fakeSource) CheckHealth(_ context.Context, token string) (HealthReport, error) {
	s.mu.Lock()
	gate := s.gates[token]
	s.mu.Unlock()
	if gate != nil {
		gate.entered <- struct{}{}
		<-gate.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.checkErr[token]; ok {
		return HealthReport{}, err
	}
	return s.health[token], nil
}

// checkGate holds a health check for one token until released.
type checkGate struct {
	entered chan struct{}
	release chan struct{}
}

func (s *fakeSource) hold(token string) *checkGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gates == nil {
		s.gates = make(map[string]*checkGate)
	}
	g := &checkGate{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s.gates[token] = g
	return g
}

func (s *fakeSource) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

type fakeEnumerator struct {
	bindings map[string][]string
	err      error
}

func (e fakeEnumerator) EnumerateBindings(context.Context) (map[string][]string, error) {
	return e.bindings, e.err
}

var errBackend = errors.New("backend unavailable")
