package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"mysbind/userhub/internal/config"
	"mysbind/userhub/internal/identity"
	"mysbind/userhub/internal/mys"
	"mysbind/userhub/internal/repository"
	"mysbind/userhub/internal/service"
	"mysbind/userhub/pkg/crypto"
	jwtpkg "mysbind/userhub/pkg/jwt"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// probe is a fake cookie probe service keyed by cookie value.
type probe struct {
	mu       sync.Mutex
	statuses map[string]int
	down     bool
}

func (p *probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Cookie string `json:"cookie"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": p.statuses[req.Cookie]})
}

type RouterSuite struct {
	suite.Suite
	router *gin.Engine
	jwt    *jwtpkg.Manager
	probe  *probe
	users  repository.NoteUserRepository
}

func TestRouterSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := zap.NewNop()
	s.probe = &probe{statuses: map[string]int{}}
	srv := httptest.NewServer(s.probe)
	s.T().Cleanup(srv.Close)

	box, err := crypto.NewBox("test-secret")
	s.Require().NoError(err)
	s.users = repository.NewMemoryNoteUserRepository()
	source := mys.NewSource(
		repository.NewMemoryCookieRepository(),
		repository.NewMemoryStateStore(),
		mys.NewHTTPChecker(srv.URL, time.Second),
		box,
		time.Hour,
		logger,
	)
	registry := identity.NewRegistry(s.users, source, nil, logger)
	sweeper := identity.NewSweeper(source, 2, logger)
	svc := service.NewNoteUserService(registry, sweeper, source, logger)

	cfg := &config.Config{Admin: config.AdminConfig{UserKeys: []string{"qq-admin"}}}
	s.jwt = jwtpkg.NewManager("signing-key", "userhub", time.Hour)
	s.router = SetupRouter(cfg, logger, s.jwt, NewNoteUserHandler(svc), NewAdminHandler(svc))
}

func (s *RouterSuite) do(method, path, userKey string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userKey != "" {
		token, err := s.jwt.GenerateAccessToken(userKey)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *RouterSuite) bindCookie(userKey, ltuid string, uids ...string) {
	w, _ := s.do(http.MethodPost, "/api/v1/me/cookies", userKey, map[string]interface{}{
		"ltuid":  ltuid,
		"cookie": "ltuid=" + ltuid,
		"uids":   map[string][]string{"gs": uids},
	})
	s.Require().Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestHealthz() {
	w, _ := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestRequiresToken() {
	w, env := s.do(http.MethodGet, "/api/v1/me/uids", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(http.StatusUnauthorized, env.Code)
}

func (s *RouterSuite) TestRegisterAndList() {
	w, env := s.do(http.MethodPost, "/api/v1/me/uids", "qq-1", map[string]string{"uid": "100000001"})
	s.Require().Equal(http.StatusOK, w.Code)
	var view identity.GameView
	s.Require().NoError(json.Unmarshal(env.Data, &view))
	s.Equal("100000001", view.ActiveUid)

	w, env = s.do(http.MethodGet, "/api/v1/me/uids?game=gs", "qq-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(env.Data, &view))
	s.Require().Len(view.Bindings, 1)
	s.Equal(identity.OriginManual, view.Bindings[0].Origin)

	w, env = s.do(http.MethodGet, "/api/v1/me/uids", "qq-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var snap identity.Snapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Equal("qq-1", snap.UserKey)
	s.Len(snap.Games, 2)

	w, _ = s.do(http.MethodGet, "/api/v1/me/uids?game=bh3", "qq-1", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestRegisterValidation() {
	w, _ := s.do(http.MethodPost, "/api/v1/me/uids", "qq-1", map[string]string{"uid": "42"})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/me/uids", "qq-1", map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)

	s.do(http.MethodPost, "/api/v1/me/uids", "qq-1", map[string]string{"uid": "100000001"})
	w, _ = s.do(http.MethodPost, "/api/v1/me/uids", "qq-1", map[string]string{"uid": "100000001"})
	s.Equal(http.StatusConflict, w.Code)
}

func (s *RouterSuite) TestUnregister() {
	s.bindCookie("qq-1", "1001", "100000001")
	s.do(http.MethodPost, "/api/v1/me/uids", "qq-1", map[string]string{"uid": "100000002"})

	w, _ := s.do(http.MethodDelete, "/api/v1/me/uids/100000001?game=gs", "qq-1", nil)
	s.Equal(http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/v1/me/uids/100000009", "qq-1", nil)
	s.Equal(http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/v1/me/uids/100000002", "qq-1", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestSetActive() {
	s.bindCookie("qq-1", "1001", "100000001", "100000002")

	w, env := s.do(http.MethodPut, "/api/v1/me/uids/active", "qq-1", map[string]interface{}{"index": 1})
	s.Require().Equal(http.StatusOK, w.Code)
	var view identity.GameView
	s.Require().NoError(json.Unmarshal(env.Data, &view))
	s.Equal("100000002", view.ActiveUid)

	w, _ = s.do(http.MethodPut, "/api/v1/me/uids/active", "qq-1", map[string]string{"uid": "100000009"})
	s.Equal(http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodPut, "/api/v1/me/uids/active", "qq-1", map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestCookieLifecycle() {
	s.bindCookie("qq-1", "1001", "100000001")
	s.bindCookie("qq-1", "1002", "100000002")
	s.probe.statuses["ltuid=1002"] = 3

	w, env := s.do(http.MethodPost, "/api/v1/me/cookies/check", "qq-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var results []CheckResultView
	s.Require().NoError(json.Unmarshal(env.Data, &results))
	s.Require().Len(results, 2)
	s.Equal("healthy", results[0].State)
	s.Equal("revoked", results[1].State)

	w, _ = s.do(http.MethodDelete, "/api/v1/me/cookies/1002", "qq-1", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodDelete, "/api/v1/me/cookies/1001", "qq-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var snap identity.Snapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Empty(snap.Credentials)
}

func (s *RouterSuite) TestCheckCookiesProbeDown() {
	s.bindCookie("qq-1", "1001", "100000001")
	s.probe.down = true

	w, env := s.do(http.MethodPost, "/api/v1/me/cookies/check", "qq-1", nil)
	s.Require().Equal(http.StatusBadGateway, w.Code)
	var results []CheckResultView
	s.Require().NoError(json.Unmarshal(env.Data, &results))
	s.Require().Len(results, 1)
	s.NotEmpty(results[0].Error)
}

func (s *RouterSuite) TestBindCookieValidation() {
	w, _ := s.do(http.MethodPost, "/api/v1/me/cookies", "qq-1", map[string]string{"ltuid": "1001"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestAdminSweep() {
	s.bindCookie("qq-1", "1001", "100000001")
	s.probe.statuses["ltuid=1001"] = 3

	w, _ := s.do(http.MethodPost, "/api/v1/admin/sweep", "qq-1", nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/admin/sweep", "qq-admin", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var sum service.SweepSummary
	s.Require().NoError(json.Unmarshal(env.Data, &sum))
	s.Equal(service.SweepSummary{Users: 1, Checked: 1, Revoked: 1}, sum)

	row, err := s.users.Find(context.Background(), "qq-1")
	s.Require().NoError(err)
	s.Empty(row.Ltuids)
}
