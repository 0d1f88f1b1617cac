package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"alibi/internal/audit"
	"alibi/internal/domain"
	"alibi/internal/hub"
	"alibi/internal/identity"
	"alibi/internal/ingestion"
	"alibi/internal/logstore"
	"alibi/internal/platform/config"
	"alibi/internal/platform/metrics"
	"alibi/internal/platform/tracing"
	"alibi/internal/watchlist"
)

type fakeReport struct{}

func (fakeReport) Generate(ctx context.Context, startTS, endTS time.Time) (any, error) {
	return map[string]any{"start_ts": startTS, "end_ts": endTS}, nil
}

type fakeSimulator struct{ running bool }

func (s *fakeSimulator) Start(scenario string, rate float64, seed int64) (any, error) {
	s.running = true
	return map[string]any{"running": true, "scenario": scenario}, nil
}
func (s *fakeSimulator) Stop() (any, error) {
	s.running = false
	return map[string]any{"running": false}, nil
}
func (s *fakeSimulator) Status() any { return map[string]any{"running": s.running} }
func (s *fakeSimulator) Replay(ctx context.Context, data []byte) (any, error) {
	return map[string]any{"replayed_bytes": len(data)}, nil
}

// APISuite builds a full router over real, file-backed components (per the
// store test style elsewhere in this tree: real in-memory/on-disk stores,
// not mocks) so handler tests exercise actual auth, storage and publish
// behavior rather than stubs.
type APISuite struct {
	suite.Suite
	router   http.Handler
	store    *logstore.Store
	users    *identity.UserStore
	tokens   *identity.TokenService
	h        *hub.Hub
	adminTok string
	operTok  string
}

func (s *APISuite) SetupTest() {
	dir := s.T().TempDir()

	var err error
	s.store, err = logstore.Open(dir)
	require.NoError(s.T(), err)

	s.users, err = identity.OpenUserStore(filepath.Join(dir, "users.json"))
	require.NoError(s.T(), err)
	_, err = s.users.Create("admin1", "password123", domain.RoleAdmin)
	require.NoError(s.T(), err)
	_, err = s.users.Create("oper1", "password123", domain.RoleOperator)
	require.NoError(s.T(), err)

	s.tokens = identity.NewTokenService([]byte("test-secret"), "alibi-test", time.Hour)
	adminUser, err := s.users.Get("admin1")
	require.NoError(s.T(), err)
	s.adminTok, err = s.tokens.Issue(adminUser)
	require.NoError(s.T(), err)
	operUser, err := s.users.Get("oper1")
	require.NoError(s.T(), err)
	s.operTok, err = s.tokens.Issue(operUser)
	require.NoError(s.T(), err)

	wl, err := watchlist.Open(filepath.Join(dir, "watchlist.json"))
	require.NoError(s.T(), err)

	s.h = hub.New()
	s.T().Cleanup(s.h.Close)

	settings := config.NewStore(config.Defaults(), "")
	m := metrics.New()
	tracer := tracing.New("alibi-test")
	pipeline := ingestion.New(s.store, s.h, settings, m, tracer, nil)
	auditSvc := audit.NewService(s.store, nil)

	s.router = NewRouter(Deps{
		Users:     s.users,
		Tokens:    s.tokens,
		Incidents: s.store,
		Pipeline:  pipeline,
		Settings:  settings,
		Metrics:   m,
		Audit:     auditSvc,
		Watchlist: wl,
		Report:    fakeReport{},
		Simulator: &fakeSimulator{},
		Hub:       s.h,
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) TestLoginSuccess() {
	rec := s.doJSON(http.MethodPost, "/auth/login", "", loginRequest{Username: "admin1", Password: "password123"})
	require.Equal(s.T(), http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(s.T(), domain.RoleAdmin, resp.Role)
	require.NotEmpty(s.T(), resp.Token)
}

func (s *APISuite) TestLoginBadPassword() {
	rec := s.doJSON(http.MethodPost, "/auth/login", "", loginRequest{Username: "admin1", Password: "wrong"})
	require.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestUnauthenticatedRequestRejected() {
	rec := s.doJSON(http.MethodGet, "/incidents", "", nil)
	require.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestOperatorCannotCreateUser() {
	rec := s.doJSON(http.MethodPost, "/auth/users", s.operTok, createUserRequest{Username: "x", Password: "password123", Role: domain.RoleOperator})
	require.Equal(s.T(), http.StatusForbidden, rec.Code)
}

func (s *APISuite) TestAdminCanCreateAndListUsers() {
	rec := s.doJSON(http.MethodPost, "/auth/users", s.adminTok, createUserRequest{Username: "newop", Password: "password123", Role: domain.RoleOperator})
	require.Equal(s.T(), http.StatusCreated, rec.Code)

	rec = s.doJSON(http.MethodGet, "/auth/users", s.adminTok, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var users []domain.User
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(s.T(), users, 3)
}

func (s *APISuite) TestIngestAndListIncident() {
	evt := domain.CameraEvent{
		EventID: "e1", CameraID: "cam_A", ZoneID: "z1",
		Timestamp: time.Now(), EventType: "person_detected",
		Confidence: 0.9, Severity: 2,
	}
	rec := s.doJSON(http.MethodPost, "/webhook/camera-event", s.operTok, evt)
	require.Equal(s.T(), http.StatusAccepted, rec.Code)

	var inc domain.Incident
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &inc))
	require.NotEmpty(s.T(), inc.IncidentID)

	rec = s.doJSON(http.MethodGet, "/incidents/"+inc.IncidentID, s.operTok, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodGet, "/incidents", s.operTok, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var list []domain.Incident
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(s.T(), list, 1)
}

func (s *APISuite) TestDecisionRequiresDismissReason() {
	evt := domain.CameraEvent{
		EventID: "e1", CameraID: "cam_A", ZoneID: "z1",
		Timestamp: time.Now(), EventType: "person_detected",
		Confidence: 0.9, Severity: 2,
	}
	rec := s.doJSON(http.MethodPost, "/webhook/camera-event", s.operTok, evt)
	require.Equal(s.T(), http.StatusAccepted, rec.Code)
	var inc domain.Incident
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &inc))

	rec = s.doJSON(http.MethodPost, "/incidents/"+inc.IncidentID+"/decision", s.operTok, domain.Decision{ActionTaken: domain.ActionDismiss})
	require.Equal(s.T(), http.StatusUnprocessableEntity, rec.Code)

	rec = s.doJSON(http.MethodPost, "/incidents/"+inc.IncidentID+"/decision", s.operTok, domain.Decision{
		ActionTaken:   domain.ActionDismiss,
		DismissReason: domain.DismissFalsePositiveMotion,
	})
	require.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *APISuite) TestApproveRequiresPendingReviewStatus() {
	evt := domain.CameraEvent{
		EventID: "e1", CameraID: "cam_A", ZoneID: "z1",
		Timestamp: time.Now(), EventType: "person_detected",
		Confidence: 0.9, Severity: 2,
	}
	rec := s.doJSON(http.MethodPost, "/webhook/camera-event", s.operTok, evt)
	require.Equal(s.T(), http.StatusAccepted, rec.Code)
	var inc domain.Incident
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &inc))

	// A freshly created incident is not yet dispatch_pending_review.
	rec = s.doJSON(http.MethodPost, "/incidents/"+inc.IncidentID+"/approve", s.adminTok, nil)
	require.Equal(s.T(), http.StatusConflict, rec.Code)
}

func (s *APISuite) TestHighSeverityIncidentReachesApproval() {
	evt := domain.CameraEvent{
		EventID: "e1", CameraID: "cam_B", ZoneID: "z1",
		Timestamp: time.Now(), EventType: "watchlist_hit",
		Confidence: 0.9, Severity: 5,
		Metadata: map[string]any{"watchlist_match": true},
	}
	rec := s.doJSON(http.MethodPost, "/webhook/camera-event", s.operTok, evt)
	require.Equal(s.T(), http.StatusAccepted, rec.Code)
	var inc domain.Incident
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &inc))
	require.Equal(s.T(), domain.StatusDispatchPendingReview, inc.Status)

	rec = s.doJSON(http.MethodPost, "/incidents/"+inc.IncidentID+"/approve", s.adminTok, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var approved domain.Incident
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &approved))
	require.Equal(s.T(), domain.StatusDispatchAuthorized, approved.Status)
}

func (s *APISuite) TestSimEndpointsAdminOnly() {
	rec := s.doJSON(http.MethodPost, "/sim/start", s.operTok, map[string]any{"scenario": "quiet_shift"})
	require.Equal(s.T(), http.StatusForbidden, rec.Code)

	rec = s.doJSON(http.MethodPost, "/sim/start", s.adminTok, map[string]any{"scenario": "quiet_shift", "rate_per_minute": 5.0})
	require.Equal(s.T(), http.StatusOK, rec.Code)
}
