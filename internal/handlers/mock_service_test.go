package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockMonitoring struct {
	status     service.Status
	err        error
	readings   []models.TelemetryRecord
	readErr    error
	lastFilter service.ReadingFilter
}

func (m *mockMonitoring) Status(ctx context.Context) (service.Status, error) {
	return m.status, m.err
}
func (m *mockMonitoring) Readings(ctx context.Context, f service.ReadingFilter) ([]models.TelemetryRecord, error) {
	m.lastFilter = f
	return m.readings, m.readErr
}

type mockControl struct {
	thresholds models.Thresholds
	updateErr  error
	lastUpdate map[string]float64

	snap         controller.Snapshot
	overrideErr  error
	lastChannel  models.Channel
	lastOn       bool
	overrideHits int

	reply    service.Reply
	lastText string
}

func (m *mockControl) Thresholds() models.Thresholds { return m.thresholds }
func (m *mockControl) UpdateThresholds(ctx context.Context, u map[string]float64) (models.Thresholds, error) {
	m.lastUpdate = u
	if m.updateErr != nil {
		return models.Thresholds{}, m.updateErr
	}
	return m.thresholds, nil
}
func (m *mockControl) Override(ctx context.Context, ch models.Channel, on bool) (controller.Snapshot, error) {
	m.overrideHits++
	m.lastChannel, m.lastOn = ch, on
	return m.snap, m.overrideErr
}
func (m *mockControl) Execute(ctx context.Context, text string) service.Reply {
	m.lastText = text
	return m.reply
}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}
func (m *mockEventLog) Record(ctx context.Context, typ, description string, meta any) error {
	return nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, Options{})
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// authedRequest builds a request carrying a bearer token the mockAuth accepts.
func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
