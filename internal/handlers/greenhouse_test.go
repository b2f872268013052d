package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

func TestStatusHandler(t *testing.T) {
	reading := models.Reading{SoilPct: 20, TemperatureC: 25}
	mon := &mockMonitoring{status: service.Status{
		HasReading: true,
		Reading:    &reading,
		Command:    models.ActuatorCommand{WaterPump: true},
		State:      models.StateSensorAlert,
		Active:     []string{"soil_low"},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/status", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st service.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !st.HasReading || st.Reading.SoilPct != 20 || !st.Command.WaterPump || st.State != models.StateSensorAlert {
		t.Fatalf("unexpected status: %+v", st)
	}

	mon.err = errors.New("boom")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/status", ""))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestThresholdHandlers(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"valid update", `{"suelo_min":25,"temp_max":30}`, nil, http.StatusOK},
		{"unknown field", `{"suelo_xyz":10}`, fmt.Errorf("%w: suelo_xyz", controller.ErrUnknownThreshold), http.StatusBadRequest},
		{"out of range", `{"soil_low":150}`, controller.ErrThresholdRange, http.StatusBadRequest},
		{"inverted bounds", `{"soil_low":90}`, controller.ErrThresholdOrder, http.StatusBadRequest},
		{"empty body", `{}`, nil, http.StatusBadRequest},
		{"not numbers", `{"soil_low":"x"}`, nil, http.StatusBadRequest},
		{"storage failure", `{"soil_low":25}`, errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctl := &mockControl{thresholds: models.DefaultThresholds(), updateErr: tc.err}
			r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Control: ctl})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, authedRequest(http.MethodPut, "/api/v1/thresholds", tc.body))
			if w.Code != tc.wantCode {
				t.Fatalf("code=%d want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantCode == http.StatusOK && ctl.lastUpdate["suelo_min"] != 25 {
				t.Fatalf("updates not forwarded: %v", ctl.lastUpdate)
			}
		})
	}

	ctl := &mockControl{thresholds: models.DefaultThresholds()}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Control: ctl})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/thresholds", ""))
	var th models.Thresholds
	_ = json.Unmarshal(w.Body.Bytes(), &th)
	if w.Code != http.StatusOK || th != models.DefaultThresholds() {
		t.Fatalf("get thresholds: code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestOverrideHandler(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		err         error
		wantCode    int
		wantChannel models.Channel
		wantOn      bool
	}{
		{"english channel", `{"channel":"fan","on":true}`, nil, http.StatusOK, models.ChannelFan, true},
		{"spanish channel off", `{"channel":"bomba","on":false}`, nil, http.StatusOK, models.ChannelPump, false},
		{"unknown channel", `{"channel":"heater","on":true}`, nil, http.StatusBadRequest, "", false},
		{"missing on", `{"channel":"fan"}`, nil, http.StatusBadRequest, "", false},
		{"no reading yet", `{"channel":"luces","on":true}`, controller.ErrNoReading, http.StatusConflict, models.ChannelLEDs, true},
		{"unexpected failure", `{"channel":"leds","on":true}`, errors.New("boom"), http.StatusInternalServerError, models.ChannelLEDs, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctl := &mockControl{
				overrideErr: tc.err,
				snap:        controller.Snapshot{Valid: true, Seq: 4, Command: models.ActuatorCommand{Fan: true}, Source: models.SourceOverride},
			}
			r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Control: ctl})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/v1/actuators/override", tc.body))
			if w.Code != tc.wantCode {
				t.Fatalf("code=%d want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantChannel == "" {
				if ctl.overrideHits != 0 {
					t.Fatal("override must not be called for a rejected request")
				}
				return
			}
			if ctl.lastChannel != tc.wantChannel || ctl.lastOn != tc.wantOn {
				t.Fatalf("forwarded %s/%v", ctl.lastChannel, ctl.lastOn)
			}
			if tc.wantCode == http.StatusOK {
				var resp struct {
					Status string `json:"status"`
					Seq    uint64 `json:"seq"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &resp)
				if resp.Status != statusForced || resp.Seq != 4 {
					t.Fatalf("unexpected response %+v", resp)
				}
			}
		})
	}
}

func TestCommandHandler(t *testing.T) {
	ctl := &mockControl{reply: service.Reply{Kind: service.KindStatus, OK: true, Text: "State: NORMAL"}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Control: ctl})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/v1/commands", `{"text":"  /estado "}`))
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	var reply service.Reply
	_ = json.Unmarshal(w.Body.Bytes(), &reply)
	if ctl.lastText != "/estado" || reply.Kind != service.KindStatus || !reply.OK {
		t.Fatalf("text=%q reply=%+v", ctl.lastText, reply)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/v1/commands", `{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d", w.Code)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("greenhouse_readings_total 3\n"))
	})
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{}, nil, Options{Metrics: metrics})
	r := h.InitRoutes()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health code=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "greenhouse_readings_total 3\n" {
		t.Fatalf("metrics code=%d body=%q", w.Code, w.Body.String())
	}
}

func TestNewHandler_ClampsDisplayInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil, Options{DisplayInterval: time.Minute, MaxDisplayInterval: 5 * time.Second})
	if h.opts.DisplayInterval != 5*time.Second {
		t.Fatalf("display interval = %v", h.opts.DisplayInterval)
	}
}
