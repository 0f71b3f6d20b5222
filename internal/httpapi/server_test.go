package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deptdesk/deskline/internal/analysis"
	"github.com/deptdesk/deskline/internal/call"
	"github.com/deptdesk/deskline/internal/capture"
	"github.com/deptdesk/deskline/internal/knowledge"
	"github.com/deptdesk/deskline/internal/record"
)

type fakeController struct {
	startErr error
	hangErr  error
	muteErr  error
	snap     call.Snapshot
	muted    bool
}

func (f *fakeController) StartCall(context.Context) (call.Info, error) {
	if f.startErr != nil {
		return call.Info{}, f.startErr
	}
	return call.Info{ID: "01TEST", StartedAt: time.Now().UTC()}, nil
}

func (f *fakeController) Hangup() error { return f.hangErr }

func (f *fakeController) SetMuted(m bool) error {
	if f.muteErr != nil {
		return f.muteErr
	}
	f.muted = m
	return nil
}

func (f *fakeController) Snapshot() call.Snapshot {
	s := f.snap
	s.Muted = f.muted
	return s
}

type fakeAnalyzer struct {
	alerts    []analysis.Alert
	alertsErr error
	refined   string
	refineErr error
}

func (f *fakeAnalyzer) SmartAlerts(context.Context, []record.CallRecord) ([]analysis.Alert, error) {
	return f.alerts, f.alertsErr
}

func (f *fakeAnalyzer) RefinePrompt(_ context.Context, script, _ string) (string, error) {
	if f.refineErr != nil {
		return script, f.refineErr
	}
	return f.refined, nil
}

func newTestServer(ctrl *fakeController, az *fakeAnalyzer) (*Server, *record.InMemoryStore) {
	store := record.NewInMemoryStore()
	srv := New(ctrl, store, knowledge.NewDefaultBase(), az, nil, nil)
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestStartCallReturnsCreated(t *testing.T) {
	srv, _ := newTestServer(&fakeController{}, &fakeAnalyzer{})
	rr := doRequest(t, srv, http.MethodPost, "/v1/call/start", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var info call.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.ID != "01TEST" {
		t.Errorf("id = %q", info.ID)
	}
}

func TestStartCallErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"busy", call.ErrSessionBusy, http.StatusConflict},
		{"microphone", capture.ErrMicrophoneUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeController{startErr: tc.err}, &fakeAnalyzer{})
			rr := doRequest(t, srv, http.MethodPost, "/v1/call/start", "")
			if rr.Code != tc.code {
				t.Fatalf("status = %d, want %d", rr.Code, tc.code)
			}
		})
	}
}

func TestHangupWithoutCall(t *testing.T) {
	srv, _ := newTestServer(&fakeController{hangErr: call.ErrNoActiveCall}, &fakeAnalyzer{})
	rr := doRequest(t, srv, http.MethodPost, "/v1/call/hangup", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMuteTogglesController(t *testing.T) {
	ctrl := &fakeController{snap: call.Snapshot{State: call.StateActive}}
	srv, _ := newTestServer(ctrl, &fakeAnalyzer{})

	rr := doRequest(t, srv, http.MethodPost, "/v1/call/mute", `{"muted":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !ctrl.muted {
		t.Error("controller not muted")
	}
	var snap call.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if !snap.Muted {
		t.Error("snapshot not muted")
	}
}

func TestListCallsReturnsNewestFirst(t *testing.T) {
	srv, store := newTestServer(&fakeController{}, &fakeAnalyzer{})
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		store.Save(context.Background(), record.CallRecord{
			ID: id, Summary: id, Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	rr := doRequest(t, srv, http.MethodGet, "/v1/calls", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		Calls []record.CallRecord `json:"calls"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Calls) != 2 || out.Calls[0].ID != "b" {
		t.Errorf("calls = %+v", out.Calls)
	}
}

func TestListCallsRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(&fakeController{}, &fakeAnalyzer{})
	rr := doRequest(t, srv, http.MethodGet, "/v1/calls?limit=zero", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	az := &fakeAnalyzer{alerts: []analysis.Alert{{Title: "Fee spike", Severity: "high", Description: "d"}}}
	srv, _ := newTestServer(&fakeController{}, az)

	rr := doRequest(t, srv, http.MethodGet, "/v1/alerts", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		Alerts []analysis.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Alerts) != 1 || out.Alerts[0].Title != "Fee spike" {
		t.Errorf("alerts = %+v", out.Alerts)
	}
}

func TestKnowledgeRoundTrip(t *testing.T) {
	srv, _ := newTestServer(&fakeController{}, &fakeAnalyzer{})

	put := doRequest(t, srv, http.MethodPut, "/v1/knowledge/students",
		`{"students":[{"roll":"22AIML001","name":"Asha Rao","attendance":82.5}]}`)
	if put.Code != http.StatusOK {
		t.Fatalf("put status = %d body=%s", put.Code, put.Body.String())
	}

	get := doRequest(t, srv, http.MethodGet, "/v1/knowledge/students", "")
	var out struct {
		Students []knowledge.StudentRecord `json:"students"`
	}
	if err := json.Unmarshal(get.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Students) != 1 || out.Students[0].Roll != "22AIML001" {
		t.Errorf("students = %+v", out.Students)
	}
}

func TestPutAgentRejectsEmptyScript(t *testing.T) {
	srv, _ := newTestServer(&fakeController{}, &fakeAnalyzer{})
	rr := doRequest(t, srv, http.MethodPut, "/v1/knowledge/agent", `{"prompt_script":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRefineAgentReturnsScriptWithoutApplying(t *testing.T) {
	az := &fakeAnalyzer{refined: "better script"}
	srv, _ := newTestServer(&fakeController{}, az)

	rr := doRequest(t, srv, http.MethodPost, "/v1/knowledge/agent/refine", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out struct {
		PromptScript string `json:"prompt_script"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.PromptScript != "better script" {
		t.Errorf("script = %q", out.PromptScript)
	}

	get := doRequest(t, srv, http.MethodGet, "/v1/knowledge/agent", "")
	var agent knowledge.AgentConfig
	if err := json.Unmarshal(get.Body.Bytes(), &agent); err != nil {
		t.Fatal(err)
	}
	if agent.PromptScript == "better script" {
		t.Error("refinement must not be applied automatically")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(&fakeController{snap: call.Snapshot{State: call.StateIdle}}, &fakeAnalyzer{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doRequest(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}
