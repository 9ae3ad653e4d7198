package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"weather-insight/datasource"
	"weather-insight/history"
	"weather-insight/models"
	"weather-insight/orchestrator"
	"weather-insight/realtime"

	"github.com/gorilla/websocket"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) GetWeather(_ context.Context, location string) (models.CurrentConditions, error) {
	if location != "Pristina" {
		return models.CurrentConditions{}, &datasource.StatusError{Status: http.StatusNotFound, Message: "city not found"}
	}
	return models.CurrentConditions{LocationName: "Pristina", CountryCode: "XK", TemperatureC: 18.4, ConditionCode: "04d"}, nil
}

func (stubProvider) FetchForecast(context.Context, string) ([]models.ForecastSample, error) {
	return []models.ForecastSample{
		{TimestampText: "2024-01-01 12:00:00", TemperatureC: 19.6, ConditionCode: "01d"},
		{TimestampText: "2024-01-02 12:00:00", TemperatureC: 21.1, ConditionCode: "10d"},
	}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newController() *orchestrator.Controller {
	return orchestrator.New(stubProvider{}, stubProvider{}, orchestrator.WithLogger(quietLogger()))
}

func openHistory(t *testing.T) *history.Repo {
	t.Helper()
	dsn := "file:api_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := history.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := history.New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) models.Snapshot {
	t.Helper()
	var snap models.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (%s)", err, rec.Body.String())
	}
	return snap
}

func TestHealth(t *testing.T) {
	srv := NewServer(newController(), Options{Logger: quietLogger()})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["phase"] != "idle" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSearchThenRead(t *testing.T) {
	srv := NewServer(newController(), Options{Logger: quietLogger()})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/search", `{"query":" Pristina "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if snap.State.Phase != models.PhaseSuccess || snap.Current == nil || snap.Current.LocationName != "Pristina" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	weather := decodeSnapshot(t, do(t, h, http.MethodGet, "/api/weather", ""))
	if weather.QueryID != snap.QueryID || weather.City != "Pristina" {
		t.Fatalf("GET /api/weather disagrees with search result: %+v", weather)
	}

	rec = do(t, h, http.MethodGet, "/api/forecast", "")
	var fc struct {
		City     string                      `json:"city"`
		Forecast []models.DailyForecastEntry `json:"forecast"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.City != "Pristina" || len(fc.Forecast) != 2 || fc.Forecast[0].DayLabel != "Mon" || fc.Forecast[1].TemperatureC != 21 {
		t.Fatalf("unexpected forecast %+v", fc)
	}
}

func TestSearchNotFoundIsReportedInState(t *testing.T) {
	srv := NewServer(newController(), Options{Logger: quietLogger()})
	rec := do(t, srv.Handler(), http.MethodPost, "/api/search", `{"query":"Atlantis"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	snap := decodeSnapshot(t, rec)
	if snap.State.Phase != models.PhaseFailed || snap.State.Reason != orchestrator.NotFoundReason {
		t.Fatalf("unexpected state %+v", snap.State)
	}
}

func TestSearchBlankAndInvalid(t *testing.T) {
	c := newController()
	srv := NewServer(c, Options{Logger: quietLogger()})

	if rec := do(t, srv.Handler(), http.MethodPost, "/api/search", `{"query":"   "}`); rec.Code != http.StatusNoContent {
		t.Fatalf("blank query: status %d", rec.Code)
	}
	if c.Snapshot().State.Phase != models.PhaseIdle {
		t.Fatal("blank query changed state")
	}
	if rec := do(t, srv.Handler(), http.MethodPost, "/api/search", `{"query":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid body: status %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/search", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET search: status %d", rec.Code)
	}
}

type supersededLookup struct{}

func (supersededLookup) Search(context.Context, string) (models.Snapshot, error) {
	return models.Snapshot{Query: "newer", State: models.RequestState{Phase: models.PhaseLoading}}, orchestrator.ErrSuperseded
}

func (supersededLookup) Snapshot() models.Snapshot { return models.Snapshot{} }

func TestSearchSupersededIsConflict(t *testing.T) {
	srv := NewServer(supersededLookup{}, Options{Logger: quietLogger()})
	rec := do(t, srv.Handler(), http.MethodPost, "/api/search", `{"query":"Pristina"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.Query != "newer" {
		t.Fatalf("expected the newer snapshot, got %+v", snap)
	}
}

func TestHistory(t *testing.T) {
	c := newController()
	repo := openHistory(t)
	c.Subscribe(history.NewRecorder(repo, quietLogger()).Listen)
	srv := NewServer(c, Options{History: repo, Logger: quietLogger()})
	h := srv.Handler()

	do(t, h, http.MethodPost, "/api/search", `{"query":"Pristina"}`)
	do(t, h, http.MethodPost, "/api/search", `{"query":"Atlantis"}`)

	rec := do(t, h, http.MethodGet, "/api/history?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Records []history.QueryRecord `json:"records"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || len(body.Records) != 2 {
		t.Fatalf("expected 2 records, got %+v", body)
	}
	phases := map[string]bool{}
	for _, r := range body.Records {
		phases[r.Phase] = true
	}
	if !phases["success"] || !phases["failed"] {
		t.Fatalf("expected one success and one failure, got %+v", body.Records)
	}

	if rec := do(t, h, http.MethodGet, "/api/history?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: status %d", rec.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := NewServer(newController(), Options{Logger: quietLogger()})
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/history", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestWebsocketStreamsSearch(t *testing.T) {
	c := newController()
	hub := realtime.NewHub(c.Snapshot, quietLogger())
	c.Subscribe(hub.Broadcast)
	srv := NewServer(c, Options{Realtime: hub, Logger: quietLogger()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	read := func() realtime.Event {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read ws: %v", err)
		}
		return ev
	}

	if ev := read(); ev.Snapshot.State.Phase != models.PhaseIdle {
		t.Fatalf("expected idle snapshot first, got %s", ev.Snapshot.State.Phase)
	}

	resp, err := http.Post(ts.URL+"/api/search", "application/json", strings.NewReader(`{"query":"Pristina"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if ev := read(); ev.Snapshot.State.Phase != models.PhaseLoading {
		t.Fatalf("expected loading, got %s", ev.Snapshot.State.Phase)
	}
	if ev := read(); ev.Snapshot.State.Phase != models.PhaseSuccess || ev.Snapshot.Current == nil {
		t.Fatalf("expected success, got %+v", ev.Snapshot)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	srv := NewServer(newController(), Options{Metrics: metrics, Logger: quietLogger()})
	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics\n" {
		t.Fatalf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}
