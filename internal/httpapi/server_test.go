package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowrank/flowrank/internal/engine"
	"github.com/flowrank/flowrank/internal/feeds"
	"github.com/flowrank/flowrank/internal/gates"
	"github.com/flowrank/flowrank/internal/learner"
	"github.com/flowrank/flowrank/internal/metrics"
	"github.com/flowrank/flowrank/internal/models"
	"github.com/flowrank/flowrank/internal/scorer"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := learner.DefaultConfig()
	cfg.Seed = 3
	reg := metrics.NewRegistry()
	eng := engine.New(engine.Options{
		Learner:   learner.New(learner.NewMemoryStore(), cfg),
		ScorerCfg: scorer.DefaultConfig(),
		GateCfg:   gates.DefaultConfig(),
		Metrics:   reg,
	})
	return NewServer(eng, feeds.NewMemoryFlowCache(), feeds.NewDecisionCache(), reg, DefaultServerConfig())
}

func scoreBody(t *testing.T, conviction float64) *bytes.Buffer {
	t.Helper()
	req := ScoreRequest{
		Instrument: "NVDA",
		Record: models.RawSignalRecord{
			Instrument: "NVDA",
			Sentiment:  models.SentimentBullish,
			Conviction: &conviction,
			DarkPool:   &models.DarkPoolRecord{NotionalUSD: 45_000_000, Sentiment: models.SentimentBullish},
			LastUpdate: time.Now().Add(-2 * time.Minute),
		},
		Regime: "choppy",
		Mode:   "standard",
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(body)
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestScoreEndpoint(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/score", scoreBody(t, 0.85)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res models.CompositeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Score < 0 || res.Score > 8 {
		t.Errorf("score %v outside [0,8]", res.Score)
	}
	if len(res.Components) != len(scorer.ComponentNames()) {
		t.Errorf("components = %d, want full inventory", len(res.Components))
	}
}

func TestDecideEndpointCachesArtifact(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/decide", scoreBody(t, 0.85)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var dec engine.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &dec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Entry.Instrument != "NVDA" {
		t.Errorf("entry instrument = %q", dec.Entry.Instrument)
	}

	cached := httptest.NewRecorder()
	s.Router().ServeHTTP(cached, httptest.NewRequest("GET", "/v1/decisions/NVDA", nil))
	if cached.Code != http.StatusOK {
		t.Fatalf("cached decision status = %d", cached.Code)
	}

	miss := httptest.NewRecorder()
	s.Router().ServeHTTP(miss, httptest.NewRequest("GET", "/v1/decisions/UNSEEN", nil))
	if miss.Code != http.StatusNotFound {
		t.Errorf("unseen instrument status = %d, want 404", miss.Code)
	}
}

func TestIngestThenDecideWithoutInlineRecord(t *testing.T) {
	s := testServer(t)

	conviction := 0.85
	rec := models.RawSignalRecord{
		Instrument: "AMD",
		Sentiment:  models.SentimentBullish,
		Conviction: &conviction,
		LastUpdate: time.Now().Add(-time.Minute),
	}
	body, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	ingest := httptest.NewRecorder()
	s.Router().ServeHTTP(ingest, httptest.NewRequest("POST", "/v1/ingest", bytes.NewBuffer(body)))
	if ingest.Code != http.StatusAccepted {
		t.Fatalf("ingest status = %d body=%s", ingest.Code, ingest.Body.String())
	}

	decide := httptest.NewRecorder()
	s.Router().ServeHTTP(decide, httptest.NewRequest("POST", "/v1/decide",
		bytes.NewBufferString(`{"instrument":"AMD","regime":"choppy","mode":"standard"}`)))
	if decide.Code != http.StatusOK {
		t.Fatalf("decide status = %d body=%s", decide.Code, decide.Body.String())
	}
	var dec engine.Decision
	if err := json.Unmarshal(decide.Body.Bytes(), &dec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Composite.Instrument != "AMD" {
		t.Errorf("scored instrument = %q, want ingested snapshot", dec.Composite.Instrument)
	}

	metricsRec := httptest.NewRecorder()
	s.Router().ServeHTTP(metricsRec, httptest.NewRequest("GET", "/metrics", nil))
	if !bytes.Contains(metricsRec.Body.Bytes(), []byte(`flowrank_cache_hits_total{cache_type="flow"} 1`)) {
		t.Error("flow cache hit not counted")
	}
}

func TestDecideWithoutRecordOrSnapshot(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/decide",
		bytes.NewBufferString(`{"instrument":"NEVER_SEEN"}`)))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unseen instrument", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	s.Router().ServeHTTP(metricsRec, httptest.NewRequest("GET", "/metrics", nil))
	if !bytes.Contains(metricsRec.Body.Bytes(), []byte(`flowrank_cache_misses_total{cache_type="flow"} 1`)) {
		t.Error("flow cache miss not counted")
	}
}

func TestIngestRejectsMissingInstrument(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/ingest", bytes.NewBufferString(`{"sentiment":"BULLISH"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDecideRejectsMissingInstrument(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/decide", bytes.NewBufferString(`{"regime":"choppy"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDecideRejectsBadJSON(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/decide", bytes.NewBufferString("{broken")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLearnerEndpoint(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/learner", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Degraded   bool                               `json:"degraded"`
		Adaptive   bool                               `json:"adaptive"`
		Components map[string]learner.ComponentState `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Adaptive || body.Degraded {
		t.Errorf("adaptive=%v degraded=%v", body.Adaptive, body.Degraded)
	}
	if _, ok := body.Components[scorer.CompPrimaryFlow]; !ok {
		t.Error("primary_flow missing from learner snapshot")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)

	// Produce some activity first: one decide (no live feed, so both
	// live-data gates fail open), a cached-decision hit and a miss.
	decide := httptest.NewRecorder()
	s.Router().ServeHTTP(decide, httptest.NewRequest("POST", "/v1/decide", scoreBody(t, 0.85)))
	s.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/decisions/NVDA", nil))
	s.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/decisions/UNSEEN", nil))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, series := range []string{
		"flowrank_decisions_total",
		`flowrank_gate_fail_opens_total{gate="exhaustion"} 1`,
		`flowrank_gate_fail_opens_total{gate="resistance_wall"} 1`,
		`flowrank_cache_hits_total{cache_type="decision"} 1`,
		`flowrank_cache_misses_total{cache_type="decision"} 1`,
	} {
		if !bytes.Contains(rec.Body.Bytes(), []byte(series)) {
			t.Errorf("metrics output missing %s", series)
		}
	}
}
