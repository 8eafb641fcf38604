package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowrank/flowrank/internal/gates"
	"github.com/flowrank/flowrank/internal/models"
	"github.com/flowrank/flowrank/internal/regime"
)

const (
	decisionCacheTTL = 30 * time.Second
	flowCacheTTL     = 5 * time.Minute
)

// ScoreRequest is the body of POST /v1/score and /v1/decide. Record may be
// omitted when the instrument's snapshot was ingested earlier.
type ScoreRequest struct {
	Instrument string                 `json:"instrument"`
	Record     models.RawSignalRecord `json:"record"`
	Regime     string                 `json:"regime"`
	Mode       string                 `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest stores one raw snapshot in the shared flow cache, where a
// later /v1/score or /v1/decide without an inline record picks it up.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.flows == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "flow cache disabled"})
		return
	}

	var rec models.RawSignalRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if rec.Instrument == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "instrument is required"})
		return
	}
	if rec.LastUpdate.IsZero() {
		rec.LastUpdate = time.Now()
	}

	if err := s.flows.Put(r.Context(), rec, flowCacheTTL); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "flow cache write failed"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stored", "instrument": rec.Instrument})
}

// handleScore enriches and scores without gating; a read-only shadow view.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScoreRequest(w, r)
	if !ok {
		return
	}
	if !s.resolveRecord(w, r, &req) {
		return
	}

	sig := s.eng.Enrich(req.Instrument, req.Record)
	res := s.eng.Score(sig, regime.Parse(req.Regime))
	writeJSON(w, http.StatusOK, res)
}

// handleDecide runs the full pipeline, caches the artifact and broadcasts
// it to websocket subscribers.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScoreRequest(w, r)
	if !ok {
		return
	}
	if !s.resolveRecord(w, r, &req) {
		return
	}

	mode := gates.Mode(req.Mode)
	if mode == "" {
		mode = gates.ModeStandard
	}

	dec := s.eng.Evaluate(r.Context(), req.Instrument, req.Record, regime.Parse(req.Regime), mode)

	payload, err := json.Marshal(dec)
	if err == nil {
		if s.cache != nil {
			s.cache.Set("decision:"+req.Instrument, payload, decisionCacheTTL)
		}
		s.hub.broadcast(payload)
	}

	writeJSON(w, http.StatusOK, dec)
}

// handleLearner reports per-component bandit state.
func (s *Server) handleLearner(w http.ResponseWriter, _ *http.Request) {
	l := s.eng.Learner()
	if l == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"degraded": false,
			"adaptive": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"degraded":   l.Degraded(),
		"adaptive":   true,
		"components": l.Snapshot(),
	})
}

// handleCachedDecision serves the last decision artifact for an instrument.
func (s *Server) handleCachedDecision(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "decision cache disabled"})
		return
	}
	instrument := mux.Vars(r)["instrument"]
	payload, ok := s.cache.Get("decision:" + instrument)
	s.countCache("decision", ok)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no recent decision for " + instrument})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// resolveRecord fills in the snapshot from the flow cache when the request
// body carried none. Responds and returns false when no record can be found.
func (s *Server) resolveRecord(w http.ResponseWriter, r *http.Request, req *ScoreRequest) bool {
	if req.Record.Instrument != "" || !req.Record.LastUpdate.IsZero() {
		return true
	}
	if s.flows == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "record is required"})
		return false
	}

	rec, ok, err := s.flows.Get(r.Context(), req.Instrument)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "flow cache read failed"})
		return false
	}
	if !ok {
		s.countCache("flow", false)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no ingested snapshot for " + req.Instrument})
		return false
	}
	s.countCache("flow", true)
	req.Record = rec
	return true
}

func (s *Server) countCache(cacheType string, hit bool) {
	if s.reg == nil {
		return
	}
	if hit {
		s.reg.CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		s.reg.CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

func decodeScoreRequest(w http.ResponseWriter, r *http.Request) (ScoreRequest, bool) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return req, false
	}
	if req.Instrument == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "instrument is required"})
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
