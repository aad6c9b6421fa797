package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/smourya/pm25-monitor/internal/aqi"
	"github.com/smourya/pm25-monitor/internal/database"
	"github.com/smourya/pm25-monitor/internal/scheduler"
	"github.com/smourya/pm25-monitor/internal/sensor"
	"github.com/smourya/pm25-monitor/internal/state"
)

// Store is the persistence surface the API reads and writes.
type Store interface {
	ListReadings(f database.ReadingFilter) ([]*database.StoredReading, error)
	ListScheduleConfigs() ([]*database.ScheduleConfig, error)
	GetScheduleConfigByName(name string) (*database.ScheduleConfig, error)
	UpsertScheduleConfig(cfg *database.ScheduleConfig) error
	Ping() error
}

// LatestStore is the optional latest-sample lookup.
type LatestStore interface {
	GetLatest(ctx context.Context, location string) (*state.LatestSample, error)
}

// Server is the HTTP API over the readings store, schedule configs, and the
// on-demand index engine.
type Server struct {
	store  Store
	latest LatestStore // nil disables the latest endpoint
	logger *log.Entry
}

// New creates an API server. latest may be nil.
func New(store Store, latest LatestStore) *Server {
	return &Server{
		store:  store,
		latest: latest,
		logger: log.WithField("component", "api"),
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/aqi/compute", s.handleComputeAQI).Methods("GET")
	api.HandleFunc("/readings", s.handleListReadings).Methods("GET")
	api.HandleFunc("/readings/latest/{location}", s.handleLatest).Methods("GET")
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleUpdateConfig).Methods("PUT")

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	return r
}

// handleComputeAQI serves on-demand index computation from query parameters:
// pm25 (required), pm10 (optional), method (standard|atmospheric|corrected).
func (s *Server) handleComputeAQI(w http.ResponseWriter, r *http.Request) {
	pm25, err := strconv.ParseFloat(r.URL.Query().Get("pm25"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "pm25 must be a number")
		return
	}

	var pm10 *float64
	if raw := r.URL.Query().Get("pm10"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "pm10 must be a number")
			return
		}
		pm10 = &v
	}

	method := aqi.MethodAtmospheric
	if raw := r.URL.Query().Get("method"); raw != "" {
		m, ok := aqi.ParseMethod(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown method")
			return
		}
		method = m
	}

	result, err := aqi.Compute(pm25, pm10, method)
	if err != nil {
		var invalid *aqi.InvalidDataError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.ReadingFilter{
		Location: q.Get("location"),
		Kind:     q.Get("kind"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = since
	}

	readings, err := s.store.ListReadings(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"readings": readings})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.latest == nil {
		writeError(w, http.StatusNotFound, "latest-sample store not configured")
		return
	}
	location := mux.Vars(r)["location"]

	sample, err := s.latest.GetLatest(r.Context(), location)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sample == nil {
		writeError(w, http.StatusNotFound, "no sample for location")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListScheduleConfigs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetScheduleConfigByName(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "config not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	s.upsertConfig(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	s.upsertConfig(w, r, mux.Vars(r)["name"], http.StatusOK)
}

// configRequest is the write payload for schedule configs. Frequency and
// retention are duration labels ("30s", "5m", "24h"); retention may be
// omitted for unlimited.
type configRequest struct {
	Name      string `json:"name"`
	Location  string `json:"location"`
	Kind      string `json:"kind"`
	Frequency string `json:"frequency"`
	Retention string `json:"retention"`
	Enabled   *bool  `json:"enabled"`
	Powersave bool   `json:"powersave"`
}

func (s *Server) upsertConfig(w http.ResponseWriter, r *http.Request, name string, okStatus int) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if name != "" {
		req.Name = name
	}

	cfg, err := configFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpsertScheduleConfig(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.WithFields(log.Fields{
		"name":      cfg.Name,
		"frequency": cfg.FrequencyLabel,
	}).Info("schedule config saved")
	writeJSON(w, okStatus, cfg)
}

func configFromRequest(req *configRequest) (*database.ScheduleConfig, error) {
	if req.Name == "" {
		return nil, errors.New("missing required field 'name'")
	}
	if req.Location == "" {
		return nil, errors.New("missing required field 'location'")
	}
	kind, ok := sensor.ParseReadingKind(req.Kind)
	if !ok {
		return nil, errors.New("kind must be 'standard' or 'atmospheric'")
	}
	if req.Frequency == "" {
		return nil, errors.New("missing required field 'frequency'")
	}
	frequency, err := time.ParseDuration(req.Frequency)
	if err != nil {
		return nil, errors.New("frequency must be a duration like '30s' or '5m'")
	}
	if frequency < scheduler.MinFrequency {
		return nil, errors.New("frequency must be at least " + scheduler.MinFrequency.String())
	}

	cfg := &database.ScheduleConfig{
		Name:             req.Name,
		Location:         req.Location,
		Kind:             string(kind),
		FrequencyLabel:   req.Frequency,
		FrequencySeconds: int(frequency.Seconds()),
		Enabled:          req.Enabled == nil || *req.Enabled,
		Powersave:        req.Powersave,
	}

	if req.Retention != "" {
		retention, err := time.ParseDuration(req.Retention)
		if err != nil || retention <= 0 {
			return nil, errors.New("retention must be a positive duration like '24h'")
		}
		seconds := int(retention.Seconds())
		cfg.RetentionLabel = &req.Retention
		cfg.RetentionSeconds = &seconds
	}

	return cfg, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
