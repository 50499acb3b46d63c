package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/territory-run/internal/bonus"
	"github.com/example/territory-run/internal/capture"
	"github.com/example/territory-run/internal/config"
	"github.com/example/territory-run/internal/energy"
	"github.com/example/territory-run/internal/geo"
	"github.com/example/territory-run/internal/ingest"
	"github.com/example/territory-run/internal/logging"
	"github.com/example/territory-run/internal/models"
	"github.com/example/territory-run/internal/motion"
	"github.com/example/territory-run/internal/pathgeo"
	"github.com/example/territory-run/internal/payments"
	"github.com/example/territory-run/internal/presence"
	"github.com/example/territory-run/internal/storage"
	"github.com/example/territory-run/internal/weather"
)

type Server struct {
	Capture *capture.Service
	Energy  *energy.Ledger
	Refill  *payments.RefillClient
	logger  *slog.Logger
	mux     *mux.Router
}

// NewServer wires an already-constructed engine; used by tests and by
// NewServerFromEnv.
func NewServer(logger *slog.Logger, svc *capture.Service, ledger *energy.Ledger, refill *payments.RefillClient) *Server {
	s := &Server{Capture: svc, Energy: ledger, Refill: refill, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromEnv builds the full engine from environment configuration,
// falling back to in-memory collaborators when Redis/Kafka/Postgres are not
// configured.
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var store storage.Store
	var roster capture.TeamRoster
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store, roster = ps, ps
	} else {
		ms := storage.NewMemoryStore()
		store, roster = ms, ms
	}

	var tracker presence.Tracker
	if cfg.RedisAddr != "" {
		tracker = presence.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		tracker = presence.NewMemory()
	}

	var lookup bonus.WeatherLookup
	if cfg.WeatherEndpoint != "" {
		lookup = weather.NewCache(weather.NewClient(cfg.WeatherEndpoint), cfg.WeatherCacheTTL)
	} else {
		lookup = noWeather{}
	}

	var publisher capture.PingPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	ledger := energy.NewLedger(store)
	ledger.Capacity = cfg.EnergyCapacity

	calc := bonus.NewCalculator(tracker, lookup)
	calc.Window = cfg.BonusWindow

	validator := &motion.Validator{
		MaxSpeedKmh:  cfg.MaxSpeedKmh,
		MinSpeedKmh:  cfg.MinSpeedKmh,
		MaxAccuracyM: cfg.MaxAccuracyM,
	}
	evaluator := pathgeo.NewEvaluator(geo.Planar{})
	evaluator.CoverageThreshold = cfg.CoverageThreshold

	svc := &capture.Service{
		Store:      store,
		Roster:     roster,
		Motion:     validator,
		Evaluator:  evaluator,
		Geo:        geo.Planar{},
		Energy:     ledger,
		Bonus:      calc,
		Publisher:  publisher,
		Logger:     logger,
		WindowSize: cfg.WindowSize,
		EnergyCost: cfg.EnergyCost,
	}

	return NewServer(logger, svc, ledger, payments.NewRefillClient()), nil
}

// noWeather reports no reading; the environmental bonus then depends only on
// the hour of day.
type noWeather struct{}

func (noWeather) Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error) {
	return models.WeatherReading{}, false, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/territories/{territory_id}/paths", s.handleStartPath).Methods("POST")
	s.mux.HandleFunc("/api/v1/paths/{path_id}/points", s.handleAddPoint).Methods("POST")
	s.mux.HandleFunc("/api/v1/paths/{path_id}/complete", s.handleCompletePath).Methods("POST")
	s.mux.HandleFunc("/api/v1/territories/{territory_id}/capture", s.handlePresenceCapture).Methods("POST")
	s.mux.HandleFunc("/api/v1/territories/{territory_id}/fortify", s.handleFortify).Methods("POST")
	s.mux.HandleFunc("/api/v1/energy/refill", s.handleCreateRefill).Methods("POST")
	s.mux.HandleFunc("/api/v1/energy/refill/{intent_id}/confirm", s.handleConfirmRefill).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/paths/{path_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleStartPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string           `json:"user_id"`
		Sample models.GpsSample `json:"sample"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.Capture.StartPath(r.Context(), req.UserID, mux.Vars(r)["territory_id"], req.Sample)
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"path_id": p.ID, "start_time": p.StartedAt})
}

func (s *Server) handleAddPoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string           `json:"user_id"`
		Sample models.GpsSample `json:"sample"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	count, err := s.Capture.AddPoint(r.Context(), mux.Vars(r)["path_id"], req.UserID, req.Sample)
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points_count": count})
}

func (s *Server) handleCompletePath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.Capture.CompletePath(r.Context(), mux.Vars(r)["path_id"], req.UserID)
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePresenceCapture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string       `json:"user_id"`
		Point  models.Coord `json:"point"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.Capture.CaptureByPresence(r.Context(), req.UserID, mux.Vars(r)["territory_id"], req.Point)
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFortify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	level, err := s.Capture.Fortify(r.Context(), req.UserID, mux.Vars(r)["territory_id"])
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fortification": level})
}

func (s *Server) handleCreateRefill(w http.ResponseWriter, r *http.Request) {
	if s.Refill == nil {
		writeError(w, http.StatusNotImplemented, errors.New("refill purchases not configured"))
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		Units  int    `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	intentID, err := s.Refill.CreateRefillIntent(r.Context(), req.UserID, req.Units)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"intent_id": intentID})
}

func (s *Server) handleConfirmRefill(w http.ResponseWriter, r *http.Request) {
	if s.Refill == nil {
		writeError(w, http.StatusNotImplemented, errors.New("refill purchases not configured"))
		return
	}
	userID, units, err := s.Refill.ConfirmRefill(r.Context(), mux.Vars(r)["intent_id"])
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if err := s.Energy.Credit(r.Context(), userID, units); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "credited": units})
}

var upgrader = websocket.Upgrader{}

// handleWS streams samples onto an open path: the client sends one
// GpsSample JSON message at a time and receives an accept/reject ack for
// each, mirroring addPoint over a persistent connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	pathID := mux.Vars(r)["path_id"]
	userID := r.URL.Query().Get("user_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var sample models.GpsSample
		if err := conn.ReadJSON(&sample); err != nil {
			return
		}
		count, err := s.Capture.AddPoint(r.Context(), pathID, userID, sample)
		ack := map[string]any{"accepted": err == nil}
		if err != nil {
			ack["error"] = err.Error()
		} else {
			ack["points_count"] = count
		}
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
	}
}

func (s *Server) writeCaptureError(w http.ResponseWriter, err error) {
	var violation *motion.ViolationError
	var rejected *capture.GeometryRejectedError
	switch {
	case errors.Is(err, capture.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, capture.ErrConflict),
		errors.Is(err, capture.ErrPathClosed),
		errors.Is(err, capture.ErrAlreadyOwned),
		errors.Is(err, capture.ErrNoActiveTeam),
		errors.Is(err, storage.ErrFortifyUnavailable):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, capture.ErrEnergyExhausted):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, capture.ErrOutOfBounds):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, geo.ErrCoordOutOfRange):
		writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     violation.Error(),
			"reason":    violation.Reason,
			"speed_kmh": violation.SpeedKmh,
		})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      rejected.Error(),
			"evaluation": rejected.Evaluation,
		})
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
