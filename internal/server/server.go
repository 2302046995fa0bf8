package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/service"
	"ardf-results/internal/sync"

	"github.com/rs/zerolog"
)

// ResultsServer exposes the race results engine as a JSON API.
type ResultsServer struct {
	races       *service.RaceService
	competitors *service.CompetitorService
	readouts    *service.ReadoutService
	results     *service.ResultService
	services    *repository.ServiceConfigRepository
	engine      *sync.Engine
	logger      zerolog.Logger
}

func NewResultsServer(
	races *service.RaceService,
	competitors *service.CompetitorService,
	readouts *service.ReadoutService,
	results *service.ResultService,
	services *repository.ServiceConfigRepository,
	engine *sync.Engine,
	logger zerolog.Logger,
) *ResultsServer {
	return &ResultsServer{
		races:       races,
		competitors: competitors,
		readouts:    readouts,
		results:     results,
		services:    services,
		engine:      engine,
		logger:      logger,
	}
}

// Routes wires every endpoint onto a fresh mux.
func (s *ResultsServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/races", s.handleCreateRace)
	mux.HandleFunc("GET /api/races", s.handleListRaces)
	mux.HandleFunc("GET /api/races/{id}", s.handleGetRace)
	mux.HandleFunc("POST /api/races/{id}/courses", s.handleCreateCourse)
	mux.HandleFunc("POST /api/races/{id}/competitors", s.handleRegisterCompetitor)
	mux.HandleFunc("GET /api/races/{id}/competitors", s.handleListCompetitors)
	mux.HandleFunc("POST /api/races/{id}/readouts", s.handleReadout)
	mux.HandleFunc("GET /api/races/{id}/results", s.handleRankings)
	mux.HandleFunc("POST /api/races/{id}/resend", s.handleResend)
	mux.HandleFunc("PUT /api/competitors/{id}/status", s.handleSetStatus)
	mux.HandleFunc("DELETE /api/competitors/{id}/status", s.handleClearStatus)
	mux.HandleFunc("POST /api/races/{id}/services", s.handleCreateService)
	mux.HandleFunc("GET /api/races/{id}/services", s.handleListServices)
	mux.HandleFunc("PUT /api/services/{id}/enabled", s.handleSetServiceEnabled)
	mux.HandleFunc("POST /api/services/{id}/export", s.handleExport)

	return mux
}

type createRaceRequest struct {
	Name     string `json:"name"`
	Date     string `json:"date"` // "2006-01-02"
	ZeroTime string `json:"zero_time"`
}

func (s *ResultsServer) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req createRaceRequest
	if !s.decode(w, r, &req) {
		return
	}

	race, err := raceFromRequest(&req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.races.CreateRace(r.Context(), race); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, raceView(race))
}

func (s *ResultsServer) handleListRaces(w http.ResponseWriter, r *http.Request) {
	races, err := s.races.ListRaces(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]raceResponse, len(races))
	for i := range races {
		views[i] = raceView(&races[i])
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *ResultsServer) handleGetRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.races.GetRace(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, raceView(race))
}

func (s *ResultsServer) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !s.decode(w, r, &req) {
		return
	}

	course := courseFromRequest(r.PathValue("id"), &req)
	if err := s.races.CreateCourse(r.Context(), course); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": course.ID})
}

func (s *ResultsServer) handleRegisterCompetitor(w http.ResponseWriter, r *http.Request) {
	var input service.CompetitorInput
	if !s.decode(w, r, &input) {
		return
	}
	input.RaceID = r.PathValue("id")

	competitor, err := s.competitors.Register(r.Context(), &input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, competitorView(competitor))
}

func (s *ResultsServer) handleListCompetitors(w http.ResponseWriter, r *http.Request) {
	competitors, err := s.competitors.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]competitorResponse, len(competitors))
	for i := range competitors {
		views[i] = competitorView(&competitors[i])
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *ResultsServer) handleReadout(w http.ResponseWriter, r *http.Request) {
	var readout domain.CardReadout
	if !s.decode(w, r, &readout) {
		return
	}

	result, err := s.readouts.ProcessReadout(r.Context(), r.PathValue("id"), &readout)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resultView(result))
}

func (s *ResultsServer) handleRankings(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.results.Rankings(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]rankedResponse, len(ranked))
	for i := range ranked {
		views[i] = rankedView(&ranked[i])
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *ResultsServer) handleResend(w http.ResponseWriter, r *http.Request) {
	if err := s.results.Resend(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *ResultsServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !s.decode(w, r, &req) {
		return
	}

	status, err := domain.ParseResultStatus(req.Status)
	if err != nil {
		s.writeError(w, r, &service.ValidationError{Field: "status", Reason: err.Error()})
		return
	}

	result, err := s.results.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resultView(result))
}

func (s *ResultsServer) handleClearStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.results.ClearStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resultView(result))
}

type createServiceRequest struct {
	ServiceType string `json:"service_type"`
	URL         string `json:"url"`
	APIKey      string `json:"api_key"`
	Enabled     bool   `json:"enabled"`
}

func (s *ResultsServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if !s.decode(w, r, &req) {
		return
	}

	serviceType, err := domain.ParseServiceType(req.ServiceType)
	if err != nil {
		s.writeError(w, r, &service.ValidationError{Field: "service_type", Reason: err.Error()})
		return
	}

	svc := &domain.ResultServiceConfig{
		RaceID:      r.PathValue("id"),
		ServiceType: serviceType,
		URL:         req.URL,
		APIKey:      req.APIKey,
		Status:      domain.ServiceInit,
		Enabled:     req.Enabled,
	}
	if err := s.services.Create(r.Context(), svc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, serviceView(svc))
}

func (s *ResultsServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.services.ListByRace(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]serviceResponse, len(services))
	for i := range services {
		views[i] = serviceView(&services[i])
	}
	s.writeJSON(w, http.StatusOK, views)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *ResultsServer) handleSetServiceEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.services.SetEnabled(r.Context(), r.PathValue("id"), req.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ResultsServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ExportResults(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *ResultsServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *ResultsServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrUnknownCard):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, sync.ErrUnknownServiceType):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *ResultsServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
