package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/processor"
	"squash-venue-enrichment/pkg/config"
	errs "squash-venue-enrichment/pkg/errors"
	"squash-venue-enrichment/pkg/logging"
	"squash-venue-enrichment/pkg/metrics"
	"squash-venue-enrichment/pkg/monitoring"
)

// App holds what the ops server handlers need.
type App struct {
	engine processor.Engine
	audits domain.AuditLogRepository
	health http.Handler
	config *config.Config
	log    *logging.ComponentLogger
}

func newRouter(app *App, logger *logging.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(monitoring.Middleware(metrics.Default, logger))

	r.Handle("/health", app.health).Methods(http.MethodGet)
	r.Handle(app.config.MetricsPath, metrics.Default.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/venues/{id:[0-9]+}/categorize", app.categorizeVenueHandler).Methods(http.MethodPost)
	r.HandleFunc("/venues/{id:[0-9]+}/audit", app.auditHandler).Methods(http.MethodGet)
	r.HandleFunc("/batches", app.batchHandler).Methods(http.MethodPost)

	if app.config.EnablePprof {
		monitoring.RegisterPprof(r)
	}
	return r
}

func writeJSONResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSONResponse(w, code, map[string]string{"error": msg})
}

func venueID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// requestOptions reads dry_run, skip_courts and min_confidence from the query.
func (app *App) requestOptions(r *http.Request) (processor.Options, error) {
	q := r.URL.Query()
	minConf := q.Get("min_confidence")
	if minConf == "" {
		minConf = app.config.MinConfidence
	}
	conf, err := parseMinConfidence(minConf)
	if err != nil {
		return processor.Options{}, err
	}
	return processor.Options{
		MinConfidence:   conf,
		DryRun:          q.Get("dry_run") == "true",
		SkipCourtCounts: q.Get("skip_courts") == "true",
		Actor:           app.config.Actor + "/http",
	}, nil
}

func (app *App) categorizeVenueHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := venueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid venue id")
		return
	}
	opts, err := app.requestOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := app.engine.CategorizeVenue(r.Context(), id, opts)
	if err != nil {
		app.fail(w, "categorize venue", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

func (app *App) auditHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := venueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid venue id")
		return
	}
	logs, err := app.audits.ListAuditLogsCtx(r.Context(), id)
	if err != nil {
		app.fail(w, "list audit logs", err)
		return
	}
	if logs == nil {
		logs = []domain.VenueAuditLog{}
	}
	writeJSONResponse(w, http.StatusOK, logs)
}

func (app *App) batchHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := app.requestOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bo := processor.BatchOptions{Options: opts, Delay: app.config.BatchDelay, RPS: app.config.BatchRPS}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		bo.Limit = n
	}
	// The batch outlives a dropped client connection.
	sum, err := app.engine.RunBatch(context.WithoutCancel(r.Context()), bo)
	if err != nil {
		app.fail(w, "run batch", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sum)
}

func (app *App) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errs.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "venue not found")
	case errors.Is(err, processor.ErrBatchRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errs.Is(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		app.log.Error(op+" failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
