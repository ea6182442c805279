package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	wis "wis-backend"
	"wis-backend/internal/bus"
	"wis-backend/internal/sessions"
	"wis-backend/internal/telemetry"
)

const sessionHeader = "X-Session-Ref"

type Gate interface {
	Enabled() bool
	Open(ctx context.Context, secret string, plant wis.PlantSpec, profile string) (sessions.Session, error)
}

type Publisher interface {
	Publish(subject string, payload any) error
}

type Handler struct {
	Gate       Gate
	Sessions   sessions.Resolver
	History    wis.HistoryStore
	Thresholds wis.ThresholdCatalog
	Profile    string
	Plant      wis.PlantSpec
	Bus        Publisher
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

type sessionKey struct{}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", handleHealth)
	r.Post("/sessions", h.handleOpenSession)
	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Post("/metrics/compute", h.handleComputeMetrics)
		r.Post("/diagnose", h.handleDiagnose)
		r.Get("/thresholds", h.handleThresholds)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.handleHistoryList)
			r.Delete("/", h.handleHistoryClear)
			r.Get("/export", h.handleHistoryExport)
		})
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireSession resolves X-Session-Ref into the request context. The header is
// mandatory only while the access gate is enabled.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimSpace(r.Header.Get(sessionHeader))
		if ref == "" {
			if h.Gate != nil && h.Gate.Enabled() {
				writeError(w, http.StatusUnauthorized, "session required")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if h.Sessions == nil {
			h.writeSessionError(w, sessions.ErrNotConfigured)
			return
		}
		session, err := h.Sessions.ResolveByRef(r.Context(), ref)
		if err != nil {
			h.writeSessionError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func sessionFrom(ctx context.Context) (sessions.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(sessions.Session)
	return s, ok
}

func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if h.Gate == nil {
		h.writeSessionError(w, sessions.ErrNotConfigured)
		return
	}
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ThresholdProfile) != "" {
		if _, err := h.Thresholds.Lookup(req.ThresholdProfile); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	plant := h.Plant
	if req.Plant != nil {
		plant = *req.Plant
	}
	session, err := h.Gate.Open(r.Context(), req.Secret, plant, req.ThresholdProfile)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	h.Logger.Info("session opened", slog.String("sessionRef", session.Ref))
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	plant, sample, err := h.prepare(r.Context(), req.Plant, req.Sample)
	if err != nil {
		writeInputError(w, err)
		return
	}
	metrics := wis.ComputeMetrics(plant, sample)
	if err := wis.ValidateMetrics(metrics); err != nil {
		writeInputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, computeResponse{
		Plant:     plant,
		Metrics:   metrics,
		Undefined: wis.UndefinedMetrics(plant, sample),
	})
}

func (h *Handler) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	plant, sample, err := h.prepare(r.Context(), req.Plant, req.Sample)
	if err != nil {
		writeInputError(w, err)
		return
	}
	profile := h.profileFor(r.Context(), req.ThresholdProfile)
	thresholds, err := h.Thresholds.Lookup(profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := wis.Run(plant, sample, thresholds)
	if err := wis.ValidateMetrics(report.Metrics); err != nil {
		writeInputError(w, err)
		return
	}
	h.Metrics.ObserveReport(report)
	now := h.now()
	resp := diagnoseResponse{
		Report:           report,
		Plant:            plant,
		ThresholdProfile: profile,
		Record:           wis.NewHistoryRecord(now, sample, report.Metrics),
		DiagnosedAt:      now,
	}
	if !req.SkipHistory {
		if err := h.History.Append(r.Context(), resp.Record); err != nil {
			h.Metrics.HistoryError("append")
			h.Logger.Error("failed to save history", slog.String("error", err.Error()))
			resp.HistoryError = "failed to save history"
		} else {
			resp.HistorySaved = true
		}
	}
	session, _ := sessionFrom(r.Context())
	h.publish(bus.SubjectDiagnosisCompleted, bus.DiagnosisEvent{
		SessionRef: session.Ref,
		Timestamp:  now,
		Record:     resp.Record,
		Status:     report.Status,
		Findings:   report.Findings,
	})
	h.Logger.Info("diagnosis completed",
		slog.String("status", string(report.Status)),
		slog.Int("critical", report.Critical),
		slog.Int("warnings", report.Warnings),
		slog.String("profile", profile),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"activeProfile": h.profileFor(r.Context(), ""),
		"profiles":      h.Thresholds,
	})
}

func (h *Handler) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	records, err := h.History.List(r.Context())
	if err != nil {
		h.Metrics.HistoryError("list")
		h.Logger.Error("failed to list history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	total := len(records)
	if limit > 0 && limit < total {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "total": total})
}

func (h *Handler) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := h.History.Clear(r.Context()); err != nil {
		h.Metrics.HistoryError("clear")
		h.Logger.Error("failed to clear history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	session, _ := sessionFrom(r.Context())
	h.publish(bus.SubjectHistoryCleared, bus.HistoryClearedEvent{SessionRef: session.Ref, Timestamp: h.now()})
	h.Logger.Info("history cleared", slog.String("sessionRef", session.Ref))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleHistoryExport streams the history as the CSV file operators download,
// oldest record first.
func (h *Handler) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	records, err := h.History.List(r.Context())
	if err != nil {
		h.Metrics.HistoryError("export")
		h.Logger.Error("failed to export history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to export history")
		return
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", wis.DefaultHistoryPath))
	w.WriteHeader(http.StatusOK)
	if err := wis.WriteHistoryCSV(w, records); err != nil {
		h.Logger.Error("failed to write history export", slog.String("error", err.Error()))
	}
}

// prepare picks the plant (request, then session, then service default) and
// validates both inputs.
func (h *Handler) prepare(ctx context.Context, plant *wis.PlantSpec, sample *wis.MeasurementSample) (wis.PlantSpec, wis.MeasurementSample, error) {
	if sample == nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, errors.New("sample is required")
	}
	spec := h.Plant
	if session, ok := sessionFrom(ctx); ok {
		spec = session.Plant
	}
	if plant != nil {
		spec = *plant
	}
	if err := wis.ValidatePlant(spec); err != nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, err
	}
	if err := wis.ValidateSample(*sample); err != nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, err
	}
	return spec, *sample, nil
}

func (h *Handler) profileFor(ctx context.Context, requested string) string {
	if p := strings.TrimSpace(requested); p != "" {
		return p
	}
	if session, ok := sessionFrom(ctx); ok && session.ThresholdProfile != "" {
		return session.ThresholdProfile
	}
	return h.Profile
}

func (h *Handler) publish(subject string, payload any) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(subject, payload); err != nil {
		h.Logger.Warn("failed to publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, sessions.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sessions.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sessions.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("session lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
