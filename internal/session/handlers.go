package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/handlers"
	"go-chi-calculator/internal/history"
	"go-chi-calculator/internal/observability"
)

// tracer is the calculator's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("calculator")

// Handler serves the calculator session API.
type Handler struct {
	sessions *Registry
}

func NewHandler(sessions *Registry) *Handler {
	return &Handler{sessions: sessions}
}

// startSpan opens the handler span shared by every endpoint.
func startSpan(r *http.Request, opName string) (context.Context, trace.Span, *zap.Logger, string) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "calculator."+opName,
		trace.WithAttributes(
			attribute.String("calculator.operation", opName),
			attribute.String("request.id", requestID),
		),
	)
	return ctx, span, logger, requestID
}

// lookup resolves the {id} URL parameter, resuming a dropped session from
// its stored history, or writes the error response.
func (h *Handler) lookup(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span, logger *zap.Logger, opName string) (*Session, bool) {
	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("calculator.session.id", id))

	s, err := h.sessions.Resume(ctx, id)
	if errors.Is(err, ErrNotFound) {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "session not found", err, http.StatusNotFound, w)
		return nil, false
	}
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "loading session failed", err, http.StatusInternalServerError, w)
		return nil, false
	}
	return s, true
}

func (s *Session) response() SessionResponse {
	readout, pending, size := s.Snapshot()
	return SessionResponse{
		ID:          s.ID,
		Readout:     readout,
		Pending:     pending,
		HistorySize: size,
	}
}

// ---------------------------------------------------------------------------
// Handlers — session lifecycle
// ---------------------------------------------------------------------------

// Create handles POST /calculator/sessions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, requestID := startSpan(r, "session.create")
	defer span.End()

	s, err := h.sessions.Create(ctx)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "session.create", "loading history failed", err, http.StatusInternalServerError, w)
		return
	}

	resp := s.response()
	span.SetAttributes(
		attribute.String("calculator.session.id", s.ID),
		attribute.Int("calculator.history.size", resp.HistorySize),
	)
	span.SetStatus(codes.Ok, "")

	logger.Info("calculator session created",
		zap.String("session_id", s.ID),
		zap.Int("history_size", resp.HistorySize),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusCreated, resp)
}

// Get handles GET /calculator/sessions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, _ := startSpan(r, "session.get")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "session.get")
	if !ok {
		return
	}

	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, s.response())
}

// Delete handles DELETE /calculator/sessions/{id}. History stays in the
// store.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, requestID := startSpan(r, "session.delete")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "session.delete")
	if !ok {
		return
	}
	h.sessions.Remove(s.ID)

	span.SetStatus(codes.Ok, "")
	logger.Info("calculator session removed",
		zap.String("session_id", s.ID),
		zap.String("request_id", requestID),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Handlers — input
// ---------------------------------------------------------------------------

// Press handles POST /calculator/sessions/{id}/actions
func (h *Handler) Press(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, _ := startSpan(r, "session.press")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "session.press")
	if !ok {
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "session.press", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	action, err := calculator.ParseAction(req.Action, req.Value)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "session.press", "invalid action", err, http.StatusBadRequest, w)
		return
	}

	if err := applyAction(ctx, span, logger, s, action); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "session.press", "saving history failed", err, http.StatusInternalServerError, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, s.response())
}

// Keys handles POST /calculator/sessions/{id}/keys. Keys that map to no
// action are skipped and reported back.
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, _ := startSpan(r, "session.keys")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "session.keys")
	if !ok {
		return
	}

	var req KeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "session.keys", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	span.SetAttributes(attribute.Int("calculator.keys.count", len(req.Keys)))

	var ignored []string
	for _, key := range req.Keys {
		action, ok := calculator.ActionForKey(key)
		if !ok {
			ignored = append(ignored, key)
			continue
		}
		if err := applyAction(ctx, span, logger, s, action); err != nil {
			observability.RecordError(ctx, span, logger, errorCounter, "session.keys", "saving history failed", err, http.StatusInternalServerError, w)
			return
		}
	}

	span.SetAttributes(attribute.Int("calculator.keys.ignored", len(ignored)))
	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, KeysResponse{
		SessionResponse: s.response(),
		Ignored:         ignored,
	})
}

// applyAction dispatches one action on the session and records its metrics,
// span events and log lines.
func applyAction(ctx context.Context, span trace.Span, logger *zap.Logger, s *Session, action calculator.Action) error {
	requestID := observability.RequestIDFromContext(ctx)

	start := time.Now()
	out, readout, err := s.Dispatch(action)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0 // ms

	attrs := metric.WithAttributes(attribute.String("action", action.Kind.String()))
	actionCounter.Add(ctx, 1, attrs)
	actionHistogram.Record(ctx, elapsed, attrs)

	if out.DivisionByZero {
		errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "divide_by_zero")))
		span.AddEvent("calculator.error_state", trace.WithAttributes(
			attribute.String("reason", "division by zero"),
		))
		logger.Info("division by zero",
			zap.String("session_id", s.ID),
			zap.String("request_id", requestID),
		)
	}

	if out.Calculated {
		calculationCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("recorded", out.Recorded)))
		if v, perr := strconv.ParseFloat(out.Result, 64); perr == nil {
			resultGauge.Record(ctx, v)
		}
		span.AddEvent("computation.complete", trace.WithAttributes(
			attribute.String("result", out.Result),
			attribute.Bool("recorded", out.Recorded),
			attribute.Float64("duration_ms", elapsed),
		))
	}

	if err != nil {
		return err
	}

	if out.Recorded {
		logger.Info("calculation recorded",
			zap.String("session_id", s.ID),
			zap.String("result", out.Result),
			zap.String("operand", readout.Operand),
			zap.String("request_id", requestID),
			zap.Float64("duration_ms", elapsed),
		)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Handlers — history
// ---------------------------------------------------------------------------

// History handles GET /calculator/sessions/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, _ := startSpan(r, "history.list")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "history.list")
	if !ok {
		return
	}

	entries := s.History()
	if entries == nil {
		entries = []history.Entry{}
	}

	span.SetAttributes(attribute.Int("calculator.history.size", len(entries)))
	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, HistoryResponse{ID: s.ID, Entries: entries})
}

// HistoryPanel handles GET /calculator/sessions/{id}/history/panel and
// returns the history rows as escaped HTML.
func (h *Handler) HistoryPanel(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, _ := startSpan(r, "history.panel")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "history.panel")
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := history.RenderHTML(&buf, s.History()); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "history.panel", "rendering history failed", err, http.StatusInternalServerError, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ClearHistory handles DELETE /calculator/sessions/{id}/history
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, requestID := startSpan(r, "history.clear")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "history.clear")
	if !ok {
		return
	}

	if err := s.ClearHistory(); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "history.clear", "saving history failed", err, http.StatusInternalServerError, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("history cleared",
		zap.String("session_id", s.ID),
		zap.String("request_id", requestID),
	)
	handlers.WriteJSON(w, http.StatusOK, s.response())
}

// SelectHistory handles POST /calculator/sessions/{id}/history/{index}/select
// and loads that entry's result as the current operand.
func (h *Handler) SelectHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, _ := startSpan(r, "history.select")
	defer span.End()

	s, ok := h.lookup(ctx, w, r, span, logger, "history.select")
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "history.select", "invalid history index", err, http.StatusBadRequest, w)
		return
	}
	span.SetAttributes(attribute.Int("calculator.history.index", index))

	if _, ok := s.SelectHistory(index); !ok {
		observability.RecordError(ctx, span, logger, errorCounter, "history.select", "history entry not found",
			fmt.Errorf("index %d out of range", index), http.StatusNotFound, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, s.response())
}

// ---------------------------------------------------------------------------
// Handler — stateless replay (one child span per key)
// ---------------------------------------------------------------------------

// captured collects the history a replayed engine would have written.
type captured struct {
	entries []history.Entry
	now     func() time.Time
}

func (c *captured) Append(expression, result string) error {
	c.entries = append([]history.Entry{{
		Expression: expression,
		Result:     result,
		Timestamp:  c.now().UnixMilli(),
	}}, c.entries...)
	if len(c.entries) > history.DefaultCapacity {
		c.entries = c.entries[:history.DefaultCapacity]
	}
	return nil
}

// Evaluate handles POST /calculator/evaluate. It replays keys on a throwaway
// engine, creating a child span for every key. Nothing is persisted.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger, requestID := startSpan(r, "evaluate")
	defer span.End()

	var req KeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "evaluate", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	if len(req.Keys) == 0 {
		observability.RecordError(ctx, span, logger, errorCounter, "evaluate", "no keys provided", fmt.Errorf("keys array is empty"), http.StatusBadRequest, w)
		return
	}

	span.SetAttributes(attribute.Int("calculator.keys.count", len(req.Keys)))

	rec := &captured{now: time.Now}
	engine := calculator.NewEngine(calculator.WithRecorder(rec))

	steps := make([]EvaluateStep, 0, len(req.Keys))
	var ignored []string

	for i, key := range req.Keys {
		action, ok := calculator.ActionForKey(key)
		if !ok {
			ignored = append(ignored, key)
			continue
		}

		_, stepSpan := tracer.Start(ctx, fmt.Sprintf("calculator.evaluate.step.%d", i),
			trace.WithAttributes(
				attribute.Int("calculator.step.index", i),
				attribute.String("calculator.step.action", action.String()),
				attribute.String("calculator.step.input", engine.Operand()),
			),
		)

		start := time.Now()
		out, err := engine.Dispatch(action)
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()
			observability.RecordError(ctx, span, logger, errorCounter, "evaluate", "replaying keys failed", err, http.StatusInternalServerError, w)
			return
		}

		attrs := metric.WithAttributes(attribute.String("action", action.Kind.String()))
		actionCounter.Add(ctx, 1, attrs)
		actionHistogram.Record(ctx, elapsed, attrs)

		if out.DivisionByZero {
			errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "divide_by_zero")))
			stepSpan.AddEvent("calculator.error_state")
		}
		if out.Calculated {
			calculationCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("recorded", out.Recorded)))
		}

		stepSpan.SetAttributes(attribute.String("calculator.step.operand", engine.Operand()))
		stepSpan.SetStatus(codes.Ok, "")
		stepSpan.End()

		steps = append(steps, EvaluateStep{
			Key:        key,
			Operand:    engine.Readout().Operand,
			Expression: engine.Expression(),
		})
	}

	readout := engine.Readout()
	if rec.entries == nil {
		rec.entries = []history.Entry{}
	}

	span.AddEvent("evaluate.complete", trace.WithAttributes(
		attribute.String("operand", engine.Operand()),
		attribute.Int("total_steps", len(steps)),
	))
	span.SetStatus(codes.Ok, "")

	logger.Info("key sequence evaluated",
		zap.Int("keys", len(req.Keys)),
		zap.Int("ignored", len(ignored)),
		zap.String("operand", engine.Operand()),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusOK, EvaluateResponse{
		Readout: readout,
		Steps:   steps,
		History: rec.entries,
		Ignored: ignored,
	})
}
