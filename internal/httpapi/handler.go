package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/dosewatch/internal/adherence"
	"github.com/roach88/dosewatch/internal/engine"
	"github.com/roach88/dosewatch/internal/medication"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine  *engine.Engine
	pending *Pending
}

// NewHandler creates a handler over eng. pending must be the Responder eng
// was created with.
func NewHandler(eng *engine.Engine, pending *Pending) *Handler {
	return &Handler{engine: eng, pending: pending}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/medicines", h.listMedicines)
		r.Post("/medicines", h.addMedicine)
		r.Delete("/medicines/{id}", h.deleteMedicine)

		r.Get("/reminders", h.reminderStatus)
		r.Post("/reminders/start", h.startReminders)
		r.Post("/reminders/stop", h.stopReminders)

		r.Get("/firings", h.listFirings)
		r.Post("/firings/{id}/response", h.answerFiring)

		r.Get("/log", h.listLog)
		r.Get("/log/summary", h.logSummary)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListMedicines())
}

type addMedicineRequest struct {
	Name         string   `json:"name"`
	Dose         string   `json:"dose"`
	Instructions string   `json:"instructions"`
	Times        []string `json:"times"`
}

func (h *Handler) addMedicine(w http.ResponseWriter, r *http.Request) {
	var req addMedicineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("VALIDATION", err.Error()))
		return
	}

	m, err := h.engine.AddMedicine(r.Context(), medication.Input{
		Name:         req.Name,
		Dose:         req.Dose,
		Instructions: req.Instructions,
		Times:        req.Times,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("VALIDATION", "medicine ID must be an integer"))
		return
	}
	if err := h.engine.DeleteMedicine(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reminderStatus struct {
	State string        `json:"state"`
	Slots []engine.Slot `json:"slots"`
}

func (h *Handler) reminderStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, reminderStatus{
		State: h.engine.State().String(),
		Slots: h.engine.Slots(),
	})
}

func (h *Handler) startReminders(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(); err != nil {
		writeError(w, err)
		return
	}
	h.reminderStatus(w, r)
}

func (h *Handler) stopReminders(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(); err != nil {
		writeError(w, err)
		return
	}
	h.reminderStatus(w, r)
}

func (h *Handler) listFirings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pending.List())
}

type answerRequest struct {
	Taken *bool `json:"taken"`
}

func (h *Handler) answerFiring(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("VALIDATION", err.Error()))
		return
	}
	if req.Taken == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("VALIDATION", "taken is required"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.pending.Answer(id, *req.Taken); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("NOT_FOUND", err.Error()))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "taken": *req.Taken})
}

func (h *Handler) listLog(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.filteredLog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) logSummary(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.filteredLog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, adherence.Summarize(entries))
}

func (h *Handler) filteredLog(w http.ResponseWriter, r *http.Request) ([]medication.LogEntry, bool) {
	entries, err := h.engine.ListLog(r.Context())
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	q := r.URL.Query()
	return adherence.Filter(entries, adherence.Query{
		Medicine: q.Get("medicine"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	}), true
}

// statusFor maps core error codes onto HTTP statuses.
func statusFor(err error) (int, string) {
	var coreErr *medication.Error
	if !errors.As(err, &coreErr) {
		return http.StatusInternalServerError, "INTERNAL"
	}
	switch coreErr.Code {
	case medication.ErrCodeValidation:
		return http.StatusBadRequest, string(coreErr.Code)
	case medication.ErrCodeNotFound:
		return http.StatusNotFound, string(coreErr.Code)
	case medication.ErrCodeEmptySchedule, medication.ErrCodeInvalidState:
		return http.StatusConflict, string(coreErr.Code)
	default:
		return http.StatusInternalServerError, string(coreErr.Code)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody(code, err.Error()))
}

func errorBody(code, message string) map[string]string {
	return map[string]string{"code": code, "error": message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
