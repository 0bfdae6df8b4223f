// Package handler exposes the read-side projection over HTTP. Commands enter
// the system elsewhere; these endpoints only render computed views.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"walezi/internal/compliance"
	"walezi/internal/guardianship/models"
	"walezi/internal/guardianship/service"
	id "walezi/pkg/domain"
	dErrors "walezi/pkg/domain-errors"
)

// Reader is the read-side surface of the guardianship service.
type Reader interface {
	Get(ctx context.Context, guardianshipID id.GuardianshipID) (*models.Guardianship, error)
	GetComplianceStatus(ctx context.Context, guardianshipID id.GuardianshipID) (service.ComplianceStatus, error)
	GetCalendar(ctx context.Context, guardianshipID id.GuardianshipID, year, month int) (compliance.Calendar, error)
}

// Handler serves guardianship projections.
type Handler struct {
	reader Reader
	logger *slog.Logger
}

func New(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

// Register mounts the read-side routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/guardianships/{guardianshipID}", h.handleGet)
	r.Get("/guardianships/{guardianshipID}/compliance", h.handleComplianceStatus)
	r.Get("/guardianships/{guardianshipID}/calendar", h.handleCalendar)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guardianshipID, err := id.ParseGuardianshipID(chi.URLParam(r, "guardianshipID"))
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := h.reader.Get(ctx, guardianshipID)
	if err != nil {
		h.logger.WarnContext(ctx, "guardianship lookup failed", "guardianship_id", guardianshipID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Project(time.Now()))
}

func (h *Handler) handleComplianceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guardianshipID, err := id.ParseGuardianshipID(chi.URLParam(r, "guardianshipID"))
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := h.reader.GetComplianceStatus(ctx, guardianshipID)
	if err != nil {
		h.logger.WarnContext(ctx, "compliance status failed", "guardianship_id", guardianshipID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guardianshipID, err := id.ParseGuardianshipID(chi.URLParam(r, "guardianshipID"))
	if err != nil {
		writeError(w, err)
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2200 {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "year query parameter is required"))
		return
	}
	month := 0
	if raw := r.URL.Query().Get("month"); raw != "" {
		month, err = strconv.Atoi(raw)
		if err != nil || month < 1 || month > 12 {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "month must be 1-12"))
			return
		}
	}
	calendar, err := h.reader.GetCalendar(ctx, guardianshipID, year, month)
	if err != nil {
		h.logger.WarnContext(ctx, "calendar failed", "guardianship_id", guardianshipID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calendar)
}
