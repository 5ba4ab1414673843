package itinerary

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-studio/internal/api"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// GetItinerary handles GET /trips/{tripID}/itinerary.
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetItinerary")
	defer span.End()

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip id")
		return
	}

	it, err := h.service.GetItinerary(ctx, tripID)
	if err != nil {
		h.logger.WarnContext(ctx, "Itinerary fetch failed", slog.String("tripID", tripID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary fetch failed")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Itinerary fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

// GetStudioView handles GET /trips/{tripID}/days/{dayIndex}/studio.
func (h *Handler) GetStudioView(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetStudioView")
	defer span.End()

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip id")
		return
	}
	dayIndex, err := strconv.Atoi(chi.URLParam(r, "dayIndex"))
	if err != nil || dayIndex < 1 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid day index")
		return
	}

	view, err := h.service.GetStudioView(ctx, tripID, dayIndex)
	if err != nil {
		h.logger.WarnContext(ctx, "Studio view fetch failed",
			slog.String("tripID", tripID.String()),
			slog.Int("dayIndex", dayIndex),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Studio view fetch failed")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Studio view fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

// ExportICS handles GET /trips/{tripID}/itinerary/export.ics.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "ExportICS")
	defer span.End()

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip id")
		return
	}

	doc, err := h.service.ExportICS(ctx, tripID)
	if err != nil {
		h.logger.WarnContext(ctx, "ICS export failed", slog.String("tripID", tripID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "ICS export failed")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Itinerary exported")
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="itinerary.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
