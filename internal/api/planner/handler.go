package planner

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-studio/internal/api"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
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

type planResponse struct {
	TripID    uuid.UUID             `json:"trip_id"`
	Itinerary *types.Itinerary      `json:"itinerary"`
	Issues    []types.CritiqueIssue `json:"issues,omitempty"`
}

// CreateTrip handles POST /trips - creates a trip and plans its itinerary.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "CreateTrip")
	defer span.End()

	l := h.logger.With(slog.String("method", "CreateTrip"))

	var spec types.TripSpec
	if err := api.DecodeJSONBody(w, r, &spec); err != nil {
		l.WarnContext(ctx, "Invalid trip spec payload", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid payload")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tripID, it, issues, err := h.service.CreateTrip(ctx, spec)
	if err != nil {
		l.ErrorContext(ctx, "Planning run failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Planning failed")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Trip created")
	api.WriteJSONResponse(w, r, http.StatusCreated, planResponse{TripID: tripID, Itinerary: it, Issues: issues})
}

// RegenerateItinerary handles POST /trips/{tripID}/itinerary.
func (h *Handler) RegenerateItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "RegenerateItinerary")
	defer span.End()

	l := h.logger.With(slog.String("method", "RegenerateItinerary"))

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip id")
		return
	}

	it, issues, err := h.service.RegenerateItinerary(ctx, tripID)
	if err != nil {
		l.ErrorContext(ctx, "Regeneration failed", slog.String("tripID", tripID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Regeneration failed")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Itinerary regenerated")
	api.WriteJSONResponse(w, r, http.StatusOK, planResponse{TripID: tripID, Itinerary: it, Issues: issues})
}
