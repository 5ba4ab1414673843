package studio

import (
	"log/slog"
	"net/http"
	"strconv"

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

type applyChangesRequest struct {
	BaseRevision int            `json:"base_revision"`
	Changes      []types.Change `json:"changes"`
}

type applyChangesResponse struct {
	Day      types.ItineraryDay `json:"day"`
	Revision int                `json:"revision"`
}

// ApplyChanges handles POST /trips/{tripID}/days/{dayIndex}/changes.
func (h *Handler) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("StudioHandler").Start(r.Context(), "ApplyChanges")
	defer span.End()

	l := h.logger.With(slog.String("method", "ApplyChanges"))

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

	var req applyChangesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid change set payload", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid payload")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	day, revision, err := h.service.ApplyChanges(ctx, tripID, dayIndex, req.BaseRevision, req.Changes)
	if err != nil {
		l.WarnContext(ctx, "Change set rejected",
			slog.String("tripID", tripID.String()),
			slog.Int("dayIndex", dayIndex),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Change set rejected")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Changes applied")
	api.WriteJSONResponse(w, r, http.StatusOK, applyChangesResponse{Day: day, Revision: revision})
}
