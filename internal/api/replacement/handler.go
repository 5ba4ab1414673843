package replacement

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

type applyRequest struct {
	OldPlaceID       string `json:"old_place_id"`
	NewPlaceID       string `json:"new_place_id"`
	IdempotencyKey   string `json:"idempotency_key,omitempty"`
	BaseRouteVersion int    `json:"base_route_version"`
}

type applyResponse struct {
	Block        types.ItineraryBlock `json:"block"`
	RouteVersion int                  `json:"route_version"`
}

type alternativesResponse struct {
	Options []types.ReplacementOption `json:"options"`
}

// FindAlternatives handles GET /trips/{tripID}/days/{dayIndex}/blocks/{blockIndex}/alternatives.
func (h *Handler) FindAlternatives(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ReplacementHandler").Start(r.Context(), "FindAlternatives")
	defer span.End()

	tripID, dayIndex, blockIndex, ok := pathParams(w, r)
	if !ok {
		return
	}

	options, err := h.service.FindAlternatives(ctx, tripID, dayIndex, blockIndex)
	if err != nil {
		h.logger.WarnContext(ctx, "Alternatives lookup failed",
			slog.String("tripID", tripID.String()),
			slog.Int("dayIndex", dayIndex),
			slog.Int("blockIndex", blockIndex),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Alternatives lookup failed")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Alternatives returned")
	api.WriteJSONResponse(w, r, http.StatusOK, alternativesResponse{Options: options})
}

// ApplyReplacement handles POST /trips/{tripID}/days/{dayIndex}/blocks/{blockIndex}/replace.
// The idempotency key may come from either the Idempotency-Key header or the
// request body; the header wins.
func (h *Handler) ApplyReplacement(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ReplacementHandler").Start(r.Context(), "ApplyReplacement")
	defer span.End()

	tripID, dayIndex, blockIndex, ok := pathParams(w, r)
	if !ok {
		return
	}

	var req applyRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.SetStatus(codes.Error, "Invalid payload")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	block, version, err := h.service.ApplyReplacement(ctx, tripID, dayIndex, blockIndex, req.OldPlaceID, req.NewPlaceID, key, req.BaseRouteVersion)
	if err != nil {
		h.logger.WarnContext(ctx, "Replacement rejected",
			slog.String("tripID", tripID.String()),
			slog.Int("dayIndex", dayIndex),
			slog.Int("blockIndex", blockIndex),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Replacement rejected")
		api.ErrorResponse(w, r, api.ConditionStatus(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Replacement applied")
	api.WriteJSONResponse(w, r, http.StatusOK, applyResponse{Block: block, RouteVersion: version})
}

func pathParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, int, bool) {
	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip id")
		return uuid.Nil, 0, 0, false
	}
	dayIndex, err := strconv.Atoi(chi.URLParam(r, "dayIndex"))
	if err != nil || dayIndex < 1 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid day index")
		return uuid.Nil, 0, 0, false
	}
	blockIndex, err := strconv.Atoi(chi.URLParam(r, "blockIndex"))
	if err != nil || blockIndex < 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid block index")
		return uuid.Nil, 0, 0, false
	}
	return tripID, dayIndex, blockIndex, true
}
