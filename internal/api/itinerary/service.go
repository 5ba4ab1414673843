package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// GetItinerary returns the latest committed itinerary state.
	GetItinerary(ctx context.Context, tripID uuid.UUID) (*types.Itinerary, error)
	// GetStudioView returns one day with its current concurrency tokens.
	GetStudioView(ctx context.Context, tripID uuid.UUID, dayIndex int) (*types.StudioView, error)
	// ExportICS renders the itinerary as an iCalendar document, one event
	// per placed block.
	ExportICS(ctx context.Context, tripID uuid.UUID) (string, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ServiceImpl) GetItinerary(ctx context.Context, tripID uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("Itinerary").Start(ctx, "GetItinerary")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	it, err := s.repo.GetItinerary(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "itinerary fetched")
	return it, nil
}

func (s *ServiceImpl) GetStudioView(ctx context.Context, tripID uuid.UUID, dayIndex int) (*types.StudioView, error) {
	ctx, span := otel.Tracer("Itinerary").Start(ctx, "GetStudioView")
	defer span.End()
	span.SetAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.Int("day.index", dayIndex),
	)

	view, err := s.repo.GetStudioView(ctx, tripID, dayIndex)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "studio view fetched")
	return view, nil
}

func (s *ServiceImpl) ExportICS(ctx context.Context, tripID uuid.UUID) (string, error) {
	ctx, span := otel.Tracer("Itinerary").Start(ctx, "ExportICS")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	it, err := s.repo.GetItinerary(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//TripStudio//EN")

	for _, day := range it.Days {
		for i, block := range day.Blocks {
			if block.Place == nil {
				continue
			}
			uid := fmt.Sprintf("%s-%d-%d@tripstudio", tripID, day.DayIndex, i)
			event := cal.AddEvent(uid)
			event.SetCreatedTime(it.CreatedAt)
			event.SetStartAt(minuteOnDate(day.Date, block.StartMinute))
			event.SetEndAt(minuteOnDate(day.Date, block.EndMinute))
			event.SetSummary(block.Place.Name)
			event.SetLocation(fmt.Sprintf("%f,%f", block.Place.Latitude, block.Place.Longitude))
			if block.Notes != "" {
				event.SetDescription(block.Notes)
			}
		}
	}

	s.logger.InfoContext(ctx, "Itinerary exported",
		slog.String("tripID", tripID.String()),
		slog.Int("days", len(it.Days)))
	span.SetStatus(codes.Ok, "itinerary exported")
	return cal.Serialize(), nil
}

func minuteOnDate(date time.Time, minute int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, minute, 0, 0, date.Location())
}
