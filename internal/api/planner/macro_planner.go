package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	generativeAI "github.com/FACorreiaa/go-trip-studio/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-studio/internal/types"
)

const (
	defaultTemperature = 0.5
	mealDurationMin    = 75
)

// SkeletonProposer is the generative capability behind the macro planner.
// Its output is fallible and non-deterministic and must be validated.
type SkeletonProposer interface {
	ProposeSkeleton(ctx context.Context, spec types.TripSpec) ([]types.DaySkeleton, error)
}

var _ SkeletonProposer = (*AIProposer)(nil)

type AIProposer struct {
	logger *slog.Logger
	ai     *generativeAI.AIClient
}

func NewAIProposer(ai *generativeAI.AIClient, logger *slog.Logger) *AIProposer {
	return &AIProposer{logger: logger, ai: ai}
}

func (p *AIProposer) ProposeSkeleton(ctx context.Context, spec types.TripSpec) ([]types.DaySkeleton, error) {
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](defaultTemperature)}
	txt, err := p.ai.GenerateResponse(ctx, GetSkeletonPrompt(spec), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate skeleton proposal: %w", err)
	}

	var proposal struct {
		Days []types.DaySkeleton `json:"days"`
	}
	if err := json.Unmarshal([]byte(generativeAI.StripJSONFences(txt)), &proposal); err != nil {
		return nil, fmt.Errorf("failed to parse skeleton proposal JSON: %w", err)
	}
	return proposal.Days, nil
}

// MacroPlanner turns a trip spec into one validated day skeleton per trip
// day. An invalid or failed generative proposal falls back to the
// deterministic template rather than failing the planning run.
type MacroPlanner struct {
	logger   *slog.Logger
	proposer SkeletonProposer
}

func NewMacroPlanner(proposer SkeletonProposer, logger *slog.Logger) *MacroPlanner {
	return &MacroPlanner{logger: logger, proposer: proposer}
}

func (m *MacroPlanner) GenerateSkeleton(ctx context.Context, spec types.TripSpec) []types.DaySkeleton {
	if m.proposer != nil {
		proposed, err := m.proposer.ProposeSkeleton(ctx, spec)
		if err == nil {
			if vErr := ValidateSkeletons(proposed, spec); vErr == nil {
				return proposed
			} else {
				m.logger.WarnContext(ctx, "Proposed skeleton failed validation, using template",
					slog.Any("error", vErr))
			}
		} else {
			m.logger.WarnContext(ctx, "Skeleton proposal failed, using template", slog.Any("error", err))
		}
	}

	days := spec.Days()
	skeletons := make([]types.DaySkeleton, 0, days)
	for d := 1; d <= days; d++ {
		skeletons = append(skeletons, TemplateSkeleton(spec, d))
	}
	return skeletons
}

// ValidateSkeletons enforces the macro planner contract: one skeleton per
// trip day; blocks time-ordered and non-overlapping; a meal block inside
// each declared meal window; everything within the wake/sleep window.
func ValidateSkeletons(skeletons []types.DaySkeleton, spec types.TripSpec) error {
	if len(skeletons) != spec.Days() {
		return fmt.Errorf("expected %d day skeletons, got %d", spec.Days(), len(skeletons))
	}
	for _, sk := range skeletons {
		if len(sk.Blocks) == 0 {
			return fmt.Errorf("day %d: skeleton has no blocks", sk.DayIndex)
		}
		prevEnd := spec.Routine.WakeMinute
		for i, b := range sk.Blocks {
			if b.StartMinute >= b.EndMinute {
				return fmt.Errorf("day %d block %d: empty time window", sk.DayIndex, i)
			}
			if b.StartMinute < prevEnd {
				return fmt.Errorf("day %d block %d: overlaps previous block", sk.DayIndex, i)
			}
			if b.EndMinute > spec.Routine.SleepMinute {
				return fmt.Errorf("day %d block %d: extends past sleep time", sk.DayIndex, i)
			}
			prevEnd = b.EndMinute
		}
		for _, mw := range spec.Routine.MealWindows {
			if !hasMealInWindow(sk.Blocks, mw) {
				return fmt.Errorf("day %d: no meal block inside %s window", sk.DayIndex, mw.Name)
			}
		}
	}
	return nil
}

func hasMealInWindow(blocks []types.SkeletonBlock, mw types.MealWindow) bool {
	for _, b := range blocks {
		if b.Type == types.BlockMeal && b.StartMinute >= mw.StartMinute && b.EndMinute <= mw.EndMinute {
			return true
		}
	}
	return false
}

// activitiesPerGap is the number of activity blocks the template squeezes
// between consecutive meals, keyed by pace.
func activitiesPerGap(pace types.Pace) int {
	if pace == types.PaceFast {
		return 2
	}
	return 1
}

// TemplateSkeleton is the deterministic fallback: meal blocks at the start
// of each declared window, activity blocks filling the gaps, and a
// nightlife block after the last meal for non-relaxed paces.
func TemplateSkeleton(spec types.TripSpec, dayIndex int) types.DaySkeleton {
	routine := spec.Routine
	perGap := activitiesPerGap(spec.Pace)

	var blocks []types.SkeletonBlock
	cursor := routine.WakeMinute
	interestIdx := 0

	nextCategory := func() string {
		if len(spec.Interests) == 0 {
			return "attraction"
		}
		c := spec.Interests[interestIdx%len(spec.Interests)]
		interestIdx++
		return c
	}

	addActivities := func(from, to int, count int) {
		if count <= 0 || to-from < 45 {
			return
		}
		slot := (to - from) / count
		for i := 0; i < count; i++ {
			start := from + i*slot
			end := start + slot
			if i == count-1 {
				end = to
			}
			blocks = append(blocks, types.SkeletonBlock{
				Type:        types.BlockActivity,
				StartMinute: start,
				EndMinute:   end,
				Category:    nextCategory(),
			})
		}
	}

	for gi, mw := range routine.MealWindows {
		mealStart := mw.StartMinute
		mealEnd := mealStart + mealDurationMin
		if mealEnd > mw.EndMinute {
			mealEnd = mw.EndMinute
		}
		// Activities only between meals, not before breakfast.
		if gi > 0 {
			addActivities(cursor, mealStart, perGap)
		}
		blocks = append(blocks, types.SkeletonBlock{
			Type:        types.BlockMeal,
			StartMinute: mealStart,
			EndMinute:   mealEnd,
			Theme:       mw.Name,
			Category:    "restaurant",
		})
		cursor = mealEnd
	}

	// Evening slot after the last meal.
	if spec.Pace != types.PaceRelaxed && routine.SleepMinute-cursor >= 90 {
		blocks = append(blocks, types.SkeletonBlock{
			Type:        types.BlockNightlife,
			StartMinute: cursor + 15,
			EndMinute:   routine.SleepMinute - 15,
			Category:    "nightlife",
		})
	}

	return types.DaySkeleton{DayIndex: dayIndex, Blocks: blocks}
}
