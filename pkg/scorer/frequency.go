package scorer

import (
	"context"
	"strings"

	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// FrequencyAdjuster consults the selection history and nudges candidate
// scores against recommendation clustering: over-recommended lists lose
// score, never-used lists gain some. A store failure or an empty history
// makes the whole step a no-op.
type FrequencyAdjuster struct {
	store      core.SelectionStore
	windowDays int
	maxRecords int
	logger     *logger.Logger
}

func NewFrequencyAdjuster(store core.SelectionStore, windowDays, maxRecords int, log *logger.Logger) *FrequencyAdjuster {
	return &FrequencyAdjuster{
		store:      store,
		windowDays: windowDays,
		maxRecords: maxRecords,
		logger:     log.WithComponent("frequency"),
	}
}

// Adjust returns re-scored candidates and whether any adjustment applied.
func (f *FrequencyAdjuster) Adjust(ctx context.Context, candidates []Candidate, anon types.AnonymizedContext) ([]Candidate, bool) {
	if f.store == nil {
		return candidates, false
	}

	records, err := f.store.Query(ctx, f.windowDays, f.maxRecords, types.QueryFilters{})
	if err != nil {
		f.logger.WithContext(ctx).Warnw("History unavailable, skipping frequency adjustment",
			"error", err.Error())
		return candidates, false
	}
	if len(records) == 0 {
		return candidates, false
	}

	usage := map[string]int{}
	similarUsage := map[string]int{}
	similarTotal := 0

	for _, record := range records {
		similar := isSimilarContext(record.Context, anon)
		if similar {
			similarTotal++
		}
		for _, name := range record.Result.Wordlists {
			key := strings.ToLower(name)
			usage[key]++
			if similar {
				similarUsage[key]++
			}
		}
	}

	total := len(records)
	adjusted := make([]Candidate, len(candidates))
	for i, candidate := range candidates {
		key := strings.ToLower(candidate.Name)
		score := candidate.Score + usageDelta(usage[key], total)
		if similarTotal > 0 {
			score += similarDelta(similarUsage[key], similarTotal)
		}
		if score < 0 {
			score = 0
		}
		adjusted[i] = Candidate{Name: candidate.Name, Score: score, Entry: candidate.Entry}
	}
	return adjusted, true
}

func usageDelta(count, total int) float64 {
	rate := float64(count) / float64(total)
	switch {
	case rate > 0.30:
		return -0.4
	case rate > 0.20:
		return -0.2
	case rate > 0.10:
		return -0.1
	case count == 0:
		return 0.2
	default:
		return 0.1
	}
}

func similarDelta(count, total int) float64 {
	rate := float64(count) / float64(total)
	switch {
	case rate > 0.50:
		return -0.3
	case count == 0:
		return 0.3
	default:
		return 0
	}
}

// isSimilarContext groups records by shared technology or shared port.
func isSimilarContext(recorded, current types.AnonymizedContext) bool {
	if current.Technology != "" && recorded.Technology == current.Technology {
		return true
	}
	return recorded.Port == current.Port
}
