package scorer

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// Rotation strategies cycle hourly so no single selection pattern
// fossilizes. The epoch is injected by the caller, keeping this component
// pure and clock-free.
const (
	strategyExactTechFirst = "exact-tech-first"
	strategyMixed          = "mixed"
	strategySmallFirst     = "small-first"
)

func rotationStrategy(epoch int64) string {
	switch epoch % 3 {
	case 0:
		return strategyExactTechFirst
	case 1:
		return strategyMixed
	default:
		return strategySmallFirst
	}
}

// SortCandidates orders by score descending, name ascending on ties. This
// is the single sort of the pipeline, run right before diversification.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Name < candidates[j].Name
	})
}

// Diversify walks the sorted candidates and assembles the final selection
// under the anti-clustering rules: per-category caps, no two consecutive
// very large lists, excellent-tier floor for the first picks, hourly
// strategy rotation, and a seeded reshuffle for low-confidence contexts.
func Diversify(sorted []Candidate, sc types.ScoringContext, epoch int64, seed uint64, cfg config.ScoringConfig) ([]Candidate, types.DiversificationInfo) {
	info := types.DiversificationInfo{
		RotationEpoch: epoch,
		Strategy:      rotationStrategy(epoch),
	}

	ordered := applyStrategy(sorted, info.Strategy, sc, cfg)

	// High-certainty contexts stick to candidates whose declared use-cases
	// fit; entries declaring only unrelated use-cases are dropped. Entries
	// declaring none stay eligible, and an over-aggressive filter falls back
	// to the unrestricted pool.
	if sc.ConfidenceValue() >= 0.8 {
		ordered = restrictToRelevantUseCases(ordered, sc)
	}

	picker := &picker{cfg: cfg, taken: map[string]bool{}, catCounts: map[string]int{}}

	// Excellent-tier pass first, so the quality floor holds whenever enough
	// excellent candidates exist.
	for _, candidate := range ordered {
		if len(picker.picked) >= 3 {
			break
		}
		if candidate.Entry.Quality != types.QualityExcellent {
			continue
		}
		picker.take(candidate, &info)
	}
	for _, candidate := range ordered {
		if len(picker.picked) >= cfg.MaxResults {
			break
		}
		picker.take(candidate, &info)
	}

	picked := picker.picked
	if sc.ConfidenceValue() < 0.3 && len(picked) > 3 {
		rng := rand.New(rand.NewSource(int64(seed)))
		tail := picked[2:]
		floorHeld := picked[2].Entry.Quality == types.QualityExcellent
		rng.Shuffle(len(tail), func(i, j int) {
			tail[i], tail[j] = tail[j], tail[i]
		})
		// The shuffle must not undo the quality floor on position 3.
		if floorHeld && picked[2].Entry.Quality != types.QualityExcellent {
			for i := 3; i < len(picked); i++ {
				if picked[i].Entry.Quality == types.QualityExcellent {
					picked[2], picked[i] = picked[i], picked[2]
					break
				}
			}
		}
		info.Reshuffled = true
	}

	return picked, info
}

// restrictToRelevantUseCases removes candidates whose declared use-cases are
// all unrelated to the context. Candidates declaring no use-cases are kept.
// When nothing survives, the original pool is returned so the engine still
// recommends something.
func restrictToRelevantUseCases(candidates []Candidate, sc types.ScoringContext) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Entry.UseCases) == 0 || hasRelevantUseCase(c.Entry, sc) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

// applyStrategy stably reorders candidates per the rotation strategy,
// keeping score order within each partition.
func applyStrategy(sorted []Candidate, strategy string, sc types.ScoringContext, cfg config.ScoringConfig) []Candidate {
	if strategy == strategyMixed {
		return sorted
	}

	preferred := func(c Candidate) bool {
		if strategy == strategyExactTechFirst {
			return c.Entry.HasTechnology(strings.ToLower(sc.Technology))
		}
		return c.Entry.Lines > 0 && c.Entry.Lines < cfg.SmallLines
	}

	ordered := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		if preferred(c) {
			ordered = append(ordered, c)
		}
	}
	for _, c := range sorted {
		if !preferred(c) {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

type picker struct {
	cfg       config.ScoringConfig
	picked    []Candidate
	taken     map[string]bool
	catCounts map[string]int
	credCount int
	lastLarge bool
}

func (p *picker) take(candidate Candidate, info *types.DiversificationInfo) {
	key := strings.ToLower(candidate.Name)
	if p.taken[key] {
		return
	}

	category := strings.ToLower(candidate.Entry.Category)
	if isCredentialCategory(category) {
		if p.credCount >= p.cfg.CredentialCap {
			info.CategoryCapHits++
			return
		}
	} else if p.catCounts[category] >= p.cfg.CategoryCap {
		info.CategoryCapHits++
		return
	}

	large := candidate.Entry.Lines > p.cfg.LargeLines
	if large && p.lastLarge {
		return
	}

	p.taken[key] = true
	if isCredentialCategory(category) {
		p.credCount++
	} else {
		p.catCounts[category]++
	}
	p.lastLarge = large
	p.picked = append(p.picked, candidate)
}
