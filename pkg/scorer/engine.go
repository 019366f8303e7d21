package scorer

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/internal/history"
	"github.com/razornet-sec/smartlist/internal/knowledge"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// ErrEmptyCatalog means no recommendation is possible at all. It is the
// only condition that fails a scoring call; everything else degrades.
var ErrEmptyCatalog = errors.New("scorer: wordlist catalog has no usable entries")

// Engine runs the full recommendation pipeline: match, score, frequency
// adjust, sort, diversify, then record the event. It reads the knowledge
// base through a Provider so an in-flight call keeps one snapshot across a
// concurrent reload.
type Engine struct {
	provider  *knowledge.Provider
	store     core.SelectionStore
	telemetry core.Telemetry
	frequency *FrequencyAdjuster
	cfg       config.ScoringConfig
	logger    *logger.Logger
	epochFn   func() int64
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithEpochFunc overrides the rotation epoch source. The default buckets
// wall-clock time by hour; tests pin it.
func WithEpochFunc(fn func() int64) Option {
	return func(e *Engine) { e.epochFn = fn }
}

func NewEngine(provider *knowledge.Provider, store core.SelectionStore, tel core.Telemetry, scoring config.ScoringConfig, hist config.HistoryConfig, log *logger.Logger, opts ...Option) *Engine {
	if tel == nil {
		tel = core.NoopTelemetry{}
	}
	e := &Engine{
		provider:  provider,
		store:     store,
		telemetry: tel,
		frequency: NewFrequencyAdjuster(store, hist.WindowDays, hist.MaxRecords, log),
		cfg:       scoring,
		logger:    log.WithComponent("scorer"),
		epochFn: func() int64 {
			return time.Now().Unix() / 3600
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ core.Recommender = (*Engine)(nil)

// Recommend produces the ranked wordlist selection for one context. The
// result is always best-effort: history and telemetry failures never
// surface to the caller.
func (e *Engine) Recommend(ctx context.Context, sc types.ScoringContext) (*types.ScoringResult, error) {
	start := time.Now()
	ctx, span := e.logger.StartSpan(ctx, "scorer.recommend")
	defer span.End()

	kb := e.provider.Current()
	if len(kb.Catalog()) == 0 {
		return nil, ErrEmptyCatalog
	}

	anon := history.Anonymize(sc)
	matches := Match(sc, kb)

	var (
		candidates  []Candidate
		freqApplied bool
	)
	fallback := len(matches) == 0
	if fallback {
		candidates = fallbackCandidates(kb, e.cfg)
	} else {
		candidates = ScoreCandidates(matches, sc, kb, e.cfg, anon.Fingerprint)
		candidates, freqApplied = e.frequency.Adjust(ctx, candidates, anon)
	}

	SortCandidates(candidates)

	seed, _ := strconv.ParseUint(anon.Fingerprint, 16, 64)
	picked, divInfo := Diversify(candidates, sc, e.epochFn(), seed, e.cfg)
	divInfo.FrequencyApplied = freqApplied

	if fallback && len(picked) > 3 {
		picked = picked[:3]
	}

	breakdown := buildBreakdown(matches, fallback)
	score := roundTo3(combineScore(breakdown))

	names := make([]string, 0, len(picked))
	for _, candidate := range picked {
		names = append(names, candidate.Name)
	}
	ruleNames := make([]string, 0, len(matches))
	for _, match := range matches {
		ruleNames = append(ruleNames, match.Rule.Name)
	}

	result := &types.ScoringResult{
		Score:           score,
		Breakdown:       breakdown,
		Wordlists:       names,
		MatchedRules:    ruleNames,
		FallbackUsed:    fallback,
		Confidence:      confidenceTier(score),
		Diversification: &divInfo,
	}

	e.appendHistory(ctx, anon, result)
	e.telemetry.RecordRecommendation(result.Confidence, time.Since(start).Seconds(), fallback)

	e.logger.WithContext(ctx).Debugw("Recommendation produced",
		"wordlists", len(result.Wordlists),
		"score", result.Score,
		"confidence", string(result.Confidence),
		"fallback", fallback,
	)
	return result, nil
}

// appendHistory records the event, swallowing failures per the store's
// non-blocking contract.
func (e *Engine) appendHistory(ctx context.Context, anon types.AnonymizedContext, result *types.ScoringResult) {
	if e.store == nil {
		return
	}
	reduced := types.RecordedResult{
		Wordlists:    result.Wordlists,
		Score:        result.Score,
		FallbackUsed: result.FallbackUsed,
		Confidence:   result.Confidence,
	}
	if _, err := e.store.Append(ctx, anon, reduced); err != nil {
		e.logger.WithContext(ctx).Warnw("History append failed, result unaffected",
			"error", err.Error())
		e.telemetry.RecordAppendError()
	}
}

// fallbackCandidates assembles the generic last-resort pool: small,
// high-quality, general-purpose lists.
func fallbackCandidates(kb *knowledge.KnowledgeBase, cfg config.ScoringConfig) []Candidate {
	var pool []Candidate
	for _, entry := range kb.Catalog() {
		if isCredentialCategory(entry.Category) || isSubdomainCategory(entry.Category) {
			continue
		}
		if entry.Lines >= cfg.SmallLines {
			continue
		}
		if entry.Quality != types.QualityExcellent && entry.Quality != types.QualityGood {
			continue
		}
		pool = append(pool, Candidate{
			Name:  entry.Name,
			Score: entry.DeclaredWeight() + qualityRank(entry.Quality),
			Entry: entry,
		})
	}

	if len(pool) == 0 {
		// Nothing satisfies the preferred filter; recommend something
		// rather than nothing.
		entries := kb.Catalog()
		for _, entry := range entries {
			pool = append(pool, Candidate{
				Name:  entry.Name,
				Score: entry.DeclaredWeight() + qualityRank(entry.Quality),
				Entry: entry,
			})
		}
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
		if len(pool) > 3 {
			pool = pool[:3]
		}
	}
	return pool
}

func qualityRank(q types.QualityTier) float64 {
	switch q {
	case types.QualityExcellent:
		return 0.2
	case types.QualityGood:
		return 0.1
	default:
		return 0
	}
}

// buildBreakdown attributes confidence to each rule tier, every component
// clamped to [0,1]. Keyword contributions accumulate; the others take the
// strongest match of their tier.
func buildBreakdown(matches []types.RuleMatch, fallback bool) types.ScoreBreakdown {
	var breakdown types.ScoreBreakdown
	if fallback {
		breakdown.GenericFallback = 0.5
		return breakdown
	}

	keywordSum := 0.0
	for _, match := range matches {
		switch match.Rule.Source {
		case types.RuleSourceTechExact:
			if match.Confidence > breakdown.ExactMatch {
				breakdown.ExactMatch = match.Confidence
			}
		case types.RuleSourceTechCategory:
			if match.Confidence > breakdown.TechCategory {
				breakdown.TechCategory = match.Confidence
			}
		case types.RuleSourcePort:
			if match.Confidence > breakdown.PortContext {
				breakdown.PortContext = match.Confidence
			}
		case types.RuleSourceServiceKeyword:
			keywordSum += match.Confidence
		}
	}
	breakdown.ServiceKeywords = clamp01(keywordSum)
	return breakdown
}

// combineScore folds the breakdown into the final 0-1 score. The exact
// tier dominates; the fallback path lands squarely in LOW territory.
func combineScore(b types.ScoreBreakdown) float64 {
	return clamp01(
		0.5*b.ExactMatch +
			0.15*b.TechCategory +
			0.2*b.PortContext +
			0.15*b.ServiceKeywords +
			0.6*b.GenericFallback,
	)
}

func confidenceTier(score float64) types.ConfidenceTier {
	switch {
	case score >= 0.8:
		return types.ConfidenceHigh
	case score >= 0.6:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// Fingerprint exposes the context fingerprint for callers that need the
// deterministic seed outside a full scoring pass.
func Fingerprint(sc types.ScoringContext) string {
	return history.Fingerprint(sc)
}
