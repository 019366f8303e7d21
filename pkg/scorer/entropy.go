package scorer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// Analyzer is the offline diagnostic over the selection history: it
// measures whether recommendations are degenerating toward the same few
// wordlists regardless of context.
type Analyzer struct {
	store  core.SelectionStore
	logger *logger.Logger
}

func NewAnalyzer(store core.SelectionStore, log *logger.Logger) *Analyzer {
	return &Analyzer{
		store:  store,
		logger: log.WithComponent("entropy"),
	}
}

// Analyze computes diversity metrics over the window. Fewer than 3 records
// is insufficient data and yields the sentinel result instead of a number
// that could mislead an audit.
func (a *Analyzer) Analyze(ctx context.Context, windowDays int) (*types.EntropyMetrics, error) {
	records, err := a.store.Query(ctx, windowDays, 0, types.QueryFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	metrics := &types.EntropyMetrics{
		WindowDays: windowDays,
		Records:    len(records),
	}

	if len(records) < 3 {
		metrics.EntropyScore = 1.0
		metrics.Quality = types.EntropyQualityInsufficient
		return metrics, nil
	}

	counts := map[string]int{}
	contexts := map[string]bool{}
	total := 0
	for _, record := range records {
		contexts[clusterKey(record.Context)] = true
		for _, name := range record.Result.Wordlists {
			counts[strings.ToLower(name)]++
			total++
		}
	}

	metrics.DistinctWordlists = len(counts)
	metrics.EntropyScore = normalizedEntropy(counts, total)
	metrics.TopWordlists = topFrequencies(counts, 3)
	metrics.ClusteringPct = clusteringShare(metrics.TopWordlists, total)
	metrics.ContextDiversity = float64(len(contexts)) / float64(len(records))
	metrics.Quality = gradeEntropy(metrics.EntropyScore, metrics.ClusteringPct)
	return metrics, nil
}

// normalizedEntropy is Shannon entropy over the recommendation frequency
// distribution, divided by log2 of the distinct count so 1.0 means
// maximally diverse.
func normalizedEntropy(counts map[string]int, total int) float64 {
	if len(counts) <= 1 || total == 0 {
		return 0
	}

	entropy := 0.0
	for _, count := range counts {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(float64(len(counts)))
}

func topFrequencies(counts map[string]int, n int) []types.WordlistFreq {
	freqs := make([]types.WordlistFreq, 0, len(counts))
	for name, count := range counts {
		freqs = append(freqs, types.WordlistFreq{Name: name, Count: count})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Name < freqs[j].Name
	})
	if len(freqs) > n {
		freqs = freqs[:n]
	}
	return freqs
}

func clusteringShare(top []types.WordlistFreq, total int) float64 {
	if total == 0 {
		return 0
	}
	clustered := 0
	for _, freq := range top {
		clustered += freq.Count
	}
	return float64(clustered) / float64(total) * 100
}

func gradeEntropy(entropy, clusteringPct float64) types.EntropyQuality {
	switch {
	case entropy >= 0.9 && clusteringPct <= 20:
		return types.EntropyQualityExcellent
	case entropy >= 0.8 && clusteringPct <= 30:
		return types.EntropyQualityGood
	case entropy >= 0.6 && clusteringPct <= 50:
		return types.EntropyQualityAcceptable
	default:
		return types.EntropyQualityPoor
	}
}

// DetectClusters groups records by technology and port category and
// reports, for groups of at least 2, which wordlists dominate them. A big
// cluster always receiving the same lists is the concrete failure mode the
// audit exists to catch.
func (a *Analyzer) DetectClusters(ctx context.Context, windowDays int) ([]types.ContextCluster, error) {
	records, err := a.store.Query(ctx, windowDays, 0, types.QueryFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	groups := map[string][]types.SelectionRecord{}
	for _, record := range records {
		key := clusterKey(record.Context)
		groups[key] = append(groups[key], record)
	}

	var clusters []types.ContextCluster
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		counts := map[string]int{}
		for _, record := range members {
			for _, name := range record.Result.Wordlists {
				counts[strings.ToLower(name)]++
			}
		}
		clusters = append(clusters, types.ContextCluster{
			Key:             key,
			Members:         len(members),
			CommonWordlists: topFrequencies(counts, 3),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Members != clusters[j].Members {
			return clusters[i].Members > clusters[j].Members
		}
		return clusters[i].Key < clusters[j].Key
	})
	return clusters, nil
}

func clusterKey(anon types.AnonymizedContext) string {
	tech := anon.Technology
	if tech == "" {
		tech = "unknown"
	}
	return fmt.Sprintf("%s:%s", tech, anon.PortCategory)
}
