package scorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razornet-sec/smartlist/pkg/types"
)

func recordFor(tech string, portCategory types.PortCategory, wordlists ...string) types.SelectionRecord {
	return types.SelectionRecord{
		Context: types.AnonymizedContext{
			Technology:   tech,
			PortCategory: portCategory,
		},
		Result: types.RecordedResult{Wordlists: wordlists},
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	store := &memStore{records: []types.SelectionRecord{
		recordFor("nginx", types.PortCategoryWeb, "common.txt"),
		recordFor("nginx", types.PortCategoryWeb, "common.txt"),
	}}

	metrics, err := NewAnalyzer(store, testLogger(t)).Analyze(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, types.EntropyQualityInsufficient, metrics.Quality)
	assert.Equal(t, 1.0, metrics.EntropyScore)
	assert.Equal(t, 2, metrics.Records)
}

func TestAnalyzeUniformDistribution(t *testing.T) {
	store := &memStore{records: []types.SelectionRecord{
		recordFor("nginx", types.PortCategoryWeb, "a.txt"),
		recordFor("wordpress", types.PortCategoryWebSecure, "b.txt"),
		recordFor("mysql", types.PortCategoryDatabase, "c.txt"),
		recordFor("drupal", types.PortCategoryWeb, "d.txt"),
	}}

	metrics, err := NewAnalyzer(store, testLogger(t)).Analyze(context.Background(), 7)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, metrics.EntropyScore, 1e-9)
	assert.Equal(t, 4, metrics.DistinctWordlists)
	assert.Equal(t, 1.0, metrics.ContextDiversity)
}

func TestAnalyzeDegenerateDistribution(t *testing.T) {
	var records []types.SelectionRecord
	for i := 0; i < 20; i++ {
		records = append(records, recordFor("nginx", types.PortCategoryWeb, "common.txt"))
	}
	store := &memStore{records: records}

	metrics, err := NewAnalyzer(store, testLogger(t)).Analyze(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 0.0, metrics.EntropyScore)
	assert.InDelta(t, 100.0, metrics.ClusteringPct, 1e-9)
	assert.Equal(t, types.EntropyQualityPoor, metrics.Quality)
	require.NotEmpty(t, metrics.TopWordlists)
	assert.Equal(t, "common.txt", metrics.TopWordlists[0].Name)
	assert.Equal(t, 20, metrics.TopWordlists[0].Count)
}

func TestGradeEntropy(t *testing.T) {
	assert.Equal(t, types.EntropyQualityExcellent, gradeEntropy(0.95, 15))
	assert.Equal(t, types.EntropyQualityGood, gradeEntropy(0.85, 25))
	assert.Equal(t, types.EntropyQualityAcceptable, gradeEntropy(0.65, 45))
	assert.Equal(t, types.EntropyQualityPoor, gradeEntropy(0.5, 60))
	assert.Equal(t, types.EntropyQualityPoor, gradeEntropy(0.95, 60))
}

func TestDetectClusters(t *testing.T) {
	store := &memStore{records: []types.SelectionRecord{
		recordFor("nginx", types.PortCategoryWeb, "common.txt", "raft-medium.txt"),
		recordFor("nginx", types.PortCategoryWeb, "common.txt"),
		recordFor("nginx", types.PortCategoryWeb, "common.txt"),
		recordFor("", types.PortCategoryWeb, "quickhits.txt"),
		recordFor("", types.PortCategoryWeb, "quickhits.txt"),
		recordFor("mysql", types.PortCategoryDatabase, "mysql-paths.txt"),
	}}

	clusters, err := NewAnalyzer(store, testLogger(t)).DetectClusters(context.Background(), 7)
	require.NoError(t, err)

	// The single-member mysql group is excluded.
	require.Len(t, clusters, 2)

	assert.Equal(t, "nginx:web", clusters[0].Key)
	assert.Equal(t, 3, clusters[0].Members)
	assert.Equal(t, "common.txt", clusters[0].CommonWordlists[0].Name)
	assert.Equal(t, 3, clusters[0].CommonWordlists[0].Count)

	assert.Equal(t, "unknown:web", clusters[1].Key)
	assert.Equal(t, 2, clusters[1].Members)
}
