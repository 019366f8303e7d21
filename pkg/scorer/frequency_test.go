package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razornet-sec/smartlist/pkg/types"
)

func webContext(port int) types.AnonymizedContext {
	return types.AnonymizedContext{
		PortCategory: types.PortCategoryWeb,
		Port:         port,
		TechFamily:   types.TechFamilyWebServer,
		Technology:   "nginx",
	}
}

func seedRecords(store *memStore, n int, wordlist string, anon types.AnonymizedContext) {
	for i := 0; i < n; i++ {
		store.records = append(store.records, types.SelectionRecord{
			Context: anon,
			Result:  types.RecordedResult{Wordlists: []string{wordlist}},
		})
	}
}

func TestAdjustNoOpOnEmptyHistory(t *testing.T) {
	adjuster := NewFrequencyAdjuster(&memStore{}, 7, 100, testLogger(t))
	candidates := []Candidate{
		candidate("common.txt", "discovery", 4700, types.QualityExcellent, 1.5),
	}

	adjusted, applied := adjuster.Adjust(context.Background(), candidates, webContext(80))
	assert.False(t, applied)
	assert.Equal(t, candidates, adjusted)
}

func TestAdjustNoOpOnStoreFailure(t *testing.T) {
	store := &memStore{queryErr: errors.New("disk gone")}
	adjuster := NewFrequencyAdjuster(store, 7, 100, testLogger(t))
	candidates := []Candidate{
		candidate("common.txt", "discovery", 4700, types.QualityExcellent, 1.5),
	}

	adjusted, applied := adjuster.Adjust(context.Background(), candidates, webContext(80))
	assert.False(t, applied)
	assert.Equal(t, candidates, adjusted)
}

func TestAdjustPenalizesOverusedWordlist(t *testing.T) {
	store := &memStore{}
	seedRecords(store, 50, "common.txt", webContext(80))

	adjuster := NewFrequencyAdjuster(store, 7, 100, testLogger(t))
	candidates := []Candidate{
		candidate("common.txt", "discovery", 4700, types.QualityExcellent, 1.5),
		candidate("fresh.txt", "discovery", 4700, types.QualityExcellent, 1.5),
	}

	adjusted, applied := adjuster.Adjust(context.Background(), candidates, webContext(80))
	require.True(t, applied)

	byName := map[string]float64{}
	for _, c := range adjusted {
		byName[c.Name] = c.Score
	}

	// 100% usage overall and in similar contexts: -0.4 and -0.3.
	assert.InDelta(t, 1.5-0.4-0.3, byName["common.txt"], 1e-9)
	// Never used anywhere: +0.2 and +0.3.
	assert.InDelta(t, 1.5+0.2+0.3, byName["fresh.txt"], 1e-9)
	assert.Greater(t, byName["fresh.txt"], byName["common.txt"])
}

func TestAdjustUsageTiers(t *testing.T) {
	tests := []struct {
		count int
		total int
		want  float64
	}{
		{40, 100, -0.4},
		{25, 100, -0.2},
		{15, 100, -0.1},
		{0, 100, 0.2},
		{5, 100, 0.1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, usageDelta(tt.count, tt.total), 1e-9,
			"count=%d total=%d", tt.count, tt.total)
	}
}

func TestAdjustScoreFloorsAtZero(t *testing.T) {
	store := &memStore{}
	seedRecords(store, 10, "common.txt", webContext(80))

	adjuster := NewFrequencyAdjuster(store, 7, 100, testLogger(t))
	candidates := []Candidate{
		candidate("common.txt", "discovery", 4700, types.QualityExcellent, 0.1),
	}

	adjusted, _ := adjuster.Adjust(context.Background(), candidates, webContext(80))
	assert.GreaterOrEqual(t, adjusted[0].Score, 0.0)
}
