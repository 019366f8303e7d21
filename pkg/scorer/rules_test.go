package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razornet-sec/smartlist/pkg/types"
)

func TestMatchExactTechDualEmission(t *testing.T) {
	kb := testKB(t)

	matches := Match(types.ScoringContext{Technology: "WordPress", Port: 443}, kb)
	require.GreaterOrEqual(t, len(matches), 3)

	exact := matches[0]
	assert.Equal(t, types.RuleSourceTechExact, exact.Rule.Source)
	assert.Equal(t, "tech-exact:wordpress", exact.Rule.Name)
	assert.Equal(t, 0.8, exact.Confidence)
	assert.Equal(t, "cms", exact.Context["category"])

	category := matches[1]
	assert.Equal(t, types.RuleSourceTechCategory, category.Rule.Source)
	assert.Equal(t, 0.6, category.Confidence)

	port := matches[2]
	assert.Equal(t, types.RuleSourcePort, port.Rule.Source)
}

func TestMatchResponsePatternBoost(t *testing.T) {
	kb := testKB(t)

	matches := Match(types.ScoringContext{
		Technology: "wordpress",
		Headers:    map[string]string{"Link": "<https://example.com/wp-content/...>"},
	}, kb)
	require.NotEmpty(t, matches)

	assert.Equal(t, 1.0, matches[0].Confidence)
	assert.Contains(t, matches[0].Matched, "wp-content")
}

func TestMatchPortRiskConfidence(t *testing.T) {
	kb := testKB(t)

	tests := []struct {
		port int
		want float64
	}{
		{3306, 0.8}, // high risk
		{80, 0.6},   // medium
		{21, 0.5},   // low
	}
	for _, tt := range tests {
		matches := Match(types.ScoringContext{Port: tt.port}, kb)
		require.Len(t, matches, 1, "port %d", tt.port)
		assert.Equal(t, types.RuleSourcePort, matches[0].Rule.Source)
		assert.Equal(t, tt.want, matches[0].Confidence, "port %d", tt.port)
	}
}

func TestMatchServiceKeywords(t *testing.T) {
	kb := testKB(t)

	matches := Match(types.ScoringContext{Service: "Apache httpd (mod_ssl) https"}, kb)

	var keywords []string
	for _, match := range matches {
		require.Equal(t, types.RuleSourceServiceKeyword, match.Rule.Source)
		assert.Equal(t, 0.5, match.Confidence)
		keywords = append(keywords, match.Context["keyword"])
	}
	assert.Contains(t, keywords, "http")
	assert.Contains(t, keywords, "https")
}

func TestMatchNothing(t *testing.T) {
	kb := testKB(t)

	matches := Match(types.ScoringContext{Technology: "no-such-tech", Port: 54321}, kb)
	assert.Empty(t, matches)
}

func TestMatchUnknownTechIgnored(t *testing.T) {
	kb := testKB(t)

	// Unknown tech contributes nothing, but the known port still matches.
	matches := Match(types.ScoringContext{Technology: "no-such-tech", Port: 443}, kb)
	require.Len(t, matches, 1)
	assert.Equal(t, types.RuleSourcePort, matches[0].Rule.Source)
}
