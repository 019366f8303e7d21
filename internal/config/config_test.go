package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Contains(t, cfg.Logger.OutputPaths, "stdout")

	assert.Equal(t, 5, cfg.Scoring.MaxResults)
	assert.Equal(t, int64(5_000_000), cfg.Scoring.HugeLines)
	assert.Equal(t, int64(1_000_000), cfg.Scoring.LargeLines)
	assert.Equal(t, int64(100_000), cfg.Scoring.SmallLines)

	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, 7, cfg.History.WindowDays)
	assert.Equal(t, 100, cfg.History.MaxRecords)
}

func TestScoringConfigRatios(t *testing.T) {
	// The contract is the ordering of the adjustments, not their absolute
	// values: huge lists must be penalized harder than large ones, and the
	// subdomain penalty must exceed the credential penalty.
	cfg := DefaultConfig().Scoring

	assert.Greater(t, cfg.HugePenalty, cfg.LargePenalty)
	assert.Greater(t, cfg.SubdomainPenalty, cfg.CredentialPenalty)
	assert.Greater(t, cfg.SmallBonus, 0.0)
	assert.Less(t, cfg.CredentialCap, cfg.CategoryCap+1)
}

func TestHistoryConfig(t *testing.T) {
	cfg := HistoryConfig{
		Backend:    "postgres",
		WindowDays: 14,
		MaxRecords: 200,
	}

	assert.Equal(t, "postgres", cfg.Backend)
	assert.Equal(t, 14, cfg.WindowDays)
	assert.Equal(t, 200, cfg.MaxRecords)
}
