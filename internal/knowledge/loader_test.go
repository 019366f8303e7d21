package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/logger"
)

const techDBJSON = `{
  "cms": {
    "wordpress": {
      "indicators": {
        "response_patterns": ["wp-content", "wp-includes"],
        "headers": ["x-powered-by"]
      },
      "discovery_paths": ["/wp-login.php", "/wp-admin/"],
      "confidence_weights": {"response_patterns": 0.9}
    },
    "drupal": {
      "indicators": {"response_patterns": ["sites/default"]},
      "discovery_paths": ["/user/login"]
    }
  },
  "web-server": {
    "nginx": {
      "indicators": {"headers": ["server"]}
    }
  }
}`

const portDBJSON = `{
  "80": {"classification": {"category": "web", "risk_level": "medium"}},
  "443": {"classification": {"category": "web-secure", "risk_level": "medium"}},
  "3306": {"classification": {"category": "database", "risk_level": "high"}, "indicators": ["mysql"]}
}`

const catalogJSON = `[
  {"name": "wordpress-https.txt", "category": "cms", "lines": 45000, "quality": "excellent", "technologies": ["wordpress"], "ports": [443, 80]},
  {"name": "common.txt", "category": "generic", "lines": 4700, "quality": "excellent", "use_cases": ["web-discovery"]},
  {"name": "", "category": "broken", "lines": 1}
]`

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func fixtureConfig(t *testing.T) config.KnowledgeConfig {
	t.Helper()
	dir := t.TempDir()
	return config.KnowledgeConfig{
		TechDBPath:  writeFixture(t, dir, "technologies.json", techDBJSON),
		PortDBPath:  writeFixture(t, dir, "ports.json", portDBJSON),
		CatalogPath: writeFixture(t, dir, "wordlist_catalog.json", catalogJSON),
	}
}

func TestLoadAllResources(t *testing.T) {
	loader := NewLoader(fixtureConfig(t), testLogger(t))

	kb, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, kb.Availability.Technologies.Loaded)
	assert.True(t, kb.Availability.Ports.Loaded)
	assert.True(t, kb.Availability.Catalog.Loaded)

	tech, ok := kb.LookupTechnology("WordPress")
	require.True(t, ok, "lookup should be case-insensitive")
	assert.Equal(t, "cms", tech.Category)
	assert.Contains(t, tech.Indicators.ResponsePatterns, "wp-content")

	port, ok := kb.LookupPort(3306)
	require.True(t, ok)
	assert.Equal(t, "database", string(port.Classification.Category))
	assert.Equal(t, "high", string(port.Classification.RiskLevel))

	// The unnamed entry is dropped.
	assert.Len(t, kb.Catalog(), 2)
	assert.Len(t, kb.WordlistsForTech("wordpress"), 1)
	assert.Len(t, kb.WordlistsForPort(443), 1)
	assert.Len(t, kb.WordlistsInCategory("generic"), 1)
}

func TestLoadMissingResourceDegrades(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.TechDBPath = filepath.Join(filepath.Dir(cfg.PortDBPath), "nope.json")

	kb, err := NewLoader(cfg, testLogger(t)).Load(context.Background())
	require.NoError(t, err)

	assert.False(t, kb.Availability.Technologies.Loaded)
	assert.Equal(t, FailureMissing, kb.Availability.Technologies.Reason)
	assert.True(t, kb.Availability.Ports.Loaded)

	_, ok := kb.LookupTechnology("wordpress")
	assert.False(t, ok)
}

func TestLoadMalformedJSON(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.PortDBPath = writeFixture(t, filepath.Dir(cfg.PortDBPath), "bad.json", "{not json")

	kb, err := NewLoader(cfg, testLogger(t)).Load(context.Background())
	require.NoError(t, err)

	assert.False(t, kb.Availability.Ports.Loaded)
	assert.Equal(t, FailureParseError, kb.Availability.Ports.Reason)
}

func TestLoadSchemaMismatch(t *testing.T) {
	cfg := fixtureConfig(t)
	// Valid JSON, wrong shape: the catalog must be an array.
	cfg.CatalogPath = writeFixture(t, filepath.Dir(cfg.CatalogPath), "wrong.json", `{"wordlists": 1}`)

	kb, err := NewLoader(cfg, testLogger(t)).Load(context.Background())
	require.NoError(t, err)

	assert.False(t, kb.Availability.Catalog.Loaded)
	assert.Equal(t, FailureSchemaMismatch, kb.Availability.Catalog.Reason)
	assert.Empty(t, kb.Catalog())
}

func TestLoadNoDirectoryIsFatal(t *testing.T) {
	cfg := config.KnowledgeConfig{
		TechDBPath:  "/nonexistent-smartlist/technologies.json",
		PortDBPath:  "/nonexistent-smartlist/ports.json",
		CatalogPath: "/nonexistent-smartlist/wordlist_catalog.json",
	}

	_, err := NewLoader(cfg, testLogger(t)).Load(context.Background())
	assert.ErrorIs(t, err, ErrBaseDirMissing)
}

func TestProviderSwap(t *testing.T) {
	loader := NewLoader(fixtureConfig(t), testLogger(t))
	kb1, err := loader.Load(context.Background())
	require.NoError(t, err)

	provider := NewProvider(kb1)
	assert.Same(t, kb1, provider.Current())

	kb2, err := loader.Load(context.Background())
	require.NoError(t, err)
	provider.Swap(kb2)
	assert.Same(t, kb2, provider.Current())
}
