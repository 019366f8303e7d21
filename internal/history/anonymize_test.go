package history

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razornet-sec/smartlist/pkg/types"
)

func TestFingerprintDeterministic(t *testing.T) {
	sc := types.ScoringContext{
		Target:     "10.0.0.5",
		Port:       443,
		Service:    "https",
		Technology: "WordPress",
		Version:    "6.4",
	}

	fp1 := Fingerprint(sc)
	fp2 := Fingerprint(sc)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 16)

	// Target plays no part in the fingerprint.
	sc.Target = "another-host.example.com"
	assert.Equal(t, fp1, Fingerprint(sc))

	// Case differences in the signature do not.
	sc.Technology = "wordpress"
	assert.Equal(t, fp1, Fingerprint(sc))

	sc.Version = "6.5"
	assert.NotEqual(t, fp1, Fingerprint(sc))
}

func TestAnonymizeNeverLeaksTarget(t *testing.T) {
	sc := types.ScoringContext{
		Target:     "internal-db-01.corp.example.com",
		Port:       3306,
		Service:    "mysql",
		Technology: "MySQL",
		OS:         "Ubuntu 22.04",
		Version:    "8.0.36",
		Headers:    map[string]string{"Server": "mysql"},
	}

	anon := Anonymize(sc)
	data, err := json.Marshal(anon)
	require.NoError(t, err)
	assert.NotContains(t, string(data), sc.Target)
	assert.NotContains(t, strings.ToLower(string(data)), "corp.example.com")

	assert.Equal(t, types.PortCategoryDatabase, anon.PortCategory)
	assert.Equal(t, 3306, anon.Port)
	assert.Equal(t, types.TechFamilyDatabase, anon.TechFamily)
	assert.Equal(t, "mysql", anon.Technology)
	assert.Equal(t, "linux", anon.OSFamily)
	assert.Equal(t, len("mysql"), anon.ServiceLength)
	assert.True(t, anon.HasHeaders)
}

func TestCategorizePort(t *testing.T) {
	tests := []struct {
		port int
		want types.PortCategory
	}{
		{80, types.PortCategoryWeb},
		{8080, types.PortCategoryWeb},
		{443, types.PortCategoryWebSecure},
		{8443, types.PortCategoryWebSecure},
		{5432, types.PortCategoryDatabase},
		{27017, types.PortCategoryDatabase},
		{3000, types.PortCategoryAdmin},
		{9090, types.PortCategoryAdmin},
		{22, types.PortCategorySystem},
		{1024, types.PortCategoryUser},
		{33060, types.PortCategoryUser},
		{60000, types.PortCategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizePort(tt.port), "port %d", tt.port)
	}
}

func TestTechnologyFamily(t *testing.T) {
	assert.Equal(t, types.TechFamilyCMS, TechnologyFamily("WordPress"))
	assert.Equal(t, types.TechFamilyWebServer, TechnologyFamily("nginx"))
	assert.Equal(t, types.TechFamilyMonitoring, TechnologyFamily("Grafana"))
	assert.Equal(t, types.TechFamilyOther, TechnologyFamily("some-custom-app"))
	assert.Equal(t, types.TechFamilyUnknown, TechnologyFamily(""))
}
