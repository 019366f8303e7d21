// Package history persists anonymized recommendation events and serves them
// back to the frequency adjuster and the entropy analyzer. Two backends
// implement core.SelectionStore: a date-partitioned file store (default) and
// an optional Postgres store for shared deployments.
package history

import (
	"fmt"
	"strings"

	"github.com/twmb/murmur3"

	"github.com/razornet-sec/smartlist/pkg/types"
)

// Fingerprint derives the stable context identity used for record naming,
// deterministic seeding, and cross-record correlation. It hashes only the
// service signature, never the target, so records cannot be joined back to
// a host.
func Fingerprint(sc types.ScoringContext) string {
	key := strings.ToLower(fmt.Sprintf("%s|%s|%s", sc.Service, sc.Technology, sc.Version))
	return fmt.Sprintf("%016x", murmur3.SeedSum64(0, []byte(key)))
}

// Anonymize projects a ScoringContext onto its privacy-safe form. The raw
// target never survives the projection.
func Anonymize(sc types.ScoringContext) types.AnonymizedContext {
	return types.AnonymizedContext{
		PortCategory:  CategorizePort(sc.Port),
		Port:          sc.Port,
		Fingerprint:   Fingerprint(sc),
		ServiceLength: len(sc.Service),
		TechFamily:    TechnologyFamily(sc.Technology),
		Technology:    strings.ToLower(sc.Technology),
		OSFamily:      osFamily(sc.OS),
		Version:       sc.Version,
		HasHeaders:    len(sc.Headers) > 0,
	}
}

// CategorizePort buckets a port number into its coarse category.
func CategorizePort(port int) types.PortCategory {
	switch port {
	case 80, 8080, 8000, 8008:
		return types.PortCategoryWeb
	case 443, 8443:
		return types.PortCategoryWebSecure
	case 3306, 5432, 1433, 1521, 27017, 6379, 5984, 9200:
		return types.PortCategoryDatabase
	case 3000, 5000, 8081, 8888, 9090, 9000, 10000:
		return types.PortCategoryAdmin
	}
	switch {
	case port >= 1 && port < 1024:
		return types.PortCategorySystem
	case port >= 1024 && port < 49152:
		return types.PortCategoryUser
	default:
		return types.PortCategoryOther
	}
}

var familyByTech = map[string]types.TechFamily{
	"wordpress":  types.TechFamilyCMS,
	"drupal":     types.TechFamilyCMS,
	"joomla":     types.TechFamilyCMS,
	"magento":    types.TechFamilyCMS,
	"typo3":      types.TechFamilyCMS,
	"sharepoint": types.TechFamilyCMS,

	"nginx":     types.TechFamilyWebServer,
	"apache":    types.TechFamilyWebServer,
	"httpd":     types.TechFamilyWebServer,
	"iis":       types.TechFamilyWebServer,
	"tomcat":    types.TechFamilyWebServer,
	"lighttpd":  types.TechFamilyWebServer,
	"caddy":     types.TechFamilyWebServer,
	"litespeed": types.TechFamilyWebServer,

	"mysql":      types.TechFamilyDatabase,
	"mariadb":    types.TechFamilyDatabase,
	"postgresql": types.TechFamilyDatabase,
	"postgres":   types.TechFamilyDatabase,
	"mssql":      types.TechFamilyDatabase,
	"oracle":     types.TechFamilyDatabase,
	"mongodb":    types.TechFamilyDatabase,
	"redis":      types.TechFamilyDatabase,
	"couchdb":    types.TechFamilyDatabase,
	"phpmyadmin": types.TechFamilyDatabase,
	"adminer":    types.TechFamilyDatabase,

	"grafana":    types.TechFamilyMonitoring,
	"prometheus": types.TechFamilyMonitoring,
	"kibana":     types.TechFamilyMonitoring,
	"zabbix":     types.TechFamilyMonitoring,
	"nagios":     types.TechFamilyMonitoring,
}

// TechnologyFamily maps a detected technology to its coarse family. Unknown
// but non-empty names fall into "other"; an empty name is "unknown".
func TechnologyFamily(tech string) types.TechFamily {
	if tech == "" {
		return types.TechFamilyUnknown
	}
	if family, ok := familyByTech[strings.ToLower(tech)]; ok {
		return family
	}
	return types.TechFamilyOther
}

func osFamily(os string) string {
	lower := strings.ToLower(os)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "linux") || strings.Contains(lower, "ubuntu") ||
		strings.Contains(lower, "debian") || strings.Contains(lower, "centos") ||
		strings.Contains(lower, "rhel") || strings.Contains(lower, "fedora"):
		return "linux"
	case strings.Contains(lower, "windows"):
		return "windows"
	case strings.Contains(lower, "bsd"):
		return "bsd"
	case strings.Contains(lower, "mac") || strings.Contains(lower, "darwin"):
		return "macos"
	default:
		return "other"
	}
}
