// Package scorer implements the wordlist recommendation pipeline: rule
// matching, candidate scoring, frequency adjustment, diversification, and
// the entropy audit over past selections.
package scorer

import (
	"fmt"
	"strings"

	"github.com/razornet-sec/smartlist/internal/knowledge"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// serviceKeywords are matched as plain substrings of the service banner.
// Matching stays substring and map lookups throughout; no regex.
var serviceKeywords = []string{
	"http", "https", "mysql", "postgres", "mssql", "oracle",
	"ssh", "ftp", "smtp", "dns", "ldap", "smb", "rdp", "vnc", "telnet",
}

var riskConfidence = map[types.RiskLevel]float64{
	types.RiskHigh:    0.8,
	types.RiskMedium:  0.6,
	types.RiskLow:     0.5,
	types.RiskUnknown: 0.7,
}

// Match evaluates the rule hierarchy against one context. Matches come back
// in hierarchy order: exact technology, technology category, port
// classification, then service keywords. An empty result means the caller
// must switch to the generic fallback.
func Match(sc types.ScoringContext, kb *knowledge.KnowledgeBase) []types.RuleMatch {
	var matches []types.RuleMatch

	if tech, ok := kb.LookupTechnology(sc.Technology); ok {
		exact, category := matchTechnology(sc, tech)
		matches = append(matches, exact, category)
	}

	if port, ok := kb.LookupPort(sc.Port); ok {
		matches = append(matches, matchPort(port))
	}

	matches = append(matches, matchServiceKeywords(sc.Service)...)

	return matches
}

// matchTechnology emits the exact-technology match and, alongside it, a
// lower-priority match for the technology's parent category. The dual
// emission widens the candidate pool on purpose.
func matchTechnology(sc types.ScoringContext, tech *knowledge.Technology) (types.RuleMatch, types.RuleMatch) {
	confidence := 0.8
	var matched []string

	for _, pattern := range tech.Indicators.ResponsePatterns {
		if headersContain(sc.Headers, pattern) {
			matched = append(matched, pattern)
		}
	}
	if len(matched) > 0 {
		confidence = 1.0
	}

	techLower := strings.ToLower(tech.Name)
	exact := types.RuleMatch{
		Rule: types.ScoringRule{
			Name:     fmt.Sprintf("tech-exact:%s", techLower),
			Source:   types.RuleSourceTechExact,
			Patterns: tech.Indicators.ResponsePatterns,
			Weight:   1.0,
			Priority: 1,
		},
		Confidence: confidence,
		Matched:    matched,
		Context: map[string]string{
			"technology": techLower,
			"category":   strings.ToLower(tech.Category),
		},
	}

	category := types.RuleMatch{
		Rule: types.ScoringRule{
			Name:     fmt.Sprintf("tech-category:%s", strings.ToLower(tech.Category)),
			Source:   types.RuleSourceTechCategory,
			Weight:   0.6,
			Priority: 2,
		},
		Confidence: 0.6,
		Context: map[string]string{
			"category": strings.ToLower(tech.Category),
		},
	}

	return exact, category
}

func matchPort(port *knowledge.PortInfo) types.RuleMatch {
	confidence, ok := riskConfidence[port.Classification.RiskLevel]
	if !ok {
		confidence = riskConfidence[types.RiskUnknown]
	}

	return types.RuleMatch{
		Rule: types.ScoringRule{
			Name:     fmt.Sprintf("port:%d", port.Port),
			Source:   types.RuleSourcePort,
			Weight:   0.7,
			Priority: 3,
		},
		Confidence: confidence,
		Context: map[string]string{
			"port_category": string(port.Classification.Category),
			"risk_level":    string(port.Classification.RiskLevel),
		},
	}
}

func matchServiceKeywords(service string) []types.RuleMatch {
	if service == "" {
		return nil
	}
	lower := strings.ToLower(service)

	var matches []types.RuleMatch
	for _, keyword := range serviceKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		matches = append(matches, types.RuleMatch{
			Rule: types.ScoringRule{
				Name:     fmt.Sprintf("service-keyword:%s", keyword),
				Source:   types.RuleSourceServiceKeyword,
				Patterns: []string{keyword},
				Weight:   0.5,
				Priority: 4,
			},
			Confidence: 0.5,
			Matched:    []string{keyword},
			Context: map[string]string{
				"keyword": keyword,
			},
		})
	}
	return matches
}

func headersContain(headers map[string]string, pattern string) bool {
	if len(headers) == 0 {
		return false
	}
	lower := strings.ToLower(pattern)
	for key, value := range headers {
		if strings.Contains(strings.ToLower(key), lower) ||
			strings.Contains(strings.ToLower(value), lower) {
			return true
		}
	}
	return false
}
