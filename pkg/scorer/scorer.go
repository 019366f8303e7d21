package scorer

import (
	"math"
	"strings"

	"github.com/twmb/murmur3"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/history"
	"github.com/razornet-sec/smartlist/internal/knowledge"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// Candidate is one scored wordlist flowing through the pipeline.
type Candidate struct {
	Name  string
	Score float64
	Entry *types.WordlistEntry
}

// credentialHeavyTechs are targets where username/password lists are the
// right tool, so the credential-category penalty is waived.
var credentialHeavyTechs = map[string]bool{
	"mysql":      true,
	"postgresql": true,
	"mssql":      true,
	"oracle":     true,
	"mongodb":    true,
	"redis":      true,
	"phpmyadmin": true,
	"adminer":    true,
	"grafana":    true,
	"jenkins":    true,
	"tomcat":     true,
}

func isCredentialCategory(category string) bool {
	switch strings.ToLower(category) {
	case "usernames", "passwords", "credentials":
		return true
	}
	return false
}

func isSubdomainCategory(category string) bool {
	switch strings.ToLower(category) {
	case "subdomains", "dns", "vhosts":
		return true
	}
	return false
}

func isExploratoryCategory(category string) bool {
	switch strings.ToLower(category) {
	case "fuzzing", "generic", "discovery":
		return true
	}
	return false
}

// relevantUseCase reports whether one declared use-case fits the context.
// Matching stays substring-based: the technology name, the coarse port
// category, or a shared service keyword.
func relevantUseCase(useCase string, sc types.ScoringContext) bool {
	uc := strings.ToLower(useCase)
	if uc == "" {
		return false
	}

	if tech := strings.ToLower(sc.Technology); tech != "" && strings.Contains(uc, tech) {
		return true
	}

	switch history.CategorizePort(sc.Port) {
	case types.PortCategoryWeb, types.PortCategoryWebSecure:
		if strings.Contains(uc, "web") || strings.Contains(uc, "http") || strings.Contains(uc, "api") {
			return true
		}
	case types.PortCategoryDatabase:
		if strings.Contains(uc, "database") || strings.Contains(uc, "db") {
			return true
		}
	case types.PortCategoryAdmin:
		if strings.Contains(uc, "admin") || strings.Contains(uc, "panel") {
			return true
		}
	}

	if service := strings.ToLower(sc.Service); service != "" {
		for _, keyword := range serviceKeywords {
			if strings.Contains(service, keyword) && strings.Contains(uc, keyword) {
				return true
			}
		}
	}
	return false
}

// hasRelevantUseCase is true when at least one declared use-case fits the
// context. Entries declaring none are neither aligned nor misaligned.
func hasRelevantUseCase(entry *types.WordlistEntry, sc types.ScoringContext) bool {
	for _, uc := range entry.UseCases {
		if relevantUseCase(uc, sc) {
			return true
		}
	}
	return false
}

// adjustment is one named step of the scoring table. Steps run in fixed
// order; each returns the score delta it contributes so a test can pin any
// single rule down in isolation.
type adjustment struct {
	name  string
	apply func(entry *types.WordlistEntry, sc types.ScoringContext, cfg config.ScoringConfig) float64
}

var adjustments = []adjustment{
	{
		name: "tech-compatibility",
		apply: func(entry *types.WordlistEntry, sc types.ScoringContext, _ config.ScoringConfig) float64 {
			if len(entry.Technologies) == 0 {
				return 0
			}
			if entry.HasTechnology(strings.ToLower(sc.Technology)) {
				return 1.0
			}
			return 0.3
		},
	},
	{
		name: "port-compatibility",
		apply: func(entry *types.WordlistEntry, sc types.ScoringContext, _ config.ScoringConfig) float64 {
			if entry.HasPort(sc.Port) {
				return 0.5
			}
			return 0
		},
	},
	{
		name: "use-case-alignment",
		apply: func(entry *types.WordlistEntry, sc types.ScoringContext, _ config.ScoringConfig) float64 {
			if hasRelevantUseCase(entry, sc) {
				return 0.3
			}
			return 0
		},
	},
	{
		name: "size",
		apply: func(entry *types.WordlistEntry, _ types.ScoringContext, cfg config.ScoringConfig) float64 {
			switch {
			case entry.Lines > cfg.HugeLines:
				return -cfg.HugePenalty
			case entry.Lines > cfg.LargeLines:
				return -cfg.LargePenalty
			case entry.Lines > 0 && entry.Lines < cfg.SmallLines:
				return cfg.SmallBonus
			}
			return 0
		},
	},
	{
		name: "category",
		apply: func(entry *types.WordlistEntry, sc types.ScoringContext, cfg config.ScoringConfig) float64 {
			if isCredentialCategory(entry.Category) &&
				!credentialHeavyTechs[strings.ToLower(sc.Technology)] {
				return -cfg.CredentialPenalty
			}
			if isSubdomainCategory(entry.Category) {
				return -cfg.SubdomainPenalty
			}
			return 0
		},
	},
	{
		name: "quality",
		apply: func(entry *types.WordlistEntry, _ types.ScoringContext, _ config.ScoringConfig) float64 {
			delta := 0.0
			if entry.Quality == types.QualityExcellent {
				delta += 0.1
			}
			if m := entry.QualityMetrics; m != nil {
				if m.Accuracy >= 0.8 {
					delta += 0.2
				}
				if m.Specificity >= 0.9 {
					delta += 0.15
				}
				if m.FalsePositiveRate > 0.3 {
					delta -= 0.2
				}
			}
			return delta
		},
	},
	{
		name: "detection-confidence",
		apply: func(entry *types.WordlistEntry, sc types.ScoringContext, cfg config.ScoringConfig) float64 {
			confidence := sc.ConfidenceValue()
			if confidence >= 0.8 && entry.HasTechnology(strings.ToLower(sc.Technology)) {
				return 0.5
			}
			if confidence < 0.5 {
				// Hedge toward exploration when the fingerprint is shaky.
				if (entry.Lines > 0 && entry.Lines < cfg.SmallLines) || isExploratoryCategory(entry.Category) {
					return 0.3
				}
			}
			return 0
		},
	},
}

// variation is the bounded tie-breaking term, deterministic per distinct
// context+wordlist pair.
func variation(fingerprint, name string) float64 {
	h := murmur3.SeedSum64(0, []byte(fingerprint+"|"+strings.ToLower(name)))
	return float64(h%1000) / 2000.0
}

// ScoreCandidates gathers every wordlist reachable from the matched rules'
// provenance and runs the adjustment table over each. Output order is
// unspecified; sorting happens once, just before diversification.
func ScoreCandidates(matches []types.RuleMatch, sc types.ScoringContext, kb *knowledge.KnowledgeBase, cfg config.ScoringConfig, fingerprint string) []Candidate {
	pool := gatherCandidates(matches, sc, kb)

	candidates := make([]Candidate, 0, len(pool))
	for _, entry := range pool {
		score := entry.DeclaredWeight()
		for _, adj := range adjustments {
			score += adj.apply(entry, sc, cfg)
		}
		score += variation(fingerprint, entry.Name)
		if score < 0 {
			score = 0
		}
		candidates = append(candidates, Candidate{
			Name:  entry.Name,
			Score: score,
			Entry: entry,
		})
	}
	return candidates
}

// gatherCandidates resolves rule provenance to catalog entries, deduplicated
// by name.
func gatherCandidates(matches []types.RuleMatch, sc types.ScoringContext, kb *knowledge.KnowledgeBase) []*types.WordlistEntry {
	seen := map[string]bool{}
	var pool []*types.WordlistEntry

	add := func(entries []*types.WordlistEntry) {
		for _, entry := range entries {
			key := strings.ToLower(entry.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			pool = append(pool, entry)
		}
	}

	for _, match := range matches {
		switch match.Rule.Source {
		case types.RuleSourceTechExact:
			add(kb.WordlistsForTech(match.Context["technology"]))
		case types.RuleSourceTechCategory:
			add(kb.WordlistsInCategory(match.Context["category"]))
		case types.RuleSourcePort:
			add(kb.WordlistsForPort(sc.Port))
			add(kb.WordlistsInCategory(match.Context["port_category"]))
		case types.RuleSourceServiceKeyword:
			add(kb.WordlistsForTech(match.Context["keyword"]))
			add(kb.WordlistsInCategory(match.Context["keyword"]))
		}
	}
	return pool
}

// AdjustmentNames lists the scoring table in order, for audit output.
func AdjustmentNames() []string {
	names := make([]string, 0, len(adjustments)+2)
	names = append(names, "base-weight")
	for _, adj := range adjustments {
		names = append(names, adj.name)
	}
	names = append(names, "context-variation")
	return names
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
