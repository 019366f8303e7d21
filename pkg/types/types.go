package types

import (
	"time"
)

// PortCategory classifies a port for anonymized telemetry and rule matching.
type PortCategory string

const (
	PortCategoryWeb       PortCategory = "web"
	PortCategoryWebSecure PortCategory = "web-secure"
	PortCategoryDatabase  PortCategory = "database"
	PortCategoryAdmin     PortCategory = "admin"
	PortCategorySystem    PortCategory = "system"
	PortCategoryUser      PortCategory = "user"
	PortCategoryOther     PortCategory = "other"
)

// TechFamily is the coarse technology grouping persisted with history records.
type TechFamily string

const (
	TechFamilyCMS        TechFamily = "cms"
	TechFamilyWebServer  TechFamily = "web-server"
	TechFamilyDatabase   TechFamily = "database"
	TechFamilyMonitoring TechFamily = "monitoring"
	TechFamilyOther      TechFamily = "other"
	TechFamilyUnknown    TechFamily = "unknown"
)

type RiskLevel string

const (
	RiskHigh    RiskLevel = "high"
	RiskMedium  RiskLevel = "medium"
	RiskLow     RiskLevel = "low"
	RiskUnknown RiskLevel = "unknown"
)

// QualityTier is the catalog's declared quality rating for a wordlist.
type QualityTier string

const (
	QualityExcellent   QualityTier = "excellent"
	QualityGood        QualityTier = "good"
	QualityAverage     QualityTier = "average"
	QualitySpecialized QualityTier = "specialized"
	QualityBasic       QualityTier = "basic"
)

type EntropyLevel string

const (
	EntropyLow      EntropyLevel = "low"
	EntropyMedium   EntropyLevel = "medium"
	EntropyHigh     EntropyLevel = "high"
	EntropyVeryHigh EntropyLevel = "very-high"
)

// RuleSource identifies which tier of the matching hierarchy produced a rule.
type RuleSource string

const (
	RuleSourceTechExact      RuleSource = "tech-exact"
	RuleSourceTechCategory   RuleSource = "tech-category"
	RuleSourcePort           RuleSource = "port"
	RuleSourceServiceKeyword RuleSource = "service-keyword"
)

// ConfidenceTier buckets a final score for downstream display and auditing.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "HIGH"
	ConfidenceMedium ConfidenceTier = "MEDIUM"
	ConfidenceLow    ConfidenceTier = "LOW"
)

// ScoringContext is the input to one recommendation request. It is built
// fresh per request by the caller (a scan plugin or workflow) and discarded
// afterwards; Target is never persisted verbatim.
type ScoringContext struct {
	Target     string            `json:"target"`
	Port       int               `json:"port"`
	Service    string            `json:"service,omitempty"`
	Technology string            `json:"technology,omitempty"`
	OS         string            `json:"os,omitempty"`
	Version    string            `json:"version,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	// Confidence of the technology detection, 0-1. Nil means unknown.
	Confidence *float64 `json:"confidence,omitempty"`
}

// ConfidenceValue returns the detection confidence, defaulting to 0.5 when
// the upstream fingerprinter supplied none.
func (c *ScoringContext) ConfidenceValue() float64 {
	if c.Confidence == nil {
		return 0.5
	}
	return *c.Confidence
}

// AnonymizedContext is the privacy-safe projection of a ScoringContext that
// is persisted with every selection record. It must never contain the raw
// target identifier.
type AnonymizedContext struct {
	PortCategory  PortCategory `json:"port_category"`
	Port          int          `json:"port"`
	Fingerprint   string       `json:"fingerprint"`
	ServiceLength int          `json:"service_length"`
	TechFamily    TechFamily   `json:"tech_family"`
	Technology    string       `json:"technology,omitempty"`
	OSFamily      string       `json:"os_family,omitempty"`
	Version       string       `json:"version,omitempty"`
	HasHeaders    bool         `json:"has_headers"`
}

// QualityMetrics are optional per-wordlist effectiveness measurements, each 0-1.
type QualityMetrics struct {
	Accuracy          float64 `json:"accuracy"`
	Specificity       float64 `json:"specificity"`
	Effectiveness     float64 `json:"effectiveness"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
}

// WordlistEntry is one catalog entry. The catalog is read-only after load.
type WordlistEntry struct {
	Name           string          `json:"name"`
	FullPath       string          `json:"full_path,omitempty"`
	Category       string          `json:"category"`
	Lines          int64           `json:"lines"`
	SizeBytes      int64           `json:"size_bytes,omitempty"`
	Quality        QualityTier     `json:"quality"`
	Weight         *float64        `json:"weight,omitempty"`
	Technologies   []string        `json:"technologies,omitempty"`
	Ports          []int           `json:"ports,omitempty"`
	UseCases       []string        `json:"use_cases,omitempty"`
	EntropyLevel   EntropyLevel    `json:"entropy_level,omitempty"`
	Specificity    string          `json:"target_specificity,omitempty"`
	QualityMetrics *QualityMetrics `json:"quality_metrics,omitempty"`
}

// DeclaredWeight returns the catalog weight, defaulting to 0.5.
func (w *WordlistEntry) DeclaredWeight() float64 {
	if w.Weight == nil {
		return 0.5
	}
	return *w.Weight
}

// HasTechnology reports whether the entry declares compatibility with the
// given technology (case-insensitive comparison is the caller's concern;
// catalog entries are stored lowercase).
func (w *WordlistEntry) HasTechnology(tech string) bool {
	for _, t := range w.Technologies {
		if t == tech {
			return true
		}
	}
	return false
}

func (w *WordlistEntry) HasPort(port int) bool {
	for _, p := range w.Ports {
		if p == port {
			return true
		}
	}
	return false
}

// ScoringRule is one named rule of the matching hierarchy. Lower priority
// values are evaluated first and trusted more.
type ScoringRule struct {
	Name     string     `json:"name"`
	Source   RuleSource `json:"source"`
	Patterns []string   `json:"patterns,omitempty"`
	Weight   float64    `json:"weight"`
	Priority int        `json:"priority"`
}

// RuleMatch is the result of matching one rule against one context.
type RuleMatch struct {
	Rule       ScoringRule       `json:"rule"`
	Confidence float64           `json:"confidence"`
	Matched    []string          `json:"matched,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// ScoreBreakdown attributes the final score to the rule tiers that
// contributed, each component in [0,1].
type ScoreBreakdown struct {
	ExactMatch      float64 `json:"exact_match"`
	TechCategory    float64 `json:"tech_category"`
	PortContext     float64 `json:"port_context"`
	ServiceKeywords float64 `json:"service_keywords"`
	GenericFallback float64 `json:"generic_fallback"`
}

// DiversificationInfo records which anti-clustering measures fired, for audits.
type DiversificationInfo struct {
	RotationEpoch    int64  `json:"rotation_epoch"`
	Strategy         string `json:"strategy"`
	Reshuffled       bool   `json:"reshuffled"`
	CategoryCapHits  int    `json:"category_cap_hits"`
	FrequencyApplied bool   `json:"frequency_applied"`
}

// ScoringResult is the output of one full scoring pass.
type ScoringResult struct {
	Score           float64              `json:"score"`
	Breakdown       ScoreBreakdown       `json:"breakdown"`
	Wordlists       []string             `json:"wordlists"`
	MatchedRules    []string             `json:"matched_rules,omitempty"`
	FallbackUsed    bool                 `json:"fallback_used"`
	Confidence      ConfidenceTier       `json:"confidence"`
	Diversification *DiversificationInfo `json:"diversification,omitempty"`
}

// RecordedResult is the reduced form of a ScoringResult kept in history.
type RecordedResult struct {
	Wordlists    []string       `json:"wordlists"`
	Score        float64        `json:"score"`
	FallbackUsed bool           `json:"fallback_used"`
	Confidence   ConfidenceTier `json:"confidence"`
}

// SelectionRecord is one persisted recommendation event. Records are
// immutable once written; the history store is append-only.
type SelectionRecord struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Context   AnonymizedContext `json:"context"`
	Result    RecordedResult    `json:"result"`
	// Outcome is reserved for later feedback attachment (e.g. whether the
	// recommendation led to a discovery). Always null for now.
	Outcome map[string]interface{} `json:"outcome,omitempty"`
}

// EntropyQuality grades the recommendation diversity of a history window.
type EntropyQuality string

const (
	EntropyQualityExcellent    EntropyQuality = "excellent"
	EntropyQualityGood         EntropyQuality = "good"
	EntropyQualityAcceptable   EntropyQuality = "acceptable"
	EntropyQualityPoor         EntropyQuality = "poor"
	EntropyQualityInsufficient EntropyQuality = "insufficient_data"
)

// EntropyMetrics is the diagnostic output of the entropy analyzer.
type EntropyMetrics struct {
	WindowDays        int            `json:"window_days"`
	Records           int            `json:"records"`
	DistinctWordlists int            `json:"distinct_wordlists"`
	EntropyScore      float64        `json:"entropy_score"`
	ClusteringPct     float64        `json:"clustering_pct"`
	ContextDiversity  float64        `json:"context_diversity"`
	TopWordlists      []WordlistFreq `json:"top_wordlists,omitempty"`
	Quality           EntropyQuality `json:"quality"`
}

// WordlistFreq pairs a wordlist name with its recommendation count.
type WordlistFreq struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ContextCluster groups history records sharing a technology and port
// category, exposing repetitive recommendation patterns.
type ContextCluster struct {
	Key             string         `json:"key"`
	Members         int            `json:"members"`
	CommonWordlists []WordlistFreq `json:"common_wordlists"`
}

// HistorySummary is the derived, best-effort index over the raw records.
type HistorySummary struct {
	TotalRecords   int                  `json:"total_records"`
	ByTechnology   map[string]int       `json:"by_technology"`
	ByPortCategory map[PortCategory]int `json:"by_port_category"`
	FallbackPct    float64              `json:"fallback_pct"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// QueryFilters narrows a history query. Zero values mean no filtering.
type QueryFilters struct {
	Technology string
	Port       int
}
