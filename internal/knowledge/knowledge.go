// Package knowledge loads and serves the three static resources the
// recommendation engine consumes: the technology detection database, the
// port classification database, and the wordlist catalog. A KnowledgeBase
// is immutable after Load; reloads build a fresh instance and swap it
// atomically through a Provider.
package knowledge

import (
	"strings"
	"sync/atomic"

	"github.com/razornet-sec/smartlist/pkg/types"
)

// Technology is one entry of the technology detection database.
type Technology struct {
	Name              string             `json:"-"`
	Category          string             `json:"-"`
	Indicators        TechIndicators     `json:"indicators"`
	DiscoveryPaths    []string           `json:"discovery_paths,omitempty"`
	ConfidenceWeights map[string]float64 `json:"confidence_weights,omitempty"`
}

// TechIndicators hold the fingerprint patterns used to boost match
// confidence when response content is available.
type TechIndicators struct {
	ResponsePatterns []string `json:"response_patterns,omitempty"`
	Headers          []string `json:"headers,omitempty"`
}

// PortInfo is one entry of the port classification database.
type PortInfo struct {
	Port           int                `json:"-"`
	Classification PortClassification `json:"classification"`
	Indicators     []string           `json:"indicators,omitempty"`
}

type PortClassification struct {
	Category  types.PortCategory `json:"category"`
	RiskLevel types.RiskLevel    `json:"risk_level"`
}

// ResourceReport describes the load outcome of one resource.
type ResourceReport struct {
	Path   string        `json:"path"`
	Loaded bool          `json:"loaded"`
	Reason FailureReason `json:"reason,omitempty"`
	Err    string        `json:"error,omitempty"`
}

type FailureReason string

const (
	FailureNone           FailureReason = ""
	FailureNotConfigured  FailureReason = "not_configured"
	FailureMissing        FailureReason = "missing"
	FailureParseError     FailureReason = "parse_error"
	FailureSchemaMismatch FailureReason = "schema_mismatch"
)

// Availability reports which resources loaded and why the others did not.
type Availability struct {
	Technologies ResourceReport `json:"technologies"`
	Ports        ResourceReport `json:"ports"`
	Catalog      ResourceReport `json:"catalog"`
}

// KnowledgeBase is the read-only view over the three loaded resources.
// Lookup maps are keyed lowercase; construction happens only in the loader.
type KnowledgeBase struct {
	Availability Availability

	techByName   map[string]*Technology
	techByCat    map[string][]*Technology
	portByNumber map[int]*PortInfo

	catalog        []*types.WordlistEntry
	wordlistByName map[string]*types.WordlistEntry
	byTech         map[string][]*types.WordlistEntry
	byPort         map[int][]*types.WordlistEntry
	byCategory     map[string][]*types.WordlistEntry
}

// LookupTechnology resolves a technology by name, case-insensitively.
func (kb *KnowledgeBase) LookupTechnology(name string) (*Technology, bool) {
	if name == "" {
		return nil, false
	}
	t, ok := kb.techByName[strings.ToLower(name)]
	return t, ok
}

func (kb *KnowledgeBase) TechnologiesInCategory(category string) []*Technology {
	return kb.techByCat[strings.ToLower(category)]
}

func (kb *KnowledgeBase) LookupPort(port int) (*PortInfo, bool) {
	p, ok := kb.portByNumber[port]
	return p, ok
}

// Catalog returns all usable wordlist entries.
func (kb *KnowledgeBase) Catalog() []*types.WordlistEntry {
	return kb.catalog
}

func (kb *KnowledgeBase) Wordlist(name string) (*types.WordlistEntry, bool) {
	w, ok := kb.wordlistByName[strings.ToLower(name)]
	return w, ok
}

func (kb *KnowledgeBase) WordlistsForTech(tech string) []*types.WordlistEntry {
	return kb.byTech[strings.ToLower(tech)]
}

func (kb *KnowledgeBase) WordlistsForPort(port int) []*types.WordlistEntry {
	return kb.byPort[port]
}

func (kb *KnowledgeBase) WordlistsInCategory(category string) []*types.WordlistEntry {
	return kb.byCategory[strings.ToLower(category)]
}

// Provider hands out the current KnowledgeBase snapshot. Reload swaps the
// whole pointer so in-flight scoring calls keep the snapshot they started
// with, never a partially-updated mix.
type Provider struct {
	current atomic.Pointer[KnowledgeBase]
}

func NewProvider(kb *KnowledgeBase) *Provider {
	p := &Provider{}
	p.current.Store(kb)
	return p
}

func (p *Provider) Current() *KnowledgeBase {
	return p.current.Load()
}

func (p *Provider) Swap(kb *KnowledgeBase) {
	p.current.Store(kb)
}
