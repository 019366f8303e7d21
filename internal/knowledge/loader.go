package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// ErrBaseDirMissing is returned when none of the configured resource
// directories exist. Individual resource failures degrade instead.
var ErrBaseDirMissing = errors.New("knowledge: no resource directory found")

type Loader struct {
	cfg    config.KnowledgeConfig
	logger *logger.Logger
}

func NewLoader(cfg config.KnowledgeConfig, log *logger.Logger) *Loader {
	return &Loader{
		cfg:    cfg,
		logger: log.WithComponent("knowledge"),
	}
}

// Load reads the three resources concurrently and assembles an immutable
// KnowledgeBase. A resource that is missing, malformed, or schema-invalid
// becomes empty and is flagged in the availability report; the call itself
// fails only when no containing directory can be located at all.
func (l *Loader) Load(ctx context.Context) (*KnowledgeBase, error) {
	if !l.anyDirExists() {
		return nil, fmt.Errorf("%w: checked %s, %s, %s", ErrBaseDirMissing,
			l.cfg.TechDBPath, l.cfg.PortDBPath, l.cfg.CatalogPath)
	}

	kb := &KnowledgeBase{
		techByName:     map[string]*Technology{},
		techByCat:      map[string][]*Technology{},
		portByNumber:   map[int]*PortInfo{},
		wordlistByName: map[string]*types.WordlistEntry{},
		byTech:         map[string][]*types.WordlistEntry{},
		byPort:         map[int][]*types.WordlistEntry{},
		byCategory:     map[string][]*types.WordlistEntry{},
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, techs := l.loadTechnologies(ctx)
		mu.Lock()
		defer mu.Unlock()
		kb.Availability.Technologies = report
		for _, t := range techs {
			kb.techByName[strings.ToLower(t.Name)] = t
			cat := strings.ToLower(t.Category)
			kb.techByCat[cat] = append(kb.techByCat[cat], t)
		}
		return nil
	})

	g.Go(func() error {
		report, ports := l.loadPorts(ctx)
		mu.Lock()
		defer mu.Unlock()
		kb.Availability.Ports = report
		for _, p := range ports {
			kb.portByNumber[p.Port] = p
		}
		return nil
	})

	g.Go(func() error {
		report, entries := l.loadCatalog(ctx)
		mu.Lock()
		defer mu.Unlock()
		kb.Availability.Catalog = report
		for _, w := range entries {
			name := strings.ToLower(w.Name)
			kb.catalog = append(kb.catalog, w)
			kb.wordlistByName[name] = w
			for _, tech := range w.Technologies {
				key := strings.ToLower(tech)
				kb.byTech[key] = append(kb.byTech[key], w)
			}
			for _, port := range w.Ports {
				kb.byPort[port] = append(kb.byPort[port], w)
			}
			cat := strings.ToLower(w.Category)
			kb.byCategory[cat] = append(kb.byCategory[cat], w)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Infow("Knowledge base loaded",
		"technologies", len(kb.techByName),
		"ports", len(kb.portByNumber),
		"wordlists", len(kb.catalog),
		"tech_db_loaded", kb.Availability.Technologies.Loaded,
		"port_db_loaded", kb.Availability.Ports.Loaded,
		"catalog_loaded", kb.Availability.Catalog.Loaded,
	)

	return kb, nil
}

func (l *Loader) anyDirExists() bool {
	for _, p := range []string{l.cfg.TechDBPath, l.cfg.PortDBPath, l.cfg.CatalogPath} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(filepath.Dir(p)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// readResource splits "missing" from "invalid JSON": the returned report is
// filled in by the typed loaders on schema errors.
func readResource(path string) ([]byte, ResourceReport) {
	report := ResourceReport{Path: path}
	if path == "" {
		report.Reason = FailureNotConfigured
		return nil, report
	}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Reason = FailureMissing
		report.Err = err.Error()
		return nil, report
	}

	if !json.Valid(data) {
		report.Reason = FailureParseError
		report.Err = "invalid JSON"
		return nil, report
	}

	return data, report
}

// Technology database schema: category -> tech name -> definition.
func (l *Loader) loadTechnologies(ctx context.Context) (ResourceReport, []*Technology) {
	data, report := readResource(l.cfg.TechDBPath)
	if data == nil {
		l.warnSkipped(ctx, "technology database", report)
		return report, nil
	}

	var raw map[string]map[string]Technology
	if err := json.Unmarshal(data, &raw); err != nil {
		report.Reason = FailureSchemaMismatch
		report.Err = err.Error()
		l.warnSkipped(ctx, "technology database", report)
		return report, nil
	}

	var techs []*Technology
	for category, byName := range raw {
		for name, def := range byName {
			t := def
			t.Name = name
			t.Category = category
			techs = append(techs, &t)
		}
	}

	report.Loaded = true
	return report, techs
}

// Port database schema: port string -> {classification, indicators}.
func (l *Loader) loadPorts(ctx context.Context) (ResourceReport, []*PortInfo) {
	data, report := readResource(l.cfg.PortDBPath)
	if data == nil {
		l.warnSkipped(ctx, "port database", report)
		return report, nil
	}

	var raw map[string]PortInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		report.Reason = FailureSchemaMismatch
		report.Err = err.Error()
		l.warnSkipped(ctx, "port database", report)
		return report, nil
	}

	var ports []*PortInfo
	for portStr, def := range raw {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			l.logger.Warnw("Dropping port entry with invalid key", "key", portStr)
			continue
		}
		p := def
		p.Port = port
		ports = append(ports, &p)
	}

	report.Loaded = true
	return report, ports
}

// Wordlist catalog schema: flat array of entries. Entries without a name
// are dropped with a warning rather than failing the whole catalog.
func (l *Loader) loadCatalog(ctx context.Context) (ResourceReport, []*types.WordlistEntry) {
	data, report := readResource(l.cfg.CatalogPath)
	if data == nil {
		l.warnSkipped(ctx, "wordlist catalog", report)
		return report, nil
	}

	var raw []types.WordlistEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		report.Reason = FailureSchemaMismatch
		report.Err = err.Error()
		l.warnSkipped(ctx, "wordlist catalog", report)
		return report, nil
	}

	var entries []*types.WordlistEntry
	dropped := 0
	for i := range raw {
		if raw[i].Name == "" {
			dropped++
			continue
		}
		entries = append(entries, &raw[i])
	}
	if dropped > 0 {
		l.logger.Warnw("Dropped catalog entries without a name", "count", dropped)
	}

	report.Loaded = true
	return report, entries
}

func (l *Loader) warnSkipped(ctx context.Context, resource string, report ResourceReport) {
	l.logger.WithContext(ctx).Warnw("Knowledge resource unavailable",
		"resource", resource,
		"path", report.Path,
		"reason", string(report.Reason),
		"error", report.Err,
	)
}
