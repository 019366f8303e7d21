package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/pkg/types"
)

const (
	dayLayout   = "2006-01-02"
	summaryFile = "summary.json"
)

// FileStore is the default SelectionStore. Records are day-partitioned JSON
// files under the history root:
//
//	<dir>/2026-08-30/{unixnano}-{fingerprint8}.json
//
// Writes go through a temp file and rename so a crash never leaves a
// half-written record. A derived summary.json is maintained best-effort;
// losing it only costs a recompute.
type FileStore struct {
	dir    string
	logger *logger.Logger
}

func NewFileStore(cfg config.HistoryConfig, log *logger.Logger) (*FileStore, error) {
	dir := cfg.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".smartlist", "history")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &FileStore{
		dir:    dir,
		logger: log.WithComponent("history"),
	}, nil
}

// Dir returns the history root, for display in CLI output.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Append(ctx context.Context, anonymized types.AnonymizedContext, result types.RecordedResult) (string, error) {
	now := time.Now().UTC()
	record := types.SelectionRecord{
		ID:        uuid.NewString(),
		Timestamp: now,
		Context:   anonymized,
		Result:    result,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal selection record: %w", err)
	}

	dayDir := filepath.Join(s.dir, now.Format(dayLayout))
	if err := os.MkdirAll(dayDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create day partition: %w", err)
	}

	name := fmt.Sprintf("%d-%s.json", now.UnixNano(), shortFingerprint(anonymized.Fingerprint))
	finalPath := filepath.Join(dayDir, name)
	tempPath := filepath.Join(dayDir, "."+name+".tmp")

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temp record file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to commit record file: %w", err)
	}

	if err := s.refreshSummary(ctx); err != nil {
		s.logger.WithContext(ctx).Warnw("Summary refresh failed, records are intact",
			"error", err.Error())
	}

	return record.ID, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	if fp == "" {
		return "00000000"
	}
	return fp
}

// Query returns records from the last daysBack day partitions, newest first,
// capped at limit. Corrupted record files are skipped with a warning.
func (s *FileStore) Query(ctx context.Context, daysBack int, limit int, filters types.QueryFilters) ([]types.SelectionRecord, error) {
	if daysBack < 1 {
		daysBack = 1
	}

	var records []types.SelectionRecord
	today := time.Now().UTC()

	for i := 0; i < daysBack; i++ {
		if limit > 0 && len(records) >= limit {
			break
		}

		day := today.AddDate(0, 0, -i).Format(dayLayout)
		dayRecords, err := s.readDay(ctx, day)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, record := range dayRecords {
			if !matchesFilters(record, filters) {
				continue
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
	}

	return records, nil
}

func (s *FileStore) readDay(ctx context.Context, day string) ([]types.SelectionRecord, error) {
	dayDir := filepath.Join(s.dir, day)
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	// Names start with a fixed-width nanosecond timestamp, so lexicographic
	// descending order is chronological newest-first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var records []types.SelectionRecord
	for _, name := range names {
		path := filepath.Join(dayDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.WithContext(ctx).Warnw("Skipping unreadable record", "path", path, "error", err.Error())
			continue
		}

		var record types.SelectionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.WithContext(ctx).Warnw("Skipping corrupted record", "path", path, "error", err.Error())
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

func matchesFilters(record types.SelectionRecord, filters types.QueryFilters) bool {
	if filters.Technology != "" &&
		!strings.EqualFold(record.Context.Technology, filters.Technology) {
		return false
	}
	if filters.Port != 0 && record.Context.Port != filters.Port {
		return false
	}
	return true
}

// Summary serves the cached summary.json, recomputing it from the raw
// records when the cache is missing or unreadable.
func (s *FileStore) Summary(ctx context.Context) (*types.HistorySummary, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, summaryFile))
	if err == nil {
		var summary types.HistorySummary
		if err := json.Unmarshal(data, &summary); err == nil {
			return &summary, nil
		}
		s.logger.WithContext(ctx).Warnw("Summary cache corrupted, recomputing")
	}

	summary, err := s.computeSummary(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.writeSummary(summary); err != nil {
		s.logger.WithContext(ctx).Warnw("Failed to cache summary", "error", err.Error())
	}
	return summary, nil
}

func (s *FileStore) refreshSummary(ctx context.Context) error {
	summary, err := s.computeSummary(ctx)
	if err != nil {
		return err
	}
	return s.writeSummary(summary)
}

func (s *FileStore) computeSummary(ctx context.Context) (*types.HistorySummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	summary := &types.HistorySummary{
		ByTechnology:   map[string]int{},
		ByPortCategory: map[types.PortCategory]int{},
		UpdatedAt:      time.Now().UTC(),
	}

	fallbacks := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse(dayLayout, entry.Name()); err != nil {
			continue
		}

		records, err := s.readDay(ctx, entry.Name())
		if err != nil {
			continue
		}
		for _, record := range records {
			summary.TotalRecords++
			if record.Context.Technology != "" {
				summary.ByTechnology[record.Context.Technology]++
			}
			summary.ByPortCategory[record.Context.PortCategory]++
			if record.Result.FallbackUsed {
				fallbacks++
			}
		}
	}

	if summary.TotalRecords > 0 {
		summary.FallbackPct = float64(fallbacks) / float64(summary.TotalRecords) * 100
	}
	return summary, nil
}

func (s *FileStore) writeSummary(summary *types.HistorySummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	finalPath := filepath.Join(s.dir, summaryFile)
	tempPath := filepath.Join(s.dir, "."+summaryFile+".tmp")
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// CleanupOld deletes day partitions older than maxAgeDays and returns the
// number of removed partitions.
func (s *FileStore) CleanupOld(ctx context.Context, maxAgeDays int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.Parse(dayLayout, entry.Name())
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.WithContext(ctx).Warnw("Failed to remove old partition",
				"partition", entry.Name(), "error", err.Error())
			continue
		}
		removed++
	}

	if removed > 0 {
		if err := s.refreshSummary(ctx); err != nil {
			s.logger.WithContext(ctx).Warnw("Summary refresh failed after cleanup", "error", err.Error())
		}
	}
	return removed, nil
}

func (s *FileStore) Close() error { return nil }

var _ core.SelectionStore = (*FileStore)(nil)
