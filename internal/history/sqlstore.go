package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/internal/logger"
	"github.com/razornet-sec/smartlist/pkg/types"
)

// sqlStore is the Postgres SelectionStore for shared deployments where
// several scanner hosts feed one history. It is INSERT-only; records are
// never updated or deleted by the engine.
type sqlStore struct {
	db     *sqlx.DB
	cfg    config.DatabaseConfig
	logger *logger.Logger
}

func NewSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (core.SelectionStore, error) {
	log = log.WithComponent("history-db")

	ctx := context.Background()
	start := time.Now()

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		log.LogError(ctx, err, "history.db.connect", "driver", cfg.Driver)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &sqlStore{db: db, cfg: cfg, logger: log}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.LogDuration(ctx, "history.db.init", start, "driver", cfg.Driver)
	return store, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS selection_records (
		id            TEXT PRIMARY KEY,
		created_at    TIMESTAMPTZ NOT NULL,
		fingerprint   TEXT NOT NULL,
		port          INTEGER NOT NULL,
		port_category TEXT NOT NULL,
		tech_family   TEXT NOT NULL,
		technology    TEXT NOT NULL DEFAULT '',
		context_json  JSONB NOT NULL,
		result_json   JSONB NOT NULL,
		fallback_used BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_selection_created_at ON selection_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_selection_technology ON selection_records(technology);
	CREATE INDEX IF NOT EXISTS idx_selection_fingerprint ON selection_records(fingerprint);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *sqlStore) Append(ctx context.Context, anonymized types.AnonymizedContext, result types.RecordedResult) (string, error) {
	contextJSON, err := json.Marshal(anonymized)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selection_records
			(id, created_at, fingerprint, port, port_category, tech_family,
			 technology, context_json, result_json, fallback_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, time.Now().UTC(), anonymized.Fingerprint, anonymized.Port,
		string(anonymized.PortCategory), string(anonymized.TechFamily),
		strings.ToLower(anonymized.Technology), contextJSON, resultJSON,
		result.FallbackUsed,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert selection record: %w", err)
	}
	return id, nil
}

func (s *sqlStore) Query(ctx context.Context, daysBack int, limit int, filters types.QueryFilters) ([]types.SelectionRecord, error) {
	if daysBack < 1 {
		daysBack = 1
	}

	query := `
		SELECT id, created_at, context_json, result_json
		FROM selection_records
		WHERE created_at >= $1`
	args := []interface{}{time.Now().UTC().AddDate(0, 0, -daysBack)}

	if filters.Technology != "" {
		args = append(args, strings.ToLower(filters.Technology))
		query += fmt.Sprintf(" AND technology = $%d", len(args))
	}
	if filters.Port != 0 {
		args = append(args, filters.Port)
		query += fmt.Sprintf(" AND port = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query selection records: %w", err)
	}
	defer rows.Close()

	var records []types.SelectionRecord
	for rows.Next() {
		var (
			record      types.SelectionRecord
			contextJSON []byte
			resultJSON  []byte
		)
		if err := rows.Scan(&record.ID, &record.Timestamp, &contextJSON, &resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan selection record: %w", err)
		}
		if err := json.Unmarshal(contextJSON, &record.Context); err != nil {
			s.logger.WithContext(ctx).Warnw("Skipping record with corrupted context", "id", record.ID)
			continue
		}
		if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
			s.logger.WithContext(ctx).Warnw("Skipping record with corrupted result", "id", record.ID)
			continue
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *sqlStore) Summary(ctx context.Context) (*types.HistorySummary, error) {
	summary := &types.HistorySummary{
		ByTechnology:   map[string]int{},
		ByPortCategory: map[types.PortCategory]int{},
		UpdatedAt:      time.Now().UTC(),
	}

	var fallbacks int
	if err := s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE fallback_used)
		FROM selection_records`).Scan(&summary.TotalRecords, &fallbacks); err != nil {
		return nil, fmt.Errorf("failed to count selection records: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT technology, port_category, COUNT(*)
		FROM selection_records
		GROUP BY technology, port_category`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate selection records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tech     string
			category string
			count    int
		)
		if err := rows.Scan(&tech, &category, &count); err != nil {
			return nil, err
		}
		if tech != "" {
			summary.ByTechnology[tech] += count
		}
		summary.ByPortCategory[types.PortCategory(category)] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if summary.TotalRecords > 0 {
		summary.FallbackPct = float64(fallbacks) / float64(summary.TotalRecords) * 100
	}
	return summary, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// NewStore picks the configured backend. The file store is the default and
// needs no external services.
func NewStore(cfg config.HistoryConfig, dbCfg config.DatabaseConfig, log *logger.Logger) (core.SelectionStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg, log)
	case "postgres":
		return NewSQLStore(dbCfg, log)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}
