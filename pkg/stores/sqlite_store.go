package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/solasta/solasta/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the engine.Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateGoal persists a new goal
func (s *SQLiteStore) CreateGoal(ctx context.Context, goal *engine.Goal) error {
	query := `
		INSERT INTO goals (id, owner, text, status, active_plan_id, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		goal.ID,
		goal.Owner,
		goal.Text,
		goal.Status,
		goal.ActivePlanID,
		goal.Error,
		goal.CreatedAt,
		goal.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	return nil
}

// GetGoal retrieves a goal by ID
func (s *SQLiteStore) GetGoal(ctx context.Context, id string) (*engine.Goal, error) {
	query := `
		SELECT id, owner, text, status, active_plan_id, error, created_at, updated_at
		FROM goals
		WHERE id = ?
	`

	goal := &engine.Goal{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&goal.ID,
		&goal.Owner,
		&goal.Text,
		&goal.Status,
		&goal.ActivePlanID,
		&goal.Error,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, engine.NewNotFoundError("goal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	return goal, nil
}

// UpdateGoal persists goal mutations
func (s *SQLiteStore) UpdateGoal(ctx context.Context, goal *engine.Goal) error {
	query := `
		UPDATE goals
		SET status = ?, active_plan_id = ?, error = ?, updated_at = ?
		WHERE id = ?
	`

	goal.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, query,
		goal.Status,
		goal.ActivePlanID,
		goal.Error,
		goal.UpdatedAt,
		goal.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return engine.NewNotFoundError("goal", goal.ID)
	}

	return nil
}

// ListGoals lists goals ordered by creation time descending
func (s *SQLiteStore) ListGoals(ctx context.Context, limit int) ([]*engine.Goal, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, owner, text, status, active_plan_id, error, created_at, updated_at
		FROM goals
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := []*engine.Goal{}
	for rows.Next() {
		goal := &engine.Goal{}
		err := rows.Scan(
			&goal.ID,
			&goal.Owner,
			&goal.Text,
			&goal.Status,
			&goal.ActivePlanID,
			&goal.Error,
			&goal.CreatedAt,
			&goal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	return goals, nil
}

// CreatePlan persists a new plan version
func (s *SQLiteStore) CreatePlan(ctx context.Context, plan *engine.Plan) error {
	steps, err := marshalSteps(plan.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO plans (id, goal_id, version, is_active, steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		plan.ID,
		plan.GoalID,
		plan.Version,
		boolToInt(plan.Active),
		steps,
		plan.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

// GetPlan retrieves a plan by ID
func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*engine.Plan, error) {
	query := `
		SELECT id, goal_id, version, is_active, steps, created_at
		FROM plans
		WHERE id = ?
	`

	plan, err := s.scanPlan(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, engine.NewNotFoundError("plan", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// GetActivePlan retrieves the active plan for a goal, or nil when the goal
// has no active plan
func (s *SQLiteStore) GetActivePlan(ctx context.Context, goalID string) (*engine.Plan, error) {
	query := `
		SELECT id, goal_id, version, is_active, steps, created_at
		FROM plans
		WHERE goal_id = ? AND is_active = 1
	`

	plan, err := s.scanPlan(s.db.QueryRowContext(ctx, query, goalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active plan: %w", err)
	}

	return plan, nil
}

// UpdatePlan persists step mutations within a plan version
func (s *SQLiteStore) UpdatePlan(ctx context.Context, plan *engine.Plan) error {
	steps, err := marshalSteps(plan.Steps)
	if err != nil {
		return err
	}

	query := `
		UPDATE plans
		SET is_active = ?, steps = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, boolToInt(plan.Active), steps, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return engine.NewNotFoundError("plan", plan.ID)
	}

	return nil
}

// DeactivatePlans clears the active flag on every plan of the goal
func (s *SQLiteStore) DeactivatePlans(ctx context.Context, goalID string) error {
	query := `UPDATE plans SET is_active = 0 WHERE goal_id = ?`

	if _, err := s.db.ExecContext(ctx, query, goalID); err != nil {
		return fmt.Errorf("failed to deactivate plans: %w", err)
	}

	return nil
}

// ListPlanVersions lists all plan versions for a goal, version ascending
func (s *SQLiteStore) ListPlanVersions(ctx context.Context, goalID string) ([]*engine.Plan, error) {
	query := `
		SELECT id, goal_id, version, is_active, steps, created_at
		FROM plans
		WHERE goal_id = ?
		ORDER BY version ASC
	`

	rows, err := s.db.QueryContext(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan versions: %w", err)
	}
	defer rows.Close()

	plans := []*engine.Plan{}
	for rows.Next() {
		plan, err := s.scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

// AppendAgentLog appends one generation audit record
func (s *SQLiteStore) AppendAgentLog(ctx context.Context, entry *engine.AgentLog) error {
	query := `
		INSERT INTO agent_logs (
			id, goal_id, plan_id, step_id, role, provider, model,
			prompt_summary, response_summary, tokens_in, tokens_out,
			latency_ms, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.GoalID,
		entry.PlanID,
		entry.StepID,
		entry.Role,
		entry.Provider,
		entry.Model,
		entry.PromptSummary,
		entry.ResponseSummary,
		entry.TokensIn,
		entry.TokensOut,
		entry.LatencyMS,
		entry.Error,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append agent log: %w", err)
	}

	return nil
}

// GetAgentLogs retrieves the audit trail for a goal, oldest first
func (s *SQLiteStore) GetAgentLogs(ctx context.Context, goalID string) ([]*engine.AgentLog, error) {
	query := `
		SELECT id, goal_id, plan_id, step_id, role, provider, model,
			   prompt_summary, response_summary, tokens_in, tokens_out,
			   latency_ms, error, created_at
		FROM agent_logs
		WHERE goal_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent logs: %w", err)
	}
	defer rows.Close()

	logs := []*engine.AgentLog{}
	for rows.Next() {
		entry := &engine.AgentLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.GoalID,
			&entry.PlanID,
			&entry.StepID,
			&entry.Role,
			&entry.Provider,
			&entry.Model,
			&entry.PromptSummary,
			&entry.ResponseSummary,
			&entry.TokensIn,
			&entry.TokensOut,
			&entry.LatencyMS,
			&entry.Error,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent log: %w", err)
		}
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent logs: %w", err)
	}

	return logs, nil
}

// StoreMemory persists a memory entry
func (s *SQLiteStore) StoreMemory(ctx context.Context, entry *engine.MemoryEntry) error {
	keywords, err := json.Marshal(entry.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO memory (id, goal_id, summary, outcome, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.GoalID,
		entry.Summary,
		entry.Outcome,
		string(keywords),
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to store memory entry: %w", err)
	}

	return nil
}

// RecallMemory returns up to limit entries scored by keyword overlap with
// the query text. Entries with no overlap are not returned.
func (s *SQLiteStore) RecallMemory(ctx context.Context, query string, limit int) ([]*engine.MemoryEntry, error) {
	if limit <= 0 {
		limit = 5
	}

	// Score the most recent entries in memory; the table holds one row per
	// finished goal so the scan stays small.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, summary, outcome, keywords, created_at
		FROM memory
		ORDER BY created_at DESC
		LIMIT 500
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer rows.Close()

	queryTerms := Tokenize(query)

	type scored struct {
		entry *engine.MemoryEntry
		score int
	}
	candidates := []scored{}

	for rows.Next() {
		entry := &engine.MemoryEntry{}
		var keywords string
		err := rows.Scan(
			&entry.ID,
			&entry.GoalID,
			&entry.Summary,
			&entry.Outcome,
			&keywords,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &entry.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}

		if score := overlap(queryTerms, entry.Keywords); score > 0 {
			candidates = append(candidates, scored{entry: entry, score: score})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory entries: %w", err)
	}

	// Highest overlap first, ties broken by recency (scan order)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	entries := make([]*engine.MemoryEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, c.entry)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// scanner abstracts sql.Row and sql.Rows for plan scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanPlan(row scanner) (*engine.Plan, error) {
	plan := &engine.Plan{}
	var active int
	var steps string

	err := row.Scan(
		&plan.ID,
		&plan.GoalID,
		&plan.Version,
		&active,
		&steps,
		&plan.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.Active = active != 0
	if err := json.Unmarshal([]byte(steps), &plan.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return plan, nil
}

func marshalSteps(steps []*engine.Step) (string, error) {
	if steps == nil {
		steps = []*engine.Step{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal steps: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func overlap(queryTerms []string, keywords []string) int {
	if len(queryTerms) == 0 || len(keywords) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	score := 0
	for _, t := range queryTerms {
		if _, ok := set[t]; ok {
			score++
		}
	}
	return score
}

var _ engine.Store = (*SQLiteStore)(nil)
