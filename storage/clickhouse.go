package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
	"github.com/thisisjab/rulezilla/fault"
)

type ClickHouseStorageConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

type ClickHouseStorage struct {
	conn clickhouse.Conn
	cfg  ClickHouseStorageConfig
}

func NewClickHouseStorage(cfg ClickHouseStorageConfig) (*ClickHouseStorage, error) {
	if len(cfg.Addr) == 0 {
		return nil, errors.New("at least one clickhouse address is required")
	}

	return &ClickHouseStorage{cfg: cfg}, nil
}

func setupClickHouseTables(ctx context.Context, conn driver.Conn) error {
	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rules (
			id UUID,
			name String,
			rule_string String,
			created_at DateTime64(3)
		)
		ENGINE = MergeTree
		ORDER BY (created_at, id)
	`)
	if err != nil {
		return err
	}

	// One row per rule per record. error is empty for successful evaluations.
	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS evaluations (
			id UUID,
			record_id UUID,
			source String,
			rule_name String,
			eligible Bool,
			error String,
			evaluated_at DateTime64(3)
		)
		ENGINE = MergeTree
		ORDER BY (rule_name, evaluated_at, id)
		PARTITION BY toYYYYMM(evaluated_at)
	`)
	return err
}

func (s *ClickHouseStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: s.cfg.Addr,
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.conn = conn

	// Since we only have two tables, for now we don't need to introduce go-migrate
	if err := setupClickHouseTables(ctx, conn); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

func (s *ClickHouseStorage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Close()
}

func (s *ClickHouseStorage) CreateRule(ctx context.Context, rule entity.Rule) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.conn.Exec(ctx,
		"INSERT INTO rules (id, name, rule_string, created_at) VALUES (?, ?, ?, ?)",
		rule.ID, rule.Name, rule.RuleString, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("couldn't insert rule: %w", err)
	}

	return nil
}

func (s *ClickHouseStorage) GetRule(ctx context.Context, id uuid.UUID) (entity.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var r entity.Rule
	err := s.conn.QueryRow(ctx,
		"SELECT id, name, rule_string, created_at FROM rules WHERE id = ? LIMIT 1", id,
	).Scan(&r.ID, &r.Name, &r.RuleString, &r.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return entity.Rule{}, fault.NotFound("Rule", id)
	}
	if err != nil {
		return entity.Rule{}, fmt.Errorf("couldn't query rule: %w", err)
	}

	return r, nil
}

func (s *ClickHouseStorage) ListRules(ctx context.Context) ([]entity.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.conn.Query(ctx, "SELECT id, name, rule_string, created_at FROM rules ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("couldn't query rules: %w", err)
	}
	defer rows.Close()

	var rules []entity.Rule
	for rows.Next() {
		var r entity.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.RuleString, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("couldn't scan rule: %w", err)
		}
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("couldn't read rules: %w", err)
	}

	return rules, nil
}

func (s *ClickHouseStorage) StoreEvaluations(ctx context.Context, evaluations ...entity.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO evaluations (id, record_id, source, rule_name, eligible, error, evaluated_at)")
	if err != nil {
		return fmt.Errorf("couldn't prepare batch: %w", err)
	}

	for _, e := range evaluations {
		err = batch.Append(e.ID, e.RecordID, e.Source, e.RuleName, e.Eligible, e.Error, e.EvaluatedAt)

		if err != nil {
			return fmt.Errorf("couldn't append evaluation to batch: %w", err)
		}
	}

	err = batch.Send()
	if err != nil {
		return fmt.Errorf("couldn't send batch: %w", err)
	}

	return nil
}
