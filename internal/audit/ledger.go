// Package audit persists every committed external operation to Postgres. The
// ledger is append-only and exists for after-the-fact reconciliation with the
// clinical record; the orchestration core never reads it back.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/goccy/go-json"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/plenacare/plantao/pkg/models"
)

// CommittedOperation is one executed external operation.
type CommittedOperation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"index;not null"`
	Flow      string    `gorm:"type:text;check:flow IN ('operacional', 'agenda', 'clinico', 'finalizacao');index;not null"`
	Payload   string    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"index:idx_committed_operations_created,sort:desc;not null"`
}

func (CommittedOperation) TableName() string { return "committed_operations" }

// BeforeCreate hook to ensure the timestamp is set.
func (c *CommittedOperation) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Ledger is the Postgres-backed audit log. It implements pending.Recorder.
type Ledger struct {
	db *gorm.DB
}

// Config holds ledger connection settings.
type Config struct {
	DSN      string
	MaxConns int
	LogLevel logger.LogLevel
}

// NewLedger opens the connection and runs migrations.
func NewLedger(cfg Config) (*Ledger, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap audit database: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run audit migrations: %w", err)
	}

	return &Ledger{db: db}, nil
}

func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_committed_operations",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CommittedOperation{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("committed_operations")
			},
		},
	})
	return m.Migrate()
}

// RecordCommit appends one committed operation.
func (l *Ledger) RecordCommit(ctx context.Context, sessionID string, flow models.Flow, payload map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	row := &CommittedOperation{
		SessionID: sessionID,
		Flow:      string(flow),
		Payload:   string(data),
	}
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// RecentForSession returns the newest committed operations for one session,
// for operator tooling.
func (l *Ledger) RecentForSession(ctx context.Context, sessionID string, limit int) ([]CommittedOperation, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []CommittedOperation
	err := l.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query audit rows: %w", err)
	}
	return rows, nil
}

// Close releases the connection pool.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
