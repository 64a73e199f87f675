package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/yourusername/fpl-insights-backend/internal/models"
)

type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(databaseURL string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	fmt.Println("Successfully connected to PostgreSQL")
	return &PostgresRepo{DB: db}, nil
}

func (r *PostgresRepo) HealthCheck() bool {
	err := r.DB.Ping()
	return err == nil
}

// RunMigrations runs the schema migrations
func (r *PostgresRepo) RunMigrations() error {
	schema := `
		CREATE TABLE IF NOT EXISTS insight_reports (
			id UUID PRIMARY KEY,
			entry_id BIGINT NOT NULL,
			gameweek_min INT NOT NULL,
			gameweek_max INT NOT NULL,
			payload JSONB NOT NULL,
			generated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_reports_entry ON insight_reports(entry_id);
		CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON insight_reports(generated_at);
	`

	_, err := r.DB.Exec(schema)
	return err
}

// SaveReport archives one computed insights payload.
func (r *PostgresRepo) SaveReport(rec *models.ReportRecord) error {
	query := `INSERT INTO insight_reports (id, entry_id, gameweek_min, gameweek_max, payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.DB.Exec(query, rec.ID, rec.EntryID, rec.GameweekMin, rec.GameweekMax, rec.Payload, rec.GeneratedAt)
	return err
}

// ListReports returns the most recent archived reports for an entry,
// newest first.
func (r *PostgresRepo) ListReports(entryID, limit int) ([]models.ReportRecord, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	query := `SELECT id, entry_id, gameweek_min, gameweek_max, payload, generated_at
		FROM insight_reports
		WHERE entry_id = $1
		ORDER BY generated_at DESC
		LIMIT $2`

	rows, err := r.DB.Query(query, entryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.ReportRecord
	for rows.Next() {
		var rec models.ReportRecord
		if err := rows.Scan(&rec.ID, &rec.EntryID, &rec.GameweekMin, &rec.GameweekMax, &rec.Payload, &rec.GeneratedAt); err != nil {
			return nil, err
		}
		reports = append(reports, rec)
	}
	return reports, rows.Err()
}
