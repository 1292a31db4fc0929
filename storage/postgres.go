package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"davos_stays/models"
)

// PostgresSink writes property rows straight into the database behind
// Supabase, for environments that expose the connection string.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresSink(ctx context.Context, connString, table string) (*PostgresSink, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if table == "" {
		table = "properties"
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

func (s *PostgresSink) Close() {
	s.pool.Close()
}

func (s *PostgresSink) Name() string {
	return "postgres"
}

// Submit inserts rows inside one transaction; either all rows land or none.
func (s *PostgresSink) Submit(ctx context.Context, rows []models.PropertyRow) (models.SubmitResult, error) {
	var result models.SubmitResult
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			name, slug, address, city, rooms, bathrooms, capacity,
			distance_to_congress, cleaning_fee, security_deposit, active,
			featured, amenities, description, short_description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		pgx.Identifier{s.table}.Sanitize())

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query,
			r.Name, r.Slug, r.Address, r.City, r.Rooms, r.Bathrooms, r.Capacity,
			r.DistanceToCongress, r.CleaningFee, r.SecurityDeposit, r.Active,
			r.Featured, r.Amenities, r.Description, r.ShortDescription)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return result, fmt.Errorf("insert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}

	result.Inserted = len(rows)
	result.Batches = 1
	return result, nil
}
