package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_orchestrator_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// ArchiveSession writes the session row and its outbox event in one transaction.
func (r *Repository) ArchiveSession(ctx context.Context, rec *SessionRecord, payload json.RawMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO checkout_sessions_archive
	          (id, user_id, status, state, order_id, order_type, payment_attempts, final_total, session, archived_at)
	          VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`
	_, insertErr := tx.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Status,
		rec.State,
		rec.OrderID,
		rec.OrderType,
		rec.PaymentAttempts,
		rec.FinalTotal,
		[]byte(rec.Session),
		rec.ArchivedAt)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyArchived
		}
		return fmt.Errorf("insert archived session: %w", insertErr)
	}

	outbox := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	           VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, outbox, rec.ID, rec.Status.EventType(), []byte(payload), rec.ArchivedAt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func (r *Repository) GetArchivedSession(ctx context.Context, id string) (*SessionRecord, error) {
	query := `SELECT id, user_id, status, state, COALESCE(order_id, ''), order_type, payment_attempts, final_total, session, archived_at
	          FROM checkout_sessions_archive WHERE id = $1`

	var rec SessionRecord
	var session []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Status,
		&rec.State,
		&rec.OrderID,
		&rec.OrderType,
		&rec.PaymentAttempts,
		&rec.FinalTotal,
		&session,
		&rec.ArchivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query archived session: %w", err)
	}
	rec.Session = session
	return &rec, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateId, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		ev.Payload = payload
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("outbox event %d not found", id)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
