package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vehiclecare/voicebook/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, customer_name, customer_phone, vehicle_id, issue_type,
	service_center_name, service_center_phone, mode, status, started_at, ended_at,
	result_status, scheduled_date, scheduled_time, confirmation_number, failure_reason,
	created_at, updated_at`

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, customer_name, customer_phone, vehicle_id, issue_type,
			service_center_name, service_center_phone, mode, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'running', $9)
		 RETURNING `+sessionColumns,
		input.SessionID, input.CustomerName, input.CustomerPhone, input.VehicleID,
		input.IssueType, input.ServiceCenterName, input.ServiceCenterPhone,
		input.Mode, input.StartedAt)
	return scanSession(row)
}

func (r *PostgresRepository) SaveResult(ctx context.Context, input repository.SaveResultInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = $2, result_status = $3,
			scheduled_date = $4, scheduled_time = $5, confirmation_number = $6,
			failure_reason = $7, updated_at = NOW()
		 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.ResultStatus, input.ScheduledDate,
		input.ScheduledTime, input.ConfirmationNumber, input.FailureReason)
	return err
}

func (r *PostgresRepository) GetSessionByID(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`,
		sessionID)
	s, err := scanSession(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) CloseOrphanSessions(ctx context.Context, endedAt time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = $1,
			result_status = 'failed', failure_reason = 'process restarted during call', updated_at = NOW()
		 WHERE status = 'running'`,
		endedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) InsertTurn(ctx context.Context, input repository.InsertTurnInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_turns (session_id, speaker, content, turn_index, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.SessionID, input.Speaker, input.Content, input.TurnIndex, input.SpokenAt)
	return err
}

func (r *PostgresRepository) ListTurnsBySessionID(ctx context.Context, sessionID string) ([]repository.ConversationTurn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, speaker, content, turn_index, spoken_at, created_at
		 FROM conversation_turns WHERE session_id = $1 ORDER BY turn_index ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.ConversationTurn
	for rows.Next() {
		var t repository.ConversationTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Speaker, &t.Content, &t.TurnIndex, &t.SpokenAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var endedAt *time.Time
	err := row.Scan(&s.ID, &s.CustomerName, &s.CustomerPhone, &s.VehicleID, &s.IssueType,
		&s.ServiceCenterName, &s.ServiceCenterPhone, &s.Mode, &s.Status, &s.StartedAt, &endedAt,
		&s.ResultStatus, &s.ScheduledDate, &s.ScheduledTime, &s.ConfirmationNumber, &s.FailureReason,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}
