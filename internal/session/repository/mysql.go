package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/session/domain"
)

// MySQLRepository stores sessions in the phienlamviec table. Reads and writes
// use direct SQL; Validate goes through the stored procedure so the
// authoritative check stays identical to every other database client's.
type MySQLRepository struct {
	db    *sql.DB
	procs *procedure.Client
}

// NewMySQLRepository returns a Repository backed by db.
func NewMySQLRepository(db *sql.DB, procs *procedure.Client) *MySQLRepository {
	return &MySQLRepository{db: db, procs: procs}
}

func (r *MySQLRepository) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	const q = `
		SELECT session_id, user_id, ip_address, is_active, created_at, last_activity
		FROM phienlamviec
		WHERE session_id = ?`

	var s domain.Session
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
		&s.SessionID, &s.UserID, &s.IPAddress, &s.IsActive, &s.CreatedAt, &s.LastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %v", ErrUnavailable, err)
	}
	return &s, nil
}

func (r *MySQLRepository) Create(ctx context.Context, sessionID string, userID int64, ipAddress string) error {
	const q = `
		INSERT INTO phienlamviec (session_id, user_id, ip_address, is_active, created_at, last_activity)
		VALUES (?, ?, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE last_activity = NOW()`

	if _, err := r.db.ExecContext(ctx, q, sessionID, userID, ipAddress); err != nil {
		return fmt.Errorf("%w: create session: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLRepository) Reactivate(ctx context.Context, sessionID string) error {
	const q = `
		UPDATE phienlamviec
		SET is_active = 1, last_activity = NOW()
		WHERE session_id = ?`

	if _, err := r.db.ExecContext(ctx, q, sessionID); err != nil {
		return fmt.Errorf("%w: reactivate session: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLRepository) RebindUser(ctx context.Context, sessionID string, userID int64) error {
	const q = `
		UPDATE phienlamviec
		SET user_id = ?, last_activity = NOW()
		WHERE session_id = ?`

	if _, err := r.db.ExecContext(ctx, q, userID, sessionID); err != nil {
		return fmt.Errorf("%w: rebind session: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLRepository) Deactivate(ctx context.Context, sessionID string) error {
	const q = `
		UPDATE phienlamviec
		SET is_active = 0
		WHERE session_id = ?`

	if _, err := r.db.ExecContext(ctx, q, sessionID); err != nil {
		return fmt.Errorf("%w: deactivate session: %v", ErrUnavailable, err)
	}
	return nil
}

// ExpireIdle deactivates sessions idle for longer than ttl and returns the
// number of rows touched. Run periodically; it is the application-side half
// of the store's TTL policy.
func (r *MySQLRepository) ExpireIdle(ctx context.Context, ttl time.Duration) (int64, error) {
	const q = `
		UPDATE phienlamviec
		SET is_active = 0
		WHERE is_active = 1 AND last_activity < NOW() - INTERVAL ? SECOND`

	res, err := r.db.ExecContext(ctx, q, int64(ttl.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("%w: expire idle sessions: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: expire idle sessions: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (r *MySQLRepository) Validate(ctx context.Context, sessionID string) (*domain.Validation, error) {
	res, err := r.procs.ValidateSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, procedure.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return &domain.Validation{
		Valid:         res.Valid,
		UserID:        res.UserID,
		Role:          res.Role,
		InsuranceType: res.InsuranceType,
	}, nil
}
