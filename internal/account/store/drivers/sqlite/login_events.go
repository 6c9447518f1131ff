package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

type loginEventsRepo struct {
	db dbtx
}

const eventColumns = `id, email, ip, country, success, user_agent, timestamp`

func (r *loginEventsRepo) Append(ctx context.Context, ev domain.LoginEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_events (id, email, ip, country, success, user_agent, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Email, ev.IP, ev.Country, ev.Success, ev.UserAgent, ev.Timestamp.UTC())
	return err
}

func (r *loginEventsRepo) ListSince(ctx context.Context, email string, since time.Time) ([]domain.LoginEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM login_events
		 WHERE email = ? AND timestamp >= ?
		 ORDER BY timestamp DESC`,
		email, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *loginEventsRepo) ListRecent(ctx context.Context, email string, limit int) ([]domain.LoginEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM login_events
		 WHERE email = ? ORDER BY timestamp DESC`
	args := []any{email}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.LoginEvent, error) {
	var events []domain.LoginEvent
	for rows.Next() {
		var (
			ev domain.LoginEvent
			ua sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Email, &ev.IP, &ev.Country, &ev.Success, &ua, &ev.Timestamp); err != nil {
			return nil, err
		}
		if ua.Valid {
			ev.UserAgent = ua.String
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
