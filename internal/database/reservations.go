package database

import (
	"context"
	"fmt"

	"hvacbook/internal/domain"
)

func (db *DB) Reserved(ctx context.Context, date string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT time FROM reservations WHERE date = ? ORDER BY time`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations: %w", err)
	}
	defer rows.Close()

	times := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return times, nil
}

// TryReserve relies on UNIQUE(date, time): the insert is ignored when the
// pair exists, so the check and the write are one statement.
func (db *DB) TryReserve(ctx context.Context, date, clock string) error {
	result, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO reservations (date, time) VALUES (?, ?)`, date, clock)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// CountReservations returns the number of committed reservations.
func (db *DB) CountReservations(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}
