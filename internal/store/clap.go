package store

import (
	"database/sql"
	"time"
)

// Clap is a recorded clap event.
type Clap struct {
	ID            string    `json:"id"`
	OccurredAt    time.Time `json:"occurred_at"`
	WristDistance float64   `json:"wrist_distance"`
	ShoulderWidth float64   `json:"shoulder_width"`
}

// ClapRepository records clap events.
type ClapRepository struct {
	db *sql.DB
}

// Claps returns the clap repository for this store.
func (s *Store) Claps() *ClapRepository {
	return &ClapRepository{db: s.db}
}

// Create inserts a clap.
func (r *ClapRepository) Create(c *Clap) error {
	_, err := r.db.Exec(
		`INSERT INTO claps (id, occurred_at, wrist_distance, shoulder_width) VALUES (?, ?, ?, ?)`,
		c.ID, c.OccurredAt.UTC(), c.WristDistance, c.ShoulderWidth,
	)
	return err
}

// List returns up to limit claps, newest first. limit <= 0 means no limit.
func (r *ClapRepository) List(limit int) ([]*Clap, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, occurred_at, wrist_distance, shoulder_width
		 FROM claps ORDER BY occurred_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claps []*Clap
	for rows.Next() {
		c := &Clap{}
		if err := rows.Scan(&c.ID, &c.OccurredAt, &c.WristDistance, &c.ShoulderWidth); err != nil {
			return nil, err
		}
		claps = append(claps, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return claps, nil
}

// Count returns the number of recorded claps.
func (r *ClapRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM claps`).Scan(&n)
	return n, err
}

// DeleteBefore removes claps older than t and returns how many were removed.
func (r *ClapRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM claps WHERE occurred_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
