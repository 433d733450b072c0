package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - runtime overrides of the pipeline options
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Claps table - one row per emitted clap event
		`CREATE TABLE IF NOT EXISTS claps (
			id TEXT PRIMARY KEY,
			occurred_at DATETIME NOT NULL,
			wrist_distance REAL NOT NULL,
			shoulder_width REAL NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_claps_occurred_at ON claps(occurred_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
