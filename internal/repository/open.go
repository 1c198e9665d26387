package repository

import "context"

// Open returns a migrated PostgreSQL store for databaseURL, or an in-memory
// store when databaseURL is empty. The returned close func is never nil.
func Open(ctx context.Context, databaseURL string) (PaymentRepository, func() error, error) {
	if databaseURL == "" {
		return NewMemoryRepository(), func() error { return nil }, nil
	}
	db, err := NewPostgresDB(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo := NewPostgresRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}
