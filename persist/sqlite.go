package persist

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/satishkumarchitti/AI-Chat-Bot/internal/localstate"
)

// SQLiteBackend stores records in the persisted_state table of a local
// SQLite file.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the state file at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := localstate.OpenSQLite(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open sqlite state")
	}
	if err := localstate.EnsureSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, pkgerrors.WithStack(err)
	}
	return &SQLiteBackend{db: db, now: time.Now}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context, ns string) ([]byte, error) {
	var record []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT record FROM persisted_state WHERE namespace = ?`, ns,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load persisted state")
	}
	return record, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, ns string, record []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO persisted_state(namespace, record, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		ns, record, b.now().UTC(),
	)
	return pkgerrors.Wrap(err, "save persisted state")
}

func (b *SQLiteBackend) Delete(ctx context.Context, ns string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM persisted_state WHERE namespace = ?`, ns)
	return pkgerrors.Wrap(err, "delete persisted state")
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }
