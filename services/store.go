package services

import (
	"database/sql"
	"errors"
	"strings"

	"cave-store/internal/status"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// Store is the slice of core.App the cave services talk to. Every operation
// is a blocking round-trip to the backing store; no state is cached between
// calls. core.App satisfies it directly, tests use an in-memory fake.
type Store interface {
	FindRecordById(collectionModelOrIdentifier any, recordId string, optFilters ...func(q *dbx.SelectQuery) error) (*core.Record, error)
	FindAllRecords(collectionModelOrIdentifier any, exprs ...dbx.Expression) ([]*core.Record, error)
	CountRecords(collectionModelOrIdentifier any, exprs ...dbx.Expression) (int64, error)
	FindCollectionByNameOrId(nameOrId string) (*core.Collection, error)
	Save(model core.Model) error
	Delete(model core.Model) error
}

// notFound maps the store's "zero rows" answer to the cave taxonomy and
// leaves every other failure untouched.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is the sqlite unique-index error
// raised when a concurrent insert won the open-session slot.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
