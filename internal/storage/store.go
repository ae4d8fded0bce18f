// Package storage implements the relational persistence layer for the four
// business entities behind the dialog engine.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
)

// Store provides CRUD primitives over PostgreSQL.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "storage"}),
	}
}

// buildUpdateSet renders "col1 = $1, col2 = $2" from the subset of fields
// present in data whose keys appear in allowed. Keys are sorted so the
// generated SQL is deterministic. Returns the clause, the ordered args, and
// false when no updatable field was supplied.
func buildUpdateSet(data map[string]interface{}, allowed []string) (string, []interface{}, bool) {
	keys := make([]string, 0, len(data))
	for k := range data {
		for _, a := range allowed {
			if k == a {
				keys = append(keys, k)
				break
			}
		}
	}
	if len(keys) == 0 {
		return "", nil, false
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for i, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, data[k])
	}
	return strings.Join(parts, ", "), args, true
}

func (s *Store) queryErr(entity string, err error) error {
	s.logger.Error("query failed", map[string]interface{}{
		"entity": entity,
		"error":  err.Error(),
	})
	return errors.NewQueryExecutionFailedError(entity, err)
}

func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return tx, nil
}
