// Package sqlxrepos implements the domain repositories on PostgreSQL.
//
// Every method takes an optional core.DBExecutor so a service can run a group
// of calls inside one transaction; with none given the repository's own
// connection pool is used.
package sqlxrepos

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/darasahub/darasa/core"
)

// ext resolves the executor for a call. A *sqlx.Tx passed through the
// core.DBExecutor variadic takes precedence over the pool.
func ext(db *sqlx.DB, exec ...core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 {
		if e, ok := exec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db
}

func pqStringArray(ss []string) pq.StringArray { return pq.StringArray(ss) }

func pqInt64Array(is []int64) pq.Int64Array { return pq.Int64Array(is) }
