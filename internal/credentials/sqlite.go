package credentials

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// usersQuery reads the table the server expects in a users database:
//
//	CREATE TABLE users(name TEXT PRIMARY KEY, secret TEXT NOT NULL);
const usersQuery = `SELECT name, secret FROM users;`

// LoadSQLite reads every row of the users table of the SQLite database at
// path. The database is opened read-only and closed before returning.
func LoadSQLite(ctx context.Context, path string) (*Table, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrapf(err, "open users database %s", path)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, errors.Wrapf(err, "open users database %s", path)
	}

	rows, err := db.QueryContext(ctx, usersQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer rows.Close()

	users := make(map[string]string)
	for rows.Next() {
		var name, secret string
		if err := rows.Scan(&name, &secret); err != nil {
			return nil, errors.Wrap(err, "scan user row")
		}
		users[name] = secret
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read users")
	}
	return New(users), nil
}
