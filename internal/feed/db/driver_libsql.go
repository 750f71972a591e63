//go:build libsql

package db

import (
	_ "github.com/tursodatabase/go-libsql"
)

// remoteDriver selects the libSQL driver for hosted databases. Auth tokens
// travel in the DSN (?authToken=...).
func remoteDriver(dsn string) (string, error) {
	return "libsql", nil
}
