//go:build !libsql

package db

import "fmt"

func remoteDriver(dsn string) (string, error) {
	return "", fmt.Errorf("remote dsn %q requires a build with -tags libsql", dsn)
}
