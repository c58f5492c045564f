//go:build !cgo_sqlite

package main

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

func initDB(path string) (*sql.DB, error) {
	dataSource := path
	if !strings.Contains(dataSource, "?") {
		dataSource += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return sql.Open("sqlite", dataSource)
}
