//go:build cgo_sqlite

package main

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

func initDB(path string) (*sql.DB, error) {
	dataSource := path
	if !strings.Contains(dataSource, "?") {
		dataSource += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return sql.Open("sqlite3", dataSource)
}
