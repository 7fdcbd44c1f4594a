package migrations

import "embed"

// FS contains embedded SQLite migrations for forms storage.
//
//go:embed *.sql
var FS embed.FS
