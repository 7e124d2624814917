// Package migrations embeds the goose SQL migrations so the server can
// bring the audit schema up without a migrations directory on disk.
package migrations

import "embed"

// FS holds every *.sql migration.
//
//go:embed *.sql
var FS embed.FS
