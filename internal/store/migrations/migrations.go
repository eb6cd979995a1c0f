// Package migrations embeds the ordered goose migrations for the local
// database. Each migration runs at most once per database file; goose tracks
// applied names in its version table.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
