// Package migrations embeds the PostgreSQL schema for the relational sink.
package migrations

import "embed"

// FS holds the golang-migrate source files.
//
//go:embed *.sql
var FS embed.FS
