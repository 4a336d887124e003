// Package migrations holds the database schema history applied by goose.
package migrations

import "embed"

// Migrations is the embedded set of SQL migration files.
//
//go:embed *.sql
var Migrations embed.FS
