// Package dbmigrations exposes embedded SQL migrations for lensvault binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into lensvault binaries.
//
//go:embed *.sql
var Files embed.FS
