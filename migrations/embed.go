// Package migrations embeds the schema so the binary can migrate itself.
package migrations

import "embed"

// FS holds the ordered up/down SQL files.
//
//go:embed *.sql
var FS embed.FS
