// Package migrations embeds the Postgres schema for the account directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
