// Package migrations embeds the gateway's SQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
