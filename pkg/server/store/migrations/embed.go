// Package migrations embeds the postgres schema migrations golang-migrate
// applies before the server accepts traffic, following the teacher's
// pkg/store/metadata/postgres/migrate.go iofs-embed pattern.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
