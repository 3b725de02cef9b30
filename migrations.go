package terranote

import "embed"

// MigrationsFS holds the SQL migrations for the postgres event log.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
