// Package migrations embeds and applies the schema for the observation
// archive (PostgreSQL) and the feature dataset (ClickHouse).
package migrations

import "embed"

// PostgresFS holds the observation and quality-report table migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the feature-row table migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
