package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `-- feature rows
CREATE TABLE IF NOT EXISTS feature_rows (id UInt64)
ENGINE = MergeTree ORDER BY id;

CREATE TABLE IF NOT EXISTS other (id UInt64) ENGINE = MergeTree ORDER BY id;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS feature_rows") {
		t.Errorf("Unexpected first statement: %q", stmts[0])
	}
	for _, stmt := range stmts {
		if strings.Contains(stmt, ";") {
			t.Errorf("Statement still contains semicolon: %q", stmt)
		}
		if strings.Contains(stmt, "--") {
			t.Errorf("Comment survived splitting: %q", stmt)
		}
	}
}

func TestSplitStatements_Empty(t *testing.T) {
	if stmts := splitStatements("-- only comments\n\n"); len(stmts) != 0 {
		t.Errorf("Expected no statements, got %v", stmts)
	}
}

func TestValidateSplittable(t *testing.T) {
	if err := validateSplittable("SELECT 'a;b'"); err == nil {
		t.Error("Expected error for semicolon inside string literal")
	}
	if err := validateSplittable("SELECT 'it''s fine'; SELECT 1;"); err != nil {
		t.Errorf("Escaped quote should pass: %v", err)
	}
	if err := validateSplittable("CREATE TABLE t (id UInt64);"); err != nil {
		t.Errorf("Plain SQL should pass: %v", err)
	}
}

func TestSQLFiles_Embedded(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		t.Fatalf("sqlFiles(postgres) failed: %v", err)
	}
	if len(pg) != 2 {
		t.Fatalf("Expected 2 postgres migrations, got %v", pg)
	}
	if pg[0] != "001_observations.sql" || pg[1] != "002_quality_reports.sql" {
		t.Errorf("Unexpected postgres migration order: %v", pg)
	}

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatalf("sqlFiles(clickhouse) failed: %v", err)
	}
	if len(ch) != 1 || ch[0] != "001_feature_rows.sql" {
		t.Errorf("Unexpected clickhouse migrations: %v", ch)
	}
}
