package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Primary keys are text: identifiers are generated by clients and imported
// backups may carry ids that are not UUIDs.
var migrationStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'project_status') THEN
			CREATE TYPE project_status AS ENUM ('active', 'paused', 'completed');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contractors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tax_id TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		file_number TEXT NOT NULL,
		budget NUMERIC(18,2) NOT NULL DEFAULT 0,
		advance_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		advance_recovery_rate NUMERIC(7,4) NOT NULL DEFAULT 0,
		contractor_id TEXT NOT NULL REFERENCES contractors(id),
		start_date DATE,
		status project_status NOT NULL DEFAULT 'active'
	);`,
	`CREATE TABLE IF NOT EXISTS certificates (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		period TEXT NOT NULL,
		physical_progress NUMERIC(7,2) NOT NULL DEFAULT 0,
		financial_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		advance_amortization NUMERIC(24,8) NOT NULL DEFAULT 0,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		payment_date DATE NOT NULL,
		reference TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT ''
	);`,
	`ALTER TABLE profiles ADD COLUMN IF NOT EXISTS report_logo TEXT, ADD COLUMN IF NOT EXISTS report_legend TEXT;`,
	`ALTER TABLE projects ADD COLUMN IF NOT EXISTS advance_amount NUMERIC(18,2) NOT NULL DEFAULT 0;`,
	`ALTER TABLE projects ADD COLUMN IF NOT EXISTS advance_recovery_rate NUMERIC(7,4) NOT NULL DEFAULT 0;`,
	`ALTER TABLE certificates ADD COLUMN IF NOT EXISTS advance_amortization NUMERIC(24,8) NOT NULL DEFAULT 0;`,
	// amount (scale 2) times rate (scale 4) over 100 needs scale 8 to be stored as computed
	`ALTER TABLE certificates ALTER COLUMN advance_amortization TYPE NUMERIC(24,8);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_contractor_id ON projects (contractor_id);`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_project_id ON certificates (project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_project_id ON payments (project_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
