package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/model"
)

// Init opens the database for the configured driver, sizes the pool and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	ApplyPool(sqlDB, cfg)

	log.Println("Running database migrations...")
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnablePgDDL && cfg.Driver == "postgres" {
		log.Println("Applying postgres-specific constraints and range indexes...")
		if err := applyPostgresDDL(db); err != nil {
			log.Printf("Warning: failed to apply some postgres DDL: %v. Continuing without them.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// ApplyPool applies the pool limits from cfg. It is also used on config reload.
func ApplyPool(sqlDB *sql.DB, cfg *config.DatabaseConfig) {
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

type checkConstraint struct {
	table string
	name  string
	check string
}

var pgCheckConstraints = []checkConstraint{
	{table: "class_sessions", name: "class_sessions_window_valid", check: "starts_at < ends_at"},
	{table: "class_sessions", name: "class_sessions_capacity_valid", check: "capacity >= 0"},
	{table: "unavailability_windows", name: "unavailability_windows_valid", check: "starts_at < ends_at"},
}

var pgIndexes = []string{
	// At most one confirmed booking per client and session.
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_one_confirmed_per_client ON bookings " +
		"(session_id, client_id) WHERE status = 'confirmed';",

	// Half-open ranges match the overlap test the conflict detector runs.
	"CREATE INDEX IF NOT EXISTS idx_class_sessions_teacher_window ON class_sessions " +
		"USING GIST (teacher_id, tstzrange(starts_at, ends_at, '[)'));",
	"CREATE INDEX IF NOT EXISTS idx_unavailability_teacher_window ON unavailability_windows " +
		"USING GIST (teacher_id, tstzrange(starts_at, ends_at, '[)'));",
}

// applyPostgresDDL is safe to run on every start. A failing statement does not
// stop the ones after it; all failures are returned together.
func applyPostgresDDL(db *gorm.DB) error {
	var errs []error

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist;").Error; err != nil {
		errs = append(errs, fmt.Errorf("create extension btree_gist: %w", err))
	}

	for _, c := range pgCheckConstraints {
		var n int64
		if err := db.Raw("SELECT count(*) FROM pg_constraint WHERE conname = ?", c.name).Scan(&n).Error; err != nil {
			errs = append(errs, fmt.Errorf("look up constraint %s: %w", c.name, err))
			continue
		}
		if n > 0 {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);", c.table, c.name, c.check)
		if err := db.Exec(ddl).Error; err != nil {
			errs = append(errs, fmt.Errorf("DDL failed on %q: %w", ddl, err))
		}
	}

	for _, ddl := range pgIndexes {
		if err := db.Exec(ddl).Error; err != nil {
			errs = append(errs, fmt.Errorf("DDL failed on %q: %w", ddl, err))
		}
	}
	return errors.Join(errs...)
}
