package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// Connect opens the database described by dsn. SQLite is used for file: and sqlite:// URLs
// and for paths ending in .db, PostgreSQL otherwise.
func Connect(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn must not be empty")
	}

	if isSQLite(dsn) {
		return ConnectSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	}
	return ConnectPostgres(dsn)
}

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// ConnectSQLite opens a SQLite database, mainly for local development. SQLite allows a
// single writer, so the pool is limited to one connection and writers queue in Go instead
// of failing with "database table is locked".
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the tables used by the interview API.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Question{},
		&models.QuestionSet{},
		&models.SetQuestion{},
		&models.AnswerNote{},
		&models.FollowUpQuestion{},
		&models.Evaluation{},
		&models.InterviewSummary{},
	)
}

func isSQLite(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "file:") ||
		strings.HasPrefix(lower, "sqlite://") ||
		strings.HasSuffix(lower, ".db") ||
		lower == ":memory:"
}
