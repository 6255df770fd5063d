package main

import (
	"fmt"
	"log"
	"os"

	"github.com/rentum/rentum/internal/app/config"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := logger.NewFromString(cfg.LogLevel)

	// Connect to database
	db, err := database.New(cfg.GetDatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		err = runMigrations(db, logger)
	case "down":
		logger.Warn("Rollback not implemented - use 'reset' to recreate schema")
	case "reset":
		err = resetDatabase(db, logger)
	case "seed":
		err = seedDatabase(db, logger)
	case "status":
		migrationStatus(db, logger)
	default:
		logger.Error("Unknown command", "command", command)
		printUsage()
	}
	if err != nil {
		logger.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  up     - Run all pending migrations")
	fmt.Println("  down   - Rollback the last migration")
	fmt.Println("  reset  - Drop all tables and recreate them")
	fmt.Println("  seed   - Seed the database with demo users and properties")
	fmt.Println("  status - Show migration status")
}

func runMigrations(db *database.DB, logger *logger.Logger) error {
	logger.Info("Running database migrations...")

	// Auto-migrate all models
	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes for better performance
	if err := createIndexes(db); err != nil {
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func resetDatabase(db *database.DB, logger *logger.Logger) error {
	logger.Info("Resetting database...")

	// Drop in reverse order so dependents go first
	all := models.GetAllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", tableName(db, all[i]), err)
		}
	}

	// Recreate all tables
	if err := runMigrations(db, logger); err != nil {
		return err
	}

	logger.Info("Database reset completed")
	return nil
}

type demoUser struct {
	name  string
	email string
	role  models.UserRole
}

var demoUsers = []demoUser{
	{"Alice Johnson", "alice@demo.com", models.UserRoleTenant},
	{"Bob Smith", "bob@demo.com", models.UserRoleLandlord},
	{"Carol Davis", "carol@demo.com", models.UserRoleTenant},
	{"David Wilson", "david@demo.com", models.UserRoleLandlord},
}

// demoProperties maps an owner email to the address of their property
var demoProperties = []struct {
	ownerEmail string
	address    string
}{
	{"bob@demo.com", "123 Main St"},
	{"david@demo.com", "456 Oak Ave"},
}

// seedDatabase is idempotent: rerunning it finds the existing rows
func seedDatabase(db *database.DB, logger *logger.Logger) error {
	logger.Info("Seeding database with demo data...")

	owners := make(map[string]*models.User, len(demoUsers))
	for _, demo := range demoUsers {
		user := &models.User{}
		if err := db.Where(models.User{Email: demo.email}).
			Attrs(models.User{Name: demo.name, Role: demo.role}).
			FirstOrCreate(user).Error; err != nil {
			return fmt.Errorf("failed to create user %s: %w", demo.email, err)
		}
		owners[demo.email] = user
	}

	for _, demo := range demoProperties {
		owner := owners[demo.ownerEmail]
		property := &models.Property{}
		if err := db.Where(models.Property{OwnerID: owner.ID, Address: demo.address}).
			Attrs(models.Property{
				Details:         models.StringMap{},
				FieldConfidence: models.ConfidenceMap{},
				FieldSources:    models.StringMap{},
			}).
			FirstOrCreate(property).Error; err != nil {
			return fmt.Errorf("failed to create property %s: %w", demo.address, err)
		}
	}

	logger.Info("Database seeding completed successfully",
		"users", len(demoUsers),
		"properties", len(demoProperties))
	return nil
}

func migrationStatus(db *database.DB, logger *logger.Logger) map[string]bool {
	logger.Info("Checking migration status...")

	status := make(map[string]bool)
	for _, model := range models.GetAllModels() {
		name := tableName(db, model)
		exists := db.Migrator().HasTable(model)
		status[name] = exists

		label := "✓ exists"
		if !exists {
			label = "✗ missing"
		}
		logger.Info("Table status", "table", name, "status", label)
	}
	return status
}

func tableName(db *database.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db.DB}
	if err := stmt.Parse(model); err != nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}

func createIndexes(db *database.DB) error {
	// Composite indexes for the expiry sweep and per-user listings
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_review_requests_status_created ON review_requests(status, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_document_scans_user_created ON document_scans(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_review_responses_subject_created ON review_responses(subject_id, created_at)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
