package main

import (
	"log"
	"os"

	"clinical-coding-be/internal/model"
	"clinical-coding-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting Authoritative GORM Migration...")

	// 3. Pre-Migration: Extensions (Things GORM AutoMigrate doesn't do)
	log.Println("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate All Models (The Core Task)
	log.Println("Step 2: Running AutoMigrate...")

	models := []interface{}{
		&model.CodedCase{},
		&model.CaseEmbedding{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: Indexes & Views
	log.Println("Step 3: Creating Vector Index and Views...")

	postMigrationSQL := []string{
		// ANN index for the nearest-neighbour search. ivfflat needs data to
		// build useful lists; rerun after bulk ingestion for best recall.
		`CREATE INDEX IF NOT EXISTS idx_case_embeddings_embedding
		 ON case_embeddings USING ivfflat (embedding_value vector_cosine_ops) WITH (lists = 100);`,

		// View: retrievable_cases (live cases joined to their chunks)
		`CREATE OR REPLACE VIEW retrievable_cases AS
		 SELECT cc.id AS case_id, cc.narrative, cc.position, ce.chunk_index, ce.embedding_value AS embedding
		 FROM coded_cases cc JOIN case_embeddings ce ON cc.id = ce.case_id
		 WHERE cc.deleted_at IS NULL AND ce.deleted_at IS NULL;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
