package main

import (
	"log"

	"clinical-coding-be/internal/config"
	"clinical-coding-be/internal/constant"
	"clinical-coding-be/internal/model"
	"clinical-coding-be/pkg/database"
	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/embedding/jina"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// sampleCase is one starter corpus entry. Codes are stored as the JSON the
// application writes, so seeded rows are indistinguishable from ingested ones.
type sampleCase struct {
	Narrative    string
	CodesJSON    string
	SourceIntent string
}

var sampleCases = []sampleCase{
	{
		Narrative:    "Patient admitted with crushing substernal chest pain radiating to the left arm. Troponin elevated. Diagnosed with acute myocardial infarction, unspecified site.",
		CodesJSON:    `[{"code":"410.9","code_system":"ICD9"}]`,
		SourceIntent: "diagnostic",
	},
	{
		Narrative:    "Follow-up visit for essential hypertension. Blood pressure remains elevated at 156/94 despite lisinopril. Medication dose increased.",
		CodesJSON:    `[{"code":"401.9","code_system":"ICD9"}]`,
		SourceIntent: "diagnostic",
	},
	{
		Narrative:    "Established patient office visit, expanded problem focused history and examination, low complexity medical decision making.",
		CodesJSON:    `[{"code":"99213","code_system":"CPT"}]`,
		SourceIntent: "procedural",
	},
	{
		Narrative:    "Routine electrocardiogram with at least 12 leads performed, with interpretation and report. Normal sinus rhythm.",
		CodesJSON:    `[{"code":"93000","code_system":"CPT"}]`,
		SourceIntent: "procedural",
	},
	{
		Narrative:    "Type II diabetes mellitus without mention of complication, not stated as uncontrolled. Continue metformin, recheck A1c in three months.",
		CodesJSON:    `[{"code":"250.00","code_system":"ICD9"}]`,
		SourceIntent: "diagnostic",
	},
	{
		Narrative:    "Patient reports intermittent chest pain, unspecified character, at rest and on exertion. Cardiac workup unremarkable so far.",
		CodesJSON:    `[{"code":"786.50","code_system":"ICD9"}]`,
		SourceIntent: "symptom",
	},
}

func main() {
	cfg := config.Load()

	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// The seeder embeds directly instead of going through the consumer, so a
	// fresh database is retrievable the moment seeding finishes.
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
	}

	log.Println("Seeding Coded Case Corpus...")

	for i, sc := range sampleCases {
		// Check if a case with this narrative already exists
		var existing model.CodedCase
		if err := db.Where("narrative = ?", sc.Narrative).First(&existing).Error; err == nil {
			log.Printf("Case at position %d already exists, skipping...", i+1)
			continue
		}

		codedCase := model.CodedCase{
			Id:            uuid.New(),
			Narrative:     sc.Narrative,
			AssignedCodes: datatypes.JSON([]byte(sc.CodesJSON)),
			SourceIntent:  sc.SourceIntent,
			Position:      int64(i + 1),
		}

		if err := db.Create(&codedCase).Error; err != nil {
			log.Printf("Error creating case at position %d: %v", i+1, err)
			continue
		}

		res, err := embeddingProvider.Generate(sc.Narrative, constant.TaskTypeRetrievalDocument)
		if err != nil {
			log.Printf("Error embedding case at position %d: %v (case stored, not retrievable)", i+1, err)
			continue
		}

		caseEmbedding := model.CaseEmbedding{
			Id:             uuid.New(),
			Document:       sc.Narrative,
			EmbeddingValue: pgvector.NewVector(res.Embedding.Values),
			CaseId:         codedCase.Id,
			ChunkIndex:     0,
		}

		if err := db.Create(&caseEmbedding).Error; err != nil {
			log.Printf("Error storing embedding for case at position %d: %v", i+1, err)
			continue
		}

		log.Printf("Created case %d: %s...", i+1, sc.Narrative[:50])
	}

	log.Println("Corpus seeding completed!")
}
