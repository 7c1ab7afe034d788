package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/repository/contract"
	"clinical-coding-be/internal/repository/specification"
	"clinical-coding-be/internal/repository/unitofwork"
	"clinical-coding-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

// fixedVector returns a deterministic 768-dim vector so similarity search
// against the same vector always ranks the inserted case first.
func fixedVector(seed float32) []float32 {
	v := make([]float32, 768)
	for i := range v {
		v[i] = seed
	}
	v[0] = 1
	return v
}

func containsCase(hits []*contract.ScoredCodedCase, id uuid.UUID) bool {
	for _, hit := range hits {
		if hit.Case != nil && hit.Case.Id == id {
			return true
		}
	}
	return false
}

func TestCorpusRoundTrip(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.CodedCaseRepository())
	assert.NotNil(t, uow.CaseEmbeddingRepository())

	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)

	ctx := context.Background()

	// Position is assigned the way the ingestion service assigns it.
	maxPosition, err := uow.CodedCaseRepository().MaxPosition(ctx)
	assert.NoError(t, err)

	caseId := uuid.New()
	codedCase := &entity.CodedCase{
		Id:        caseId,
		Narrative: "Integration test narrative " + caseId.String(),
		AssignedCodes: []entity.AssignedCode{
			{Code: "410.9", CodeSystem: "ICD9"},
			{Code: "93000", CodeSystem: "CPT"},
		},
		SourceIntent: "diagnostic",
		Position:     maxPosition + 1,
		CreatedAt:    time.Now(),
	}

	err = uow.CodedCaseRepository().Create(ctx, codedCase)
	assert.NoError(t, err)

	t.Run("Assigned codes survive the jsonb round trip", func(t *testing.T) {
		found, err := uow.CodedCaseRepository().FindOne(ctx, specification.ByID{ID: caseId})
		assert.NoError(t, err)
		if assert.NotNil(t, found) {
			assert.Len(t, found.AssignedCodes, 2)
			assert.Equal(t, "410.9", found.AssignedCodes[0].Code)
			assert.Equal(t, "CPT", found.AssignedCodes[1].CodeSystem)
			assert.Equal(t, maxPosition+1, found.Position)
		}
	})

	t.Run("Similarity search finds the case and soft delete hides it", func(t *testing.T) {
		vector := fixedVector(0.25)

		embeddings := []*entity.CaseEmbedding{{
			Id:             uuid.New(),
			Document:       codedCase.Narrative,
			EmbeddingValue: vector,
			CaseId:         caseId,
			ChunkIndex:     0,
			CreatedAt:      time.Now(),
		}}
		err := uow.CaseEmbeddingRepository().CreateBulk(ctx, embeddings)
		assert.NoError(t, err)

		chunks, err := uow.CaseEmbeddingRepository().FindAll(ctx, specification.ByCaseID{CaseID: caseId})
		assert.NoError(t, err)
		assert.Len(t, chunks, 1)

		hits, err := uow.CaseEmbeddingRepository().SearchSimilarCases(ctx, vector, 5)
		assert.NoError(t, err)
		assert.True(t, containsCase(hits, caseId), "expected the inserted case among search hits")

		// Soft delete removes the case from retrieval entirely.
		err = uow.CodedCaseRepository().Delete(ctx, caseId)
		assert.NoError(t, err)
		err = uow.CaseEmbeddingRepository().DeleteByCaseId(ctx, caseId)
		assert.NoError(t, err)

		hits, err = uow.CaseEmbeddingRepository().SearchSimilarCases(ctx, vector, 5)
		assert.NoError(t, err)
		assert.False(t, containsCase(hits, caseId), "soft deleted case must not be retrievable")
	})

	t.Run("Transaction rollback leaves no trace", func(t *testing.T) {
		txUow := uowFactory.NewUnitOfWork(ctx)
		err := txUow.Begin(ctx)
		assert.NoError(t, err)

		ghostId := uuid.New()
		ghost := &entity.CodedCase{
			Id:           ghostId,
			Narrative:    "Rollback ghost " + ghostId.String(),
			SourceIntent: "general",
			Position:     maxPosition + 1000,
			CreatedAt:    time.Now(),
		}
		err = txUow.CodedCaseRepository().Create(ctx, ghost)
		assert.NoError(t, err)

		err = txUow.Rollback()
		assert.NoError(t, err)

		found, err := uow.CodedCaseRepository().FindOne(ctx, specification.ByID{ID: ghostId})
		assert.NoError(t, err)
		assert.Nil(t, found, "rolled back case must not persist")
	})
}
