package service

import (
	"context"
	"time"

	"clinical-coding-be/internal/constant"
	"clinical-coding-be/internal/dto"
	"clinical-coding-be/internal/repository/unitofwork"
	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/llm"

	"gorm.io/gorm"
)

// probeTimeout bounds each dependency probe so a hung provider cannot stall
// the whole health endpoint.
const probeTimeout = 10 * time.Second

// IHealthService reports reachability of the workflow's dependencies.
type IHealthService interface {
	Check(ctx context.Context) *dto.HealthResponse
}

type healthService struct {
	db                *gorm.DB
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	llmProvider       llm.LLMProvider
}

func NewHealthService(
	db *gorm.DB,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
) IHealthService {
	return &healthService{
		db:                db,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		llmProvider:       llmProvider,
	}
}

// Check probes every dependency with a real, minimal call. Embedding and LLM
// probes cost one tiny request each; the endpoint is for operators, not
// high-frequency polling.
func (h *healthService) Check(ctx context.Context) *dto.HealthResponse {
	res := &dto.HealthResponse{
		Status:    constant.HealthStatusOk,
		Database:  dto.ComponentHealth{Status: constant.HealthStatusOk},
		Embedding: dto.ComponentHealth{Status: constant.HealthStatusOk},
		Llm:       dto.ComponentHealth{Status: constant.HealthStatusOk},
	}

	h.checkDatabase(ctx, res)
	h.checkEmbedding(res)
	h.checkLlm(ctx, res)

	if res.Database.Status != constant.HealthStatusOk || res.Embedding.Status != constant.HealthStatusOk || res.Llm.Status != constant.HealthStatusOk {
		res.Status = constant.HealthStatusDegraded
	}
	return res
}

func (h *healthService) checkDatabase(ctx context.Context, res *dto.HealthResponse) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err != nil {
		res.Database = dto.ComponentHealth{Status: constant.HealthStatusDown, Detail: err.Error()}
		return
	}
	if err := sqlDB.PingContext(probeCtx); err != nil {
		res.Database = dto.ComponentHealth{Status: constant.HealthStatusDown, Detail: err.Error()}
		return
	}

	uow := h.uowFactory.NewUnitOfWork(probeCtx)
	count, err := uow.CodedCaseRepository().Count(probeCtx)
	if err != nil {
		res.Database = dto.ComponentHealth{Status: constant.HealthStatusDown, Detail: err.Error()}
		return
	}
	res.CorpusSize = count
}

func (h *healthService) checkEmbedding(res *dto.HealthResponse) {
	// The provider interface carries no context; the HTTP clients behind it
	// enforce their own request timeouts.
	if _, err := h.embeddingProvider.Generate("health probe", constant.TaskTypeRetrievalQuery); err != nil {
		res.Embedding = dto.ComponentHealth{Status: constant.HealthStatusDown, Detail: err.Error()}
	}
}

func (h *healthService) checkLlm(ctx context.Context, res *dto.HealthResponse) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := h.llmProvider.Generate(probeCtx, "Respond with OK.", llm.WithMaxTokens(4)); err != nil {
		res.Llm = dto.ComponentHealth{Status: constant.HealthStatusDown, Detail: err.Error()}
	}
}
