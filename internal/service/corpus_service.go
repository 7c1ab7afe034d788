package service

import (
	"context"
	"encoding/json"
	"time"

	"clinical-coding-be/internal/dto"
	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/repository/specification"
	"clinical-coding-be/internal/repository/unitofwork"
	"clinical-coding-be/pkg/events"
	pktNats "clinical-coding-be/pkg/nats"

	"github.com/google/uuid"
)

// ICorpusService manages the coded case corpus behind retrieval.
type ICorpusService interface {
	Ingest(ctx context.Context, req *dto.IngestCaseRequest) (*dto.IngestCaseResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.ShowCaseResponse, error)
	List(ctx context.Context, intent string, limit, offset int) ([]*dto.ShowCaseResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type corpusService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
}

func NewCorpusService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
) ICorpusService {
	return &corpusService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
	}
}

// Ingest stores a coded case and queues its narrative for embedding. The case
// is not retrievable until the consumer has embedded it.
func (c *corpusService) Ingest(ctx context.Context, req *dto.IngestCaseRequest) (*dto.IngestCaseResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	codes := make([]entity.AssignedCode, 0, len(req.AssignedCodes))
	for _, code := range req.AssignedCodes {
		codes = append(codes, entity.AssignedCode{
			Code:       code.Code,
			CodeSystem: code.CodeSystem,
		})
	}

	sourceIntent := req.SourceIntent
	if sourceIntent == "" {
		sourceIntent = "general"
	}

	codedCase := entity.CodedCase{
		Id:            uuid.New(),
		Narrative:     req.Narrative,
		AssignedCodes: codes,
		SourceIntent:  sourceIntent,
		CreatedAt:     time.Now(),
	}

	// Position is the insertion order and breaks similarity ties, so the
	// read-increment-write has to happen inside one transaction.
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	maxPosition, err := uow.CodedCaseRepository().MaxPosition(ctx)
	if err != nil {
		return nil, err
	}
	codedCase.Position = maxPosition + 1

	if err := uow.CodedCaseRepository().Create(ctx, &codedCase); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	// Queue embedding after commit so the consumer never races an invisible row.
	msgPayload := dto.PublishEmbedCaseMessage{
		CaseId: codedCase.Id,
	}
	msgJson, err := json.Marshal(msgPayload)
	if err != nil {
		return nil, err
	}
	if err := c.publisherService.Publish(ctx, msgJson); err != nil {
		return nil, err
	}

	if c.eventPublisher != nil {
		evt := events.NewCaseIngested(codedCase.Id.String(), codedCase.Position)
		_ = c.eventPublisher.Publish(ctx, evt)
	}

	return &dto.IngestCaseResponse{
		Id: codedCase.Id,
	}, nil
}

func (c *corpusService) Show(ctx context.Context, id uuid.UUID) (*dto.ShowCaseResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	codedCase, err := uow.CodedCaseRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if codedCase == nil {
		return nil, nil // Not found
	}

	res := toShowCaseResponse(codedCase)
	return res, nil
}

// List returns cases in corpus order. An empty intent means all intents,
// limit <= 0 means the whole corpus.
func (c *corpusService) List(ctx context.Context, intent string, limit, offset int) ([]*dto.ShowCaseResponse, error) {
	specs := []specification.Specification{specification.OrderByPosition{}}
	if intent != "" {
		specs = append(specs, specification.BySourceIntent{Intent: intent})
	}
	if limit > 0 {
		specs = append(specs, specification.Pagination{Limit: limit, Offset: offset})
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	cases, err := uow.CodedCaseRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.ShowCaseResponse, 0, len(cases))
	for _, codedCase := range cases {
		responses = append(responses, toShowCaseResponse(codedCase))
	}
	return responses, nil
}

// Delete soft deletes a case together with its embeddings, removing it from
// retrieval. Its position is never reassigned.
func (c *corpusService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	codedCase, err := uow.CodedCaseRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if codedCase == nil {
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.CodedCaseRepository().Delete(ctx, id); err != nil {
		return err
	}

	if err := uow.CaseEmbeddingRepository().DeleteByCaseId(ctx, id); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	if c.eventPublisher != nil {
		evt := events.NewCaseDeleted(id.String())
		_ = c.eventPublisher.Publish(ctx, evt)
	}

	return nil
}

func toShowCaseResponse(codedCase *entity.CodedCase) *dto.ShowCaseResponse {
	codes := make([]dto.AssignedCodePayload, 0, len(codedCase.AssignedCodes))
	for _, code := range codedCase.AssignedCodes {
		codes = append(codes, dto.AssignedCodePayload{
			Code:       code.Code,
			CodeSystem: code.CodeSystem,
		})
	}

	return &dto.ShowCaseResponse{
		Id:            codedCase.Id,
		Narrative:     codedCase.Narrative,
		AssignedCodes: codes,
		SourceIntent:  codedCase.SourceIntent,
		Position:      codedCase.Position,
		CreatedAt:     codedCase.CreatedAt,
		UpdatedAt:     codedCase.UpdatedAt,
	}
}
