package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"clinical-coding-be/internal/constant"
	"clinical-coding-be/internal/dto"
	"clinical-coding-be/internal/entity"
	"clinical-coding-be/internal/repository/specification"
	"clinical-coding-be/internal/repository/unitofwork"
	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/events"
	pktNats "clinical-coding-be/pkg/nats"
	"clinical-coding-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	eventPublisher    *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	eventPublisher *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		eventPublisher:    eventPublisher,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedCaseMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing case embedding for CaseId: %s", payload.CaseId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	codedCase, err := uow.CodedCaseRepository().FindOne(ctx, specification.ByID{ID: payload.CaseId})
	if err != nil {
		log.Printf("[ERROR] Failed to get case %s: %v", payload.CaseId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if codedCase == nil {
		log.Printf("[ERROR] Case not found: %s", payload.CaseId)
		msg.Ack() // Case deleted before embedding? Ack.
		return
	}

	content := composeCaseDocument(codedCase)

	log.Printf("[INFO] Generating embeddings for case %s (content length: %d)", payload.CaseId, len(content))

	// ChunkSize: 1500 chars (approx 375 tokens) - Ultra safe for context limits
	// Overlap: 200 chars
	chunks := utils.SplitText(content, 1500, 200)
	log.Printf("[INFO] Content split into %d chunks", len(chunks))

	var newEmbeddings []*entity.CaseEmbedding

	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(chunk, constant.TaskTypeRetrievalDocument)
		if err != nil {
			log.Printf("[ERROR] Failed to generate embedding for chunk %d of case %s: %v", i, payload.CaseId, err)
			msg.Nack()
			return
		}

		newEmbeddings = append(newEmbeddings, &entity.CaseEmbedding{
			Id:             uuid.New(),
			Document:       chunk, // Store specific chunk
			EmbeddingValue: res.Embedding.Values,
			CaseId:         codedCase.Id,
			ChunkIndex:     i,
			CreatedAt:      time.Now(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	// Re-embedding replaces, so stale chunks never linger
	if err := uow.CaseEmbeddingRepository().DeleteByCaseId(ctx, codedCase.Id); err != nil {
		log.Printf("[ERROR] Failed to delete old embeddings: %v", err)
		msg.Nack()
		return
	}

	if len(newEmbeddings) > 0 {
		if err := uow.CaseEmbeddingRepository().CreateBulk(ctx, newEmbeddings); err != nil {
			log.Printf("[ERROR] Failed to create bulk embeddings: %v", err)
			msg.Nack()
			return
		}
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	if cs.eventPublisher != nil {
		evt := events.NewCaseEmbedded(codedCase.Id.String(), len(newEmbeddings))
		_ = cs.eventPublisher.Publish(ctx, evt)
	}

	log.Printf("[SUCCESS] Case processed: %d chunks for CaseId: %s", len(newEmbeddings), payload.CaseId)
	msg.Ack()
}

// composeCaseDocument builds the text actually embedded for a case. The
// assigned codes ride along with the narrative so code-lookup style queries
// can match on the code strings themselves.
func composeCaseDocument(codedCase *entity.CodedCase) string {
	var codes []string
	for _, code := range codedCase.AssignedCodes {
		codes = append(codes, fmt.Sprintf("%s (%s)", code.Code, code.CodeSystem))
	}

	return fmt.Sprintf(`%s

Assigned Codes: %s
Source Intent: %s`,
		codedCase.Narrative,
		strings.Join(codes, ", "),
		codedCase.SourceIntent,
	)
}
