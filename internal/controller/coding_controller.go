package controller

import (
	"errors"

	"clinical-coding-be/internal/dto"
	"clinical-coding-be/internal/pkg/serverutils"
	"clinical-coding-be/internal/service"
	"clinical-coding-be/pkg/workflow/state"

	"github.com/gofiber/fiber/v2"
)

type ICodingController interface {
	RegisterRoutes(r fiber.Router)
	Code(ctx *fiber.Ctx) error
}

type codingController struct {
	codingService service.ICodingService
}

func NewCodingController(codingService service.ICodingService) ICodingController {
	return &codingController{
		codingService: codingService,
	}
}

func (c *codingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/coding/v1")
	h.Post("", c.Code)
}

func (c *codingController) Code(ctx *fiber.Ctx) error {
	var req dto.CodingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).
			JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Malformed request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).
			JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, err.Error()))
	}

	res, err := c.codingService.Code(ctx.Context(), &req)
	if err != nil {
		return c.respondWorkflowError(ctx, err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Coding workflow completed", res))
}

// respondWorkflowError maps the workflow failure taxonomy onto status codes:
// unavailable collaborators are 503, an exhausted deadline is 504. The stage
// trace rides in the error details so callers can see how far the run got.
func (c *codingController) respondWorkflowError(ctx *fiber.Ctx, err error) error {
	var wfErr *state.WorkflowError
	if !errors.As(err, &wfErr) {
		return err // unrecognized, let the error middleware produce a 500
	}

	status := fiber.StatusInternalServerError
	switch wfErr.Kind {
	case state.KindEmbeddingUnavailable, state.KindReasoningUnavailable, state.KindRetrievalFailed:
		status = fiber.StatusServiceUnavailable
	case state.KindWorkflowTimeout:
		status = fiber.StatusGatewayTimeout
	}

	details := fiber.Map{
		"kind":        string(wfErr.Kind),
		"stage":       wfErr.Stage,
		"stage_trace": wfErr.Trace,
	}
	return ctx.Status(status).JSON(serverutils.ErrorResponseDetailed(status, wfErr.Error(), details))
}
