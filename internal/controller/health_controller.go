package controller

import (
	"clinical-coding-be/internal/pkg/serverutils"
	"clinical-coding-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Check(ctx *fiber.Ctx) error
}

type healthController struct {
	healthService service.IHealthService
}

func NewHealthController(healthService service.IHealthService) IHealthController {
	return &healthController{
		healthService: healthService,
	}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Check)
}

// Check reports dependency reachability. A degraded system still answers 200;
// the body carries the per-component stat so probes can decide for themselves.
func (c *healthController) Check(ctx *fiber.Ctx) error {
	res := c.healthService.Check(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Health check", res))
}
