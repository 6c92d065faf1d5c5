package health

import (
	"github.com/gofiber/fiber/v2"
)

// FiberHandler serves the liveness and readiness probes.
type FiberHandler struct {
	service *Service
}

func NewFiberHandler(service *Service) *FiberHandler {
	return &FiberHandler{service: service}
}

func (h *FiberHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
}

func (h *FiberHandler) Live(c *fiber.Ctx) error {
	return c.JSON(h.service.Health(c.UserContext()))
}

// Ready answers 503 when any dependency is unhealthy.
func (h *FiberHandler) Ready(c *fiber.Ctx) error {
	resp := h.service.Ready(c.UserContext())
	if !resp.Ready {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(resp)
}
