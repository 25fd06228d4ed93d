package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/bolworks/api/internal/engine"
	"github.com/bolworks/api/pkg/response"
)

// SystemHandler exposes the engine's observability snapshot.
type SystemHandler struct {
	engine *engine.Engine
}

func NewSystemHandler(eng *engine.Engine) *SystemHandler {
	return &SystemHandler{engine: eng}
}

// Metrics handles GET /metrics
// @Summary      System metrics
// @Description  Worker pool, queue depth, per-status counts and throughput metrics
// @Tags         System
// @Produce      json
// @Success      200 {object} model.SystemStatus
// @Router       /metrics [get]
func (h *SystemHandler) Metrics(c *fiber.Ctx) error {
	return response.OK(c, h.engine.SystemStatus())
}
