package handlers

import (
	"github.com/dimitrije/vericheck-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

func Health(c *drift.Context) {
	_ = c.JSON(200, dto.HealthResponse{Status: "OK", Message: "server is running"})
}
