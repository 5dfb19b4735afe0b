package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freshbulk/storefront/pkg/ctx"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type HealthController struct {
	checks map[string]Checker
}

func NewHealthController(checks map[string]Checker) *HealthController {
	return &HealthController{checks: checks}
}

// Show answers 200 when every check passes and 503 otherwise, naming the
// state of each dependency. Failure details stay in the logs.
func (h *HealthController) Show(c *ctx.Context) {
	checkCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(checkCtx); err != nil {
			c.Logger().Error("health check failed", "dependency", name, "error", err)
			deps[name] = "down"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	c.JSON(code, map[string]any{"status": status, "checks": deps})
}
