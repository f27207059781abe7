package handler

import (
	"net/http"

	"github.com/thomas-denton/lease-intelligence/internal/middleware"
	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BenchmarkHandler serves the aggregate-only ZIP market statistics.
type BenchmarkHandler struct {
	benchmark *service.BenchmarkService
}

func NewBenchmarkHandler(benchmark *service.BenchmarkService) *BenchmarkHandler {
	return &BenchmarkHandler{benchmark: benchmark}
}

// GetBenchmark handles retrieving the benchmark row for one ZIP code.
// This route is public: benchmark rows carry aggregates only, never
// per-lease data.
func (h *BenchmarkHandler) GetBenchmark(c echo.Context) error {
	log := logger.FromContext(c)
	zip := c.Param("zip")

	bench, err := h.benchmark.Get(c.Request().Context(), zip)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, bench)
}

// RecomputeBenchmark handles the admin rebuild of one ZIP's statistics from
// its current non-deleted lease population
func (h *BenchmarkHandler) RecomputeBenchmark(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	zip := c.Param("zip")
	log.Info("Recomputing benchmark", zap.String("zip", zip))

	bench, err := h.benchmark.Recompute(c.Request().Context(), identity, zip)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Benchmark recomputed",
		zap.String("zip", zip),
		zap.Int("sample_size", bench.SampleSize))
	return c.JSON(http.StatusOK, bench)
}
