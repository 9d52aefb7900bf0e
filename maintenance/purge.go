// Package maintenance contains scheduled housekeeping handlers.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lambdaevents "github.com/aws/aws-lambda-go/events"
)

// YearPurger removes every reservation starting in a calendar year.
// *events.Model implements it.
type YearPurger interface {
	RemoveYear(ctx context.Context, year string) (int, error)
}

// Handler purges old reservation years on a schedule.
type Handler struct {
	model  YearPurger
	logger *slog.Logger
}

// NewHandler creates a new maintenance handler.
func NewHandler(model YearPurger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		model:  model,
		logger: logger,
	}
}

// purgeDetail is the payload of the EventBridge rule.
type purgeDetail struct {
	Year string `json:"year"`
}

// HandlePurgeYear processes a scheduled EventBridge event carrying the year
// to purge. This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandlePurgeYear(ctx context.Context, event lambdaevents.CloudWatchEvent) error {
	var detail purgeDetail
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		return fmt.Errorf("parse event detail: %w", err)
	}
	if detail.Year == "" {
		return fmt.Errorf("event detail has no year")
	}

	removed, err := h.model.RemoveYear(ctx, detail.Year)
	if err != nil {
		h.logger.Error("year purge failed",
			"year", detail.Year,
			"removed", removed,
			"error", err,
		)
		return err
	}

	h.logger.Info("purged reservation year",
		"year", detail.Year,
		"removed", removed,
	)
	return nil
}
