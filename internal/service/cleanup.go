package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
)

// CleanupUser removes everything that exists only because of the user:
// messages they sent or received with the reply subtrees below them,
// and notifications addressed to them. History entries the user authored on
// surviving messages keep their content and lose the editor. Running it
// twice is harmless; the second run reports zero everywhere.
func CleanupUser(ctx context.Context, tx repository.Store, userID uuid.UUID) (*domain.CleanupReport, error) {
	report := &domain.CleanupReport{}

	notified, err := tx.Notifications().DeleteByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete notifications: %w", err)
	}
	report.NotificationsDeleted = notified

	removed, err := tx.Messages().DeleteByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	report.MessagesDeleted = removed

	detached, err := tx.Histories().ClearEditor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("detach history: %w", err)
	}
	report.HistoryDetached = detached

	return report, nil
}
