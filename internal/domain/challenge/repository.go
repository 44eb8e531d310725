package challenge

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Repository - хранилище испытаний месяца и участия в них.
type Repository interface {
	// GetOrCreateDefinition возвращает испытание месяца, создавая candidate,
	// если его ещё нет. Ключ (year, month) уникален.
	GetOrCreateDefinition(ctx context.Context, candidate *Definition) (*Definition, error)

	// GetDefinition возвращает испытание по ID или shared.ErrNotFound.
	GetDefinition(ctx context.Context, id string) (*Definition, error)

	// EnsureProgress возвращает строку участия, создавая её при необходимости.
	// Ключ (user, challenge) уникален.
	EnsureProgress(ctx context.Context, candidate *Progress) (*Progress, error)

	// GetProgress возвращает строку участия по ID или shared.ErrNotFound.
	GetProgress(ctx context.Context, id string) (*Progress, error)
}

// QuestCounter считает выполненные квесты пользователя за период.
type QuestCounter interface {
	CountCompleted(ctx context.Context, userID shared.UserID, from, to time.Time) (int, error)
}
