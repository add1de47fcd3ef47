// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"rda_bot/internal/model"
)

// Storage is the interface for all persistence operations. Implementations
// must be safe for concurrent use.
type Storage interface {
	UpsertSubscriber(ctx context.Context, sub model.Subscriber) error
	SetSubscription(ctx context.Context, chatID int64, kind model.SubscriptionKind, on bool) error
	ListSubscribers(ctx context.Context, kind model.SubscriptionKind) ([]int64, error)
	CountSubscribers(ctx context.Context) (map[model.SubscriptionKind]int, error)

	AddRDAFilters(ctx context.Context, chatID int64, codes []string) ([]string, error)
	GetRDAFilters(ctx context.Context, chatID int64) ([]string, error)
	ClearRDAFilters(ctx context.Context, chatID int64) error

	SetMode(ctx context.Context, chatID int64, mode string) error
	SetBand(ctx context.Context, chatID int64, low, high *float64) error
	GetFilterConfig(ctx context.Context, chatID int64) (mode string, low, high *float64, err error)

	SetTemplate(ctx context.Context, chatID int64, tmpl string) error
	GetTemplate(ctx context.Context, chatID int64) (string, error)

	IsNew(ctx context.Context, key string) (bool, error)

	Close() error
}
