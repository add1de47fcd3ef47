package filter

import (
	"context"

	"rda_bot/internal/model"
)

// Reader gives access to the stored filter settings of subscribers.
type Reader interface {
	GetRDAFilters(ctx context.Context, chatID int64) ([]string, error)
	GetFilterConfig(ctx context.Context, chatID int64) (mode string, low, high *float64, err error)
	GetTemplate(ctx context.Context, chatID int64) (string, error)
}

// Load assembles the complete filter of a subscriber.
func Load(ctx context.Context, r Reader, chatID int64) (model.SubscriberFilter, error) {
	rdas, err := r.GetRDAFilters(ctx, chatID)
	if err != nil {
		return model.SubscriberFilter{}, err
	}
	mode, low, high, err := r.GetFilterConfig(ctx, chatID)
	if err != nil {
		return model.SubscriberFilter{}, err
	}
	tmpl, err := r.GetTemplate(ctx, chatID)
	if err != nil {
		return model.SubscriberFilter{}, err
	}
	return model.SubscriberFilter{
		Mode:     mode,
		BandLow:  low,
		BandHigh: high,
		RDAs:     rdas,
		Template: tmpl,
	}, nil
}
