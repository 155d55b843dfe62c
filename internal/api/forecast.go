package api

import (
	"context"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// ForecastService talks to the history/predict service that backs the
// energy chart. It may live on a different origin than the dashboard API.
type ForecastService struct {
	client *Client
}

// History fetches the observed energy series in server order.
func (f *ForecastService) History(ctx context.Context) ([]domain.TimeSeriesPoint, error) {
	var resp struct {
		History []domain.TimeSeriesPoint `json:"history"`
	}
	if err := f.client.getJSON(ctx, "history", f.client.forecastURL+"/history", &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Predict submits a history series and returns it together with the
// predicted continuation.
func (f *ForecastService) Predict(ctx context.Context, history []domain.TimeSeriesPoint) (domain.EnergySeries, error) {
	payload := map[string]any{"history": history}
	var resp struct {
		History  []domain.TimeSeriesPoint `json:"history"`
		Forecast []domain.TimeSeriesPoint `json:"forecast"`
	}
	if err := f.client.sendJSON(ctx, "predict", "POST", f.client.forecastURL+"/predict", payload, &resp); err != nil {
		return domain.EnergySeries{}, err
	}
	return domain.EnergySeries{History: resp.History, Forecast: resp.Forecast}, nil
}
