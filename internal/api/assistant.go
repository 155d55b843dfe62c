package api

import (
	"context"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// AssistantService sends the current energy series to the assistant
// endpoint and returns its reply.
type AssistantService struct {
	client *Client
}

// Ask submits the series and returns the assistant's answer text.
func (a *AssistantService) Ask(ctx context.Context, message string, series domain.EnergySeries) (string, error) {
	payload := map[string]any{
		"message":  message,
		"history":  series.History,
		"forecast": series.Forecast,
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := a.client.sendJSON(ctx, "assistant", "POST", a.client.forecastURL+"/mock", payload, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}
