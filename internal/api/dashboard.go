package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// MetricsService fetches household power metrics.
type MetricsService struct {
	client *Client
}

// Get returns the latest metrics snapshot, untransformed.
func (m *MetricsService) Get(ctx context.Context) (domain.Metrics, error) {
	var metrics domain.Metrics
	if err := m.client.getJSON(ctx, "metrics", m.client.baseURL+"/metrics", &metrics); err != nil {
		return domain.Metrics{}, err
	}
	return metrics, nil
}

// DashboardService fetches dashboard data and toggles devices.
type DashboardService struct {
	client *Client
}

// Data returns devices, environment readings and the energy usage summary.
func (d *DashboardService) Data(ctx context.Context) (domain.DashboardData, error) {
	var data domain.DashboardData
	if err := d.client.getJSON(ctx, "dashboard", d.client.baseURL+"/dashboard-data", &data); err != nil {
		return domain.DashboardData{}, err
	}
	return data, nil
}

// ToggleDevice asks the backend to flip a device and returns the
// acknowledgement message. No local state is mutated here; the caller
// applies the optimistic update after success.
func (d *DashboardService) ToggleDevice(ctx context.Context, deviceID string) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("device id is required")
	}
	target := fmt.Sprintf("%s/devices/%s/toggle", d.client.baseURL, url.PathEscape(deviceID))
	var resp struct {
		Message string `json:"message"`
	}
	if err := d.client.sendJSON(ctx, "toggle_device", "POST", target, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
