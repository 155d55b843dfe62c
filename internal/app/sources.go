package app

import (
	"context"
	"io"

	"github.com/hearthlabs/homeboard/internal/api"
	"github.com/hearthlabs/homeboard/internal/domain"
)

// SettingsUpdate is the controller-level settings patch.
type SettingsUpdate struct {
	Username        string
	BackgroundImage string
}

// The controller depends on narrow data-source interfaces so the live API
// client and the offline mock source are interchangeable, selected by
// configuration.

type AuthSource interface {
	Register(ctx context.Context, username, email, password string) (domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context) (domain.User, error)
}

type MetricsSource interface {
	Get(ctx context.Context) (domain.Metrics, error)
}

type DashboardSource interface {
	Data(ctx context.Context) (domain.DashboardData, error)
	ToggleDevice(ctx context.Context, deviceID string) (string, error)
}

type SettingsSource interface {
	Update(ctx context.Context, update SettingsUpdate) (domain.User, error)
	UploadAvatar(ctx context.Context, filename string, file io.Reader) (domain.User, error)
	UploadBackground(ctx context.Context, filename string, file io.Reader) (domain.User, error)
}

type ForecastSource interface {
	History(ctx context.Context) ([]domain.TimeSeriesPoint, error)
	Predict(ctx context.Context, history []domain.TimeSeriesPoint) (domain.EnergySeries, error)
}

type AssistantSource interface {
	Ask(ctx context.Context, message string, series domain.EnergySeries) (string, error)
}

// Sources bundles every data source the controller consumes.
type Sources struct {
	Auth      AuthSource
	Metrics   MetricsSource
	Dashboard DashboardSource
	Settings  SettingsSource
	Forecast  ForecastSource
	Assistant AssistantSource
}

// LiveSources adapts the API client facets to the source interfaces.
func LiveSources(client *api.Client) Sources {
	return Sources{
		Auth:      client.Auth(),
		Metrics:   client.Metrics(),
		Dashboard: client.Dashboard(),
		Settings:  liveSettings{svc: client.Settings()},
		Forecast:  client.Forecast(),
		Assistant: client.Assistant(),
	}
}

type liveSettings struct {
	svc *api.SettingsService
}

func (s liveSettings) Update(ctx context.Context, update SettingsUpdate) (domain.User, error) {
	return s.svc.Update(ctx, api.UpdateRequest{
		Username:        update.Username,
		BackgroundImage: update.BackgroundImage,
	})
}

func (s liveSettings) UploadAvatar(ctx context.Context, filename string, file io.Reader) (domain.User, error) {
	return s.svc.UploadAvatar(ctx, filename, file)
}

func (s liveSettings) UploadBackground(ctx context.Context, filename string, file io.Reader) (domain.User, error) {
	return s.svc.UploadBackground(ctx, filename, file)
}
