package app

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// MockSources is an offline data source producing pseudo-random readings,
// so the dashboard can run without any backend. Selected by configuration
// in place of the live API client.
type MockSources struct {
	mu      sync.Mutex
	rand    *rand.Rand
	clock   func() time.Time
	devices []domain.Device
	user    domain.User
}

// NewMockSources seeds the offline source with the stock device set.
func NewMockSources() *MockSources {
	return &MockSources{
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		clock: time.Now,
		devices: []domain.Device{
			{ID: "1", Name: "Air Conditioner", IsOn: true, Devices: 4, PowerUsage: 24.9, PowerOnTime: "14hr 32min"},
			{ID: "2", Name: "Lamp", IsOn: true, Devices: 4, PowerUsage: 24.9},
			{ID: "3", Name: "Audio", IsOn: true, Devices: 4, PowerUsage: 24.9, PowerOnTime: "2hr"},
			{ID: "4", Name: "Refrigerator", IsOn: false, Devices: 4, PowerUsage: 24.9, PowerOnTime: "24hr"},
		},
		user: domain.User{
			ID:        1,
			Username:  "demo",
			Email:     "demo@example.com",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Sources exposes the mock as a full source bundle.
func (m *MockSources) Sources() Sources {
	return Sources{
		Auth:      m,
		Metrics:   m,
		Dashboard: m,
		Settings:  m,
		Forecast:  m,
		Assistant: m,
	}
}

func (m *MockSources) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = domain.User{
		ID:        m.user.ID + 1,
		Username:  username,
		Email:     email,
		CreatedAt: m.clock().UTC().Format(time.RFC3339),
	}
	return m.user, nil
}

func (m *MockSources) Login(ctx context.Context, username, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user.Username = username
	return fmt.Sprintf("mock-token-%d", m.clock().UnixNano()), nil
}

func (m *MockSources) Profile(ctx context.Context) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user, nil
}

func (m *MockSources) Get(ctx context.Context) (domain.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Metrics{
		GlobalActivePower:   m.rand.Float64() * 10,
		GlobalReactivePower: m.rand.Float64(),
		Voltage:             230 + m.rand.Float64()*20,
		GlobalIntensity:     m.rand.Float64() * 40,
		SubMetering1:        m.rand.Float64() * 2,
		SubMetering2:        m.rand.Float64() * 40,
		SubMetering3:        15 + m.rand.Float64()*5,
		Timestamp:           m.clock().UTC().Format(time.RFC3339),
	}, nil
}

func (m *MockSources) Data(ctx context.Context) (domain.DashboardData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := make([]domain.EnergyPoint, 0, 9)
	for i := 0; i < 9; i++ {
		points = append(points, domain.EnergyPoint{
			Timestamp:  m.clock().Add(time.Duration(i-8) * 30 * time.Minute).Format("03:04PM"),
			Usage:      70 + m.rand.Float64()*30,
			Efficiency: 20 + m.rand.Float64()*30,
		})
	}
	return domain.DashboardData{
		Devices:     append([]domain.Device(nil), m.devices...),
		Environment: domain.Environment{Humidity: 76, Temperature: 24},
		EnergyData:  points,
	}, nil
}

func (m *MockSources) ToggleDevice(ctx context.Context, deviceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.devices {
		if m.devices[i].ID == deviceID {
			m.devices[i].IsOn = !m.devices[i].IsOn
			return fmt.Sprintf("Device %s toggled successfully", deviceID), nil
		}
	}
	return "", fmt.Errorf("device %s not found", deviceID)
}

func (m *MockSources) Update(ctx context.Context, update SettingsUpdate) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if update.Username != "" {
		m.user.Username = update.Username
	}
	if update.BackgroundImage != "" {
		m.user.BackgroundImage = update.BackgroundImage
	}
	return m.user, nil
}

func (m *MockSources) UploadAvatar(ctx context.Context, filename string, file io.Reader) (domain.User, error) {
	if _, err := io.Copy(io.Discard, file); err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user.AvatarURL = "/uploads/avatars/" + filename
	return m.user, nil
}

func (m *MockSources) UploadBackground(ctx context.Context, filename string, file io.Reader) (domain.User, error) {
	if _, err := io.Copy(io.Discard, file); err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user.BackgroundImage = "/uploads/backgrounds/" + filename
	return m.user, nil
}

func (m *MockSources) History(ctx context.Context) ([]domain.TimeSeriesPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	points := make([]domain.TimeSeriesPoint, 0, 24)
	for i := 0; i < 24; i++ {
		points = append(points, domain.TimeSeriesPoint{
			Timestamp: now.Add(-time.Duration(23-i) * time.Hour).Format(time.RFC3339),
			Value:     9 + m.rand.Float64()*2,
		})
	}
	return points, nil
}

func (m *MockSources) Predict(ctx context.Context, history []domain.TimeSeriesPoint) (domain.EnergySeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := m.clock()
	base := 10.0
	if n := len(history); n > 0 {
		base = history[n-1].Value
		if t, err := time.Parse(time.RFC3339, history[n-1].Timestamp); err == nil {
			last = t
		}
	}
	forecast := make([]domain.TimeSeriesPoint, 0, 3)
	for i := 0; i < 3; i++ {
		forecast = append(forecast, domain.TimeSeriesPoint{
			Timestamp: last.Add(time.Duration(i+1) * time.Hour).Format(time.RFC3339),
			Value:     base + (m.rand.Float64()-0.5),
		})
	}
	return domain.EnergySeries{History: history, Forecast: forecast}, nil
}

func (m *MockSources) Ask(ctx context.Context, message string, series domain.EnergySeries) (string, error) {
	var sum float64
	for _, p := range series.History {
		sum += p.Value
	}
	avg := 0.0
	if len(series.History) > 0 {
		avg = sum / float64(len(series.History))
	}
	return fmt.Sprintf("Average recent usage is %.2f kWh across %d readings; the forecast covers the next %d intervals.",
		avg, len(series.History), len(series.Forecast)), nil
}
