// Package energy implements the chart-series reconciliation: merging an
// observed history with its forecast continuation into aligned traces, the
// toggle power adjustment, and the fallback series used when the forecast
// service is unreachable.
package energy

import (
	"math/rand"
	"time"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// Labels returns the x-axis labels: history timestamps followed by forecast
// timestamps, in original server order. No sorting is performed; the server
// guarantees chronological order.
func Labels(history, forecast []domain.TimeSeriesPoint) []string {
	labels := make([]string, 0, len(history)+len(forecast))
	for _, p := range history {
		labels = append(labels, p.Timestamp)
	}
	for _, p := range forecast {
		labels = append(labels, p.Timestamp)
	}
	return labels
}

// HistoryTrace returns the history values aligned with Labels. Indices past
// the history are absent because the trace simply ends there.
func HistoryTrace(history []domain.TimeSeriesPoint) []float64 {
	values := make([]float64, len(history))
	for i, p := range history {
		values[i] = p.Value
	}
	return values
}

// ForecastTrace builds the forecast line aligned index-for-index with
// Labels: nil for every history index except the last, then the last
// history value once so the two lines share a joint point, then the
// forecast values. With no history the trace is simply the forecast.
func ForecastTrace(history, forecast []domain.TimeSeriesPoint) []*float64 {
	n := len(history)
	trace := make([]*float64, 0, n+len(forecast))
	if n > 0 {
		for i := 0; i < n-1; i++ {
			trace = append(trace, nil)
		}
		joint := history[n-1].Value
		trace = append(trace, &joint)
	}
	for _, p := range forecast {
		v := p.Value
		trace = append(trace, &v)
	}
	return trace
}

// ApplyToggleDelta shifts every forecast point by the device's rated power
// usage: up when the device turned on, down when it turned off. Toggling
// twice restores the original values.
func ApplyToggleDelta(series *domain.EnergySeries, powerUsage float64, on bool) {
	delta := powerUsage
	if !on {
		delta = -powerUsage
	}
	for i := range series.Forecast {
		series.Forecast[i].Value += delta
	}
}

// MockSeries generates the fallback chart data used when the history or
// predict call fails: seven hourly history points ending at now and three
// hourly forecast points after it, with values in [9, 11). The shape is
// deterministic, the values are not.
func MockSeries(now time.Time) domain.EnergySeries {
	history := make([]domain.TimeSeriesPoint, 0, 7)
	for i := 0; i < 7; i++ {
		history = append(history, domain.TimeSeriesPoint{
			Timestamp: now.Add(-time.Duration(6-i) * time.Hour).Format(time.RFC3339),
			Value:     9 + rand.Float64()*2,
		})
	}
	forecast := make([]domain.TimeSeriesPoint, 0, 3)
	for i := 0; i < 3; i++ {
		forecast = append(forecast, domain.TimeSeriesPoint{
			Timestamp: now.Add(time.Duration(i+1) * time.Hour).Format(time.RFC3339),
			Value:     9 + rand.Float64()*2,
		})
	}
	return domain.EnergySeries{History: history, Forecast: forecast}
}
