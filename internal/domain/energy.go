package domain

// TimeSeriesPoint is a single observed or predicted energy reading.
// Series order is whatever the server returned; no client-side sorting.
type TimeSeriesPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// EnergySeries pairs observed history with its forecast continuation for
// the energy chart.
type EnergySeries struct {
	History  []TimeSeriesPoint `json:"history"`
	Forecast []TimeSeriesPoint `json:"forecast"`
}

// EnergyPoint is one bar of the dashboard energy usage summary.
type EnergyPoint struct {
	Timestamp  string  `json:"timestamp"`
	Usage      float64 `json:"usage"`
	Efficiency float64 `json:"efficiency"`
}

// DashboardData is the aggregate payload of the dashboard endpoint.
type DashboardData struct {
	Devices     []Device      `json:"devices"`
	Environment Environment   `json:"environment"`
	EnergyData  []EnergyPoint `json:"energyData"`
}
