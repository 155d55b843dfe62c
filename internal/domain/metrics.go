package domain

// Metrics is a snapshot of household power readings. Replaced wholesale on
// every poll, never merged.
type Metrics struct {
	GlobalActivePower   float64 `json:"global_active_power"`
	GlobalReactivePower float64 `json:"global_reactive_power"`
	Voltage             float64 `json:"voltage"`
	GlobalIntensity     float64 `json:"global_intensity"`
	SubMetering1        float64 `json:"sub_metering_1"`
	SubMetering2        float64 `json:"sub_metering_2"`
	SubMetering3        float64 `json:"sub_metering_3"`
	Timestamp           string  `json:"timestamp"`
}
