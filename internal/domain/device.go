package domain

// Device is a toggleable appliance group as reported by the backend.
// The server is the source of truth; IsOn is only flipped locally after a
// toggle call has been acknowledged.
type Device struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	IsOn        bool    `json:"isOn"`
	Devices     int     `json:"devices"`
	PowerUsage  float64 `json:"powerUsage"`
	PowerOnTime string  `json:"powerOnTime,omitempty"`
}

// Environment holds the ambient readings shown on the dashboard. It is
// replaced wholesale on every poll.
type Environment struct {
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
}
