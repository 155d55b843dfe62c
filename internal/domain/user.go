// Package domain defines the data model shared between the API client and
// the application state controller. JSON tags follow the backend wire format.
package domain

// User is the identity record returned by the backend. AvatarURL and
// BackgroundImage are absolute URLs after the API layer rewrites them.
type User struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	BackgroundImage string `json:"background_image,omitempty"`
	CreatedAt       string `json:"created_at"`
}
