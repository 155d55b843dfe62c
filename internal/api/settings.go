package api

import (
	"context"
	"io"
	"strings"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// SettingsService updates user settings and profile images.
type SettingsService struct {
	client *Client
}

// UpdateRequest is the settings patch payload. Empty fields are still sent;
// the backend treats the request as the authoritative new value set.
type UpdateRequest struct {
	Username        string `json:"username"`
	BackgroundImage string `json:"background_image,omitempty"`
}

// Update patches the user settings and returns the fresh server copy with
// media URLs rewritten.
func (s *SettingsService) Update(ctx context.Context, req UpdateRequest) (domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	var user domain.User
	if err := s.client.sendJSON(ctx, "update_settings", "PATCH", s.client.baseURL+"/user/settings/update", req, &user); err != nil {
		return domain.User{}, err
	}
	s.client.rewriteUserMedia(&user)
	return user, nil
}

// UploadAvatar uploads a new avatar image and returns the updated user.
func (s *SettingsService) UploadAvatar(ctx context.Context, filename string, file io.Reader) (domain.User, error) {
	var user domain.User
	if err := s.client.sendFile(ctx, "upload_avatar", s.client.baseURL+"/user/avatar", filename, file, &user); err != nil {
		return domain.User{}, err
	}
	s.client.rewriteUserMedia(&user)
	return user, nil
}

// UploadBackground uploads a new background image and returns the updated user.
func (s *SettingsService) UploadBackground(ctx context.Context, filename string, file io.Reader) (domain.User, error) {
	var user domain.User
	if err := s.client.sendFile(ctx, "upload_background", s.client.baseURL+"/user/background", filename, file, &user); err != nil {
		return domain.User{}, err
	}
	s.client.rewriteUserMedia(&user)
	return user, nil
}
