package api

import (
	"context"
	"fmt"

	"github.com/hearthlabs/homeboard/internal/domain"
)

// AuthService handles registration, login and profile retrieval.
type AuthService struct {
	client *Client
}

// Register creates a new account and returns the server's user record.
func (a *AuthService) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	var user domain.User
	if err := a.client.sendJSON(ctx, "register", "POST", a.client.baseURL+"/register", payload, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login exchanges credentials for a bearer token. The caller is responsible
// for persisting the token before issuing authenticated calls.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	payload := map[string]string{
		"username": username,
		"password": password,
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := a.client.sendJSON(ctx, "login", "POST", a.client.baseURL+"/login", payload, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login response missing access_token")
	}
	return resp.AccessToken, nil
}

// Profile fetches the current user. Media URLs are rewritten to absolute
// form and cache busted so a changed avatar is refetched.
func (a *AuthService) Profile(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := a.client.getJSON(ctx, "profile", a.client.baseURL+"/user/profile", &user); err != nil {
		return domain.User{}, err
	}
	a.client.rewriteUserMedia(&user)
	return user, nil
}
