package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hearthlabs/homeboard/internal/domain"
)

type fakeTokens struct {
	token   string
	cleared bool
}

func (f *fakeTokens) Token() (string, bool) { return f.token, f.token != "" }
func (f *fakeTokens) Clear() error          { f.cleared = true; f.token = ""; return nil }

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL, Tokens: tokens})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client, server
}

func TestClient_BearerToken(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":1,"username":"alice"}`))
	})
	client, _ := newTestClient(t, handler, &fakeTokens{token: "tok-123"})

	if _, err := client.Auth().Profile(context.Background()); err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"access_token":"tok"}`))
	})
	client, _ := newTestClient(t, handler, &fakeTokens{})

	if _, err := client.Auth().Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Expected no Authorization header, got %q", gotAuth)
	}
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	})
	tokens := &fakeTokens{token: "stale"}
	client, _ := newTestClient(t, handler, tokens)

	_, err := client.Auth().Profile(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if !tokens.cleared {
		t.Error("401 should clear the token source")
	}
}

func TestClient_StatusErrorDetail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Username already registered"}`))
	})
	client, _ := newTestClient(t, handler, nil)

	_, err := client.Auth().Register(context.Background(), "alice", "a@b.co", "Abc123")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", statusErr.Status)
	}
	if statusErr.Error() != "Username already registered" {
		t.Errorf("Expected detail as message, got %q", statusErr.Error())
	}
}

func TestClient_StatusErrorNoDetail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})
	client, _ := newTestClient(t, handler, nil)

	_, err := client.Metrics().Get(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if !strings.Contains(statusErr.Error(), "500") {
		t.Errorf("Fallback message should mention the status, got %q", statusErr.Error())
	}
}

func TestClient_Timeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	server := httptest.NewServer(handler)
	defer server.Close()
	client, err := New(Config{
		BaseURL:    server.URL,
		HTTPClient: &http.Client{Timeout: 20 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Metrics().Get(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	// A closed server guarantees a connection refusal.
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Metrics().Get(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Expected ErrNetwork, got %v", err)
	}
}

func TestClient_ContextCanceledPassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	client, _ := newTestClient(t, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Metrics().Get(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestClient_MediaRewrite(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"username":"alice","avatar_url":"/uploads/avatars/a.png","background_image":"uploads/backgrounds/b.png"}`))
	})
	client, server := newTestClient(t, handler, &fakeTokens{token: "tok"})
	fixed := time.UnixMilli(1700000000000)
	client.clock = func() time.Time { return fixed }

	user, err := client.Auth().Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	wantAvatar := server.URL + "/uploads/avatars/a.png?t=1700000000000"
	if user.AvatarURL != wantAvatar {
		t.Errorf("Avatar URL = %q, want %q", user.AvatarURL, wantAvatar)
	}
	wantBackground := server.URL + "/uploads/backgrounds/b.png?t=1700000000000"
	if user.BackgroundImage != wantBackground {
		t.Errorf("Background URL = %q, want %q", user.BackgroundImage, wantBackground)
	}
}

func TestClient_MediaRewritePassthrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"username":"alice","avatar_url":"https://cdn.example.com/a.png"}`))
	})
	client, _ := newTestClient(t, handler, &fakeTokens{token: "tok"})
	client.clock = func() time.Time { return time.UnixMilli(42) }

	user, err := client.Auth().Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	// Absolute URLs are not rewritten, only cache busted.
	if user.AvatarURL != "https://cdn.example.com/a.png?t=42" {
		t.Errorf("Unexpected avatar URL %q", user.AvatarURL)
	}
	if user.BackgroundImage != "" {
		t.Errorf("Empty background should stay empty, got %q", user.BackgroundImage)
	}
}

func TestClient_CacheBustExistingQuery(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	client.clock = func() time.Time { return time.UnixMilli(7) }
	if got := client.cacheBust("http://x/img.png?v=2"); got != "http://x/img.png?v=2&t=7" {
		t.Errorf("cacheBust = %q", got)
	}
}

func TestClient_ToggleDevice(t *testing.T) {
	var gotPath, gotMethod string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Write([]byte(`{"message":"Device 3 toggled successfully"}`))
	})
	client, _ := newTestClient(t, handler, &fakeTokens{token: "tok"})

	msg, err := client.Dashboard().ToggleDevice(context.Background(), "3")
	if err != nil {
		t.Fatalf("ToggleDevice failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/devices/3/toggle" {
		t.Errorf("Unexpected request %s %s", gotMethod, gotPath)
	}
	if msg != "Device 3 toggled successfully" {
		t.Errorf("Unexpected message %q", msg)
	}

	if _, err := client.Dashboard().ToggleDevice(context.Background(), ""); err == nil {
		t.Error("Expected error for empty device id")
	}
}

func TestClient_UploadAvatarMultipart(t *testing.T) {
	var gotFilename, gotContent string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("Expected multipart body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			t.Errorf("NextPart failed: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" {
			t.Errorf("Expected form field \"file\", got %q", part.FormName())
		}
		gotFilename = part.FileName()
		data, _ := io.ReadAll(part)
		gotContent = string(data)
		w.Write([]byte(`{"id":1,"username":"alice","avatar_url":"/uploads/avatars/new.png"}`))
	})
	client, _ := newTestClient(t, handler, &fakeTokens{token: "tok"})
	client.clock = func() time.Time { return time.UnixMilli(1) }

	user, err := client.Settings().UploadAvatar(context.Background(), "me.png", strings.NewReader("imagedata"))
	if err != nil {
		t.Fatalf("UploadAvatar failed: %v", err)
	}
	if gotFilename != "me.png" || gotContent != "imagedata" {
		t.Errorf("Upload payload = (%q, %q)", gotFilename, gotContent)
	}
	if !strings.HasPrefix(user.AvatarURL, client.BaseURL()+"/uploads/avatars/new.png?t=") {
		t.Errorf("Avatar URL should be rewritten, got %q", user.AvatarURL)
	}
}

func TestClient_ForecastSeparateOrigin(t *testing.T) {
	forecastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/history":
			w.Write([]byte(`{"history":[{"timestamp":"t1","value":9.5}],"status":"ok"}`))
		case "/predict":
			w.Write([]byte(`{"history":[{"timestamp":"t1","value":9.5}],"forecast":[{"timestamp":"t2","value":10.1}]}`))
		default:
			t.Errorf("Unexpected forecast path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer forecastSrv.Close()
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Dashboard origin should not be hit, got %s", r.URL.Path)
	}))
	defer apiSrv.Close()

	client, err := New(Config{BaseURL: apiSrv.URL, ForecastURL: forecastSrv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	history, err := client.Forecast().History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Value != 9.5 {
		t.Errorf("Unexpected history %+v", history)
	}

	series, err := client.Forecast().Predict(context.Background(), history)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(series.Forecast) != 1 || series.Forecast[0].Value != 10.1 {
		t.Errorf("Unexpected forecast %+v", series.Forecast)
	}
}

func TestClient_AssistantPayload(t *testing.T) {
	var gotBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mock" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`{"result":"Usage looks stable."}`))
	})
	client, _ := newTestClient(t, handler, nil)

	series := domain.EnergySeries{
		History:  []domain.TimeSeriesPoint{{Timestamp: "t1", Value: 9}},
		Forecast: []domain.TimeSeriesPoint{{Timestamp: "t2", Value: 10}},
	}
	answer, err := client.Assistant().Ask(context.Background(), "how am I doing?", series)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "Usage looks stable." {
		t.Errorf("Unexpected answer %q", answer)
	}
	for _, want := range []string{`"message":"how am I doing?"`, `"history"`, `"forecast"`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("Payload missing %s: %s", want, gotBody)
		}
	}
}

func TestClient_LoginMissingToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	client, _ := newTestClient(t, handler, nil)

	if _, err := client.Auth().Login(context.Background(), "alice", "pw"); err == nil {
		t.Error("Expected error for missing access_token")
	}
}
