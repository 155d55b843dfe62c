// Package mockapi is a development stand-in for the dashboard backend. It
// reproduces the REST surface the client consumes so the dashboard can be
// exercised end to end without the production services. It is not a
// production backend.
package mockapi

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hearthlabs/homeboard/internal/domain"
	"github.com/hearthlabs/homeboard/pkg/logger"
)

// Config configures the mock server.
type Config struct {
	// JWTSecret signs bearer tokens. A random secret is generated when empty.
	JWTSecret string
	// UploadDir stores avatar and background uploads. Defaults to a temp dir.
	UploadDir string
	// TokenTTL bounds issued tokens. Default 24h.
	TokenTTL time.Duration
	Log      *logger.Logger
}

type account struct {
	ID              int64
	Username        string
	Email           string
	PasswordHash    []byte
	AvatarURL       string
	BackgroundImage string
	CreatedAt       time.Time
}

// Server holds the in-memory backend state.
type Server struct {
	engine    *gin.Engine
	log       *logger.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
	uploadDir string
	limiter   *rateLimiter

	mu      sync.Mutex
	rand    *rand.Rand
	users   map[string]*account
	nextID  int64
	devices []domain.Device
}

// New builds the server and its routes.
func New(cfg Config) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("mockapi")
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = filepath.Join(os.TempDir(), "homeboard-uploads")
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	s := &Server{
		log:       log,
		jwtSecret: []byte(secret),
		tokenTTL:  tokenTTL,
		uploadDir: uploadDir,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		users:     make(map[string]*account),
		nextID:    1,
		devices: []domain.Device{
			{ID: "1", Name: "Air Conditioner", IsOn: true, Devices: 4, PowerUsage: 24.9, PowerOnTime: "14hr 32min"},
			{ID: "2", Name: "Lamp", IsOn: true, Devices: 4, PowerUsage: 24.9},
			{ID: "3", Name: "Audio", IsOn: true, Devices: 4, PowerUsage: 24.9, PowerOnTime: "2hr"},
			{ID: "4", Name: "Refrigerator", IsOn: false, Devices: 4, PowerUsage: 24.9, PowerOnTime: "24hr"},
		},
	}

	s.limiter = newRateLimiter(20, 40)
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.limiter.middleware())

	engine.POST("/register", s.register)
	engine.POST("/login", s.login)
	engine.GET("/history", s.history)
	engine.POST("/predict", s.predict)
	engine.POST("/mock", s.assistant)
	engine.Static("/uploads", uploadDir)

	authed := engine.Group("/", s.requireAuth())
	authed.GET("/user/profile", s.profile)
	authed.PATCH("/user/settings/update", s.updateSettings)
	authed.POST("/user/avatar", s.uploadAvatar)
	authed.POST("/user/background", s.uploadBackground)
	authed.GET("/metrics", s.metrics)
	authed.GET("/dashboard-data", s.dashboardData)
	authed.POST("/devices/:id/toggle", s.toggleDevice)

	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Close releases background resources.
func (s *Server) Close() { s.limiter.stop() }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("mock backend listening")
	return s.engine.Run(addr)
}

// detail mirrors the backend error shape the client parses.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func (s *Server) userResponse(a *account) gin.H {
	return gin.H{
		"id":               a.ID,
		"username":         a.Username,
		"email":            a.Email,
		"avatar_url":       a.AvatarURL,
		"background_image": a.BackgroundImage,
		"created_at":       a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// --- auth ---

func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		detail(c, http.StatusBadRequest, "Username already registered")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	a := &account{
		ID:           s.nextID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	s.nextID++
	s.users[req.Username] = a
	c.JSON(http.StatusOK, s.userResponse(a))
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	a, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(req.Password)) != nil {
		detail(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	claims := jwt.MapClaims{
		"sub": a.Username,
		"exp": time.Now().Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			detail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			detail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			detail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		username, _ := claims["sub"].(string)
		s.mu.Lock()
		a, exists := s.users[username]
		s.mu.Unlock()
		if !exists {
			detail(c, http.StatusUnauthorized, "User not found")
			return
		}
		c.Set("account", a)
		c.Next()
	}
}

func currentAccount(c *gin.Context) *account {
	v, _ := c.Get("account")
	a, _ := v.(*account)
	return a
}

// --- profile and settings ---

func (s *Server) profile(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.userResponse(currentAccount(c)))
}

func (s *Server) updateSettings(c *gin.Context) {
	var req struct {
		Username        string `json:"username"`
		BackgroundImage string `json:"background_image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	a := currentAccount(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Username != "" && req.Username != a.Username {
		if _, taken := s.users[req.Username]; taken {
			detail(c, http.StatusBadRequest, "Username already taken")
			return
		}
		delete(s.users, a.Username)
		a.Username = req.Username
		s.users[a.Username] = a
	}
	if req.BackgroundImage != "" {
		a.BackgroundImage = req.BackgroundImage
	}
	c.JSON(http.StatusOK, s.userResponse(a))
}

func (s *Server) uploadAvatar(c *gin.Context) {
	s.storeUpload(c, "avatars", func(a *account, url string) { a.AvatarURL = url })
}

func (s *Server) uploadBackground(c *gin.Context) {
	s.storeUpload(c, "backgrounds", func(a *account, url string) { a.BackgroundImage = url })
}

func (s *Server) storeUpload(c *gin.Context, kind string, assign func(*account, string)) {
	file, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "file field is required")
		return
	}
	name := uuid.NewString() + filepath.Ext(file.Filename)
	dir := filepath.Join(s.uploadDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		detail(c, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		detail(c, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	a := currentAccount(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	assign(a, "/uploads/"+kind+"/"+name)
	c.JSON(http.StatusOK, s.userResponse(a))
}

// --- dashboard data ---

func (s *Server) metrics(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, domain.Metrics{
		GlobalActivePower:   round3(s.rand.Float64() * 10),
		GlobalReactivePower: round3(s.rand.Float64()),
		Voltage:             round3(230 + s.rand.Float64()*20),
		GlobalIntensity:     round3(s.rand.Float64() * 40),
		SubMetering1:        round3(s.rand.Float64() * 2),
		SubMetering2:        round3(s.rand.Float64() * 40),
		SubMetering3:        round3(15 + s.rand.Float64()*5),
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) dashboardData(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := []string{"04:30PM", "05:00PM", "05:30PM", "06:00PM", "06:30PM", "07:00PM", "07:30PM", "08:00PM", "08:30PM"}
	points := make([]domain.EnergyPoint, 0, len(times))
	for _, t := range times {
		points = append(points, domain.EnergyPoint{
			Timestamp:  t,
			Usage:      70 + s.rand.Float64()*30,
			Efficiency: 20 + s.rand.Float64()*30,
		})
	}
	c.JSON(http.StatusOK, domain.DashboardData{
		Devices:     append([]domain.Device(nil), s.devices...),
		Environment: domain.Environment{Humidity: 76, Temperature: 24},
		EnergyData:  points,
	})
}

func (s *Server) toggleDevice(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			s.devices[i].IsOn = !s.devices[i].IsOn
			c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Device %s toggled successfully", id)})
			return
		}
	}
	detail(c, http.StatusNotFound, fmt.Sprintf("Device %s not found", id))
}

// --- forecast and assistant ---

func (s *Server) history(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	points := make([]domain.TimeSeriesPoint, 0, 24)
	for i := 0; i < 24; i++ {
		points = append(points, domain.TimeSeriesPoint{
			Timestamp: now.Add(-time.Duration(23-i) * time.Hour).Format(time.RFC3339),
			Value:     round3(9 + s.rand.Float64()*2),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": points, "status": "ok"})
}

func (s *Server) predict(c *gin.Context) {
	var req struct {
		History []domain.TimeSeriesPoint `json:"history"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Forecast as a short random walk from the mean of the last readings.
	base := 10.0
	last := time.Now()
	if n := len(req.History); n > 0 {
		window := req.History
		if n > 3 {
			window = req.History[n-3:]
		}
		var sum float64
		for _, p := range window {
			sum += p.Value
		}
		base = sum / float64(len(window))
		if t, err := time.Parse(time.RFC3339, req.History[n-1].Timestamp); err == nil {
			last = t
		}
	}
	forecast := make([]domain.TimeSeriesPoint, 0, 3)
	for i := 0; i < 3; i++ {
		base += (s.rand.Float64() - 0.5) * 0.6
		forecast = append(forecast, domain.TimeSeriesPoint{
			Timestamp: last.Add(time.Duration(i+1) * time.Hour).Format(time.RFC3339),
			Value:     round3(base),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": req.History, "forecast": forecast, "status": "ok"})
}

func (s *Server) assistant(c *gin.Context) {
	var req struct {
		Message  string                   `json:"message"`
		History  []domain.TimeSeriesPoint `json:"history"`
		Forecast []domain.TimeSeriesPoint `json:"forecast"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	var sum float64
	for _, p := range req.History {
		sum += p.Value
	}
	avg := 0.0
	if len(req.History) > 0 {
		avg = sum / float64(len(req.History))
	}
	c.JSON(http.StatusOK, gin.H{
		"result": fmt.Sprintf("Your average usage over the last %d readings is %.2f kWh. The forecast covers the next %d intervals.",
			len(req.History), avg, len(req.Forecast)),
	})
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
