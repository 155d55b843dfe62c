// Package app hosts the application state controller: the single
// coordinator that owns dashboard state, drives polling, applies user
// intents and notifies subscribed views of every change.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hearthlabs/homeboard/internal/api"
	"github.com/hearthlabs/homeboard/internal/domain"
	"github.com/hearthlabs/homeboard/internal/energy"
	"github.com/hearthlabs/homeboard/internal/session"
	"github.com/hearthlabs/homeboard/internal/validate"
	"github.com/hearthlabs/homeboard/pkg/logger"
)

// Phase is the UI lifecycle phase.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticating  Phase = "authenticating"
	PhaseLoading         Phase = "loading"
	PhaseReady           Phase = "ready"
	PhaseError           Phase = "error"
)

// AuthMode selects which auth form an unauthenticated view shows.
type AuthMode string

const (
	ModeLogin    AuthMode = "login"
	ModeRegister AuthMode = "register"
)

// Page is the active dashboard page.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageLogs      Page = "suggestion logs"
	PageTips      Page = "tips"
	PageSettings  Page = "user settings"
)

// Snapshot is an immutable view of the controller state delivered to
// subscribers.
type Snapshot struct {
	Phase    Phase
	AuthMode AuthMode
	Page     Page

	User        *domain.User
	Devices     []domain.Device
	Environment domain.Environment
	Metrics     *domain.Metrics
	EnergyData  []domain.EnergyPoint

	// Series backs the energy chart; SeriesFallback marks locally
	// generated placeholder data after a failed forecast fetch.
	Series         domain.EnergySeries
	SeriesFallback bool

	Success string
	Error   string
}

// Config configures the controller.
type Config struct {
	Sources Sources
	Session *session.Store
	Log     *logger.Logger

	// DataInterval is the metrics+dashboard poll period. Default 30s.
	DataInterval time.Duration
	// ChartInterval is the history/forecast poll period. Default 5m.
	ChartInterval time.Duration
	// AdjustForecast shifts forecast values by a device's rated power
	// when it is toggled.
	AdjustForecast bool
}

// Controller coordinates session, data sources and state.
type Controller struct {
	src            Sources
	session        *session.Store
	log            *logger.Logger
	adjustForecast bool

	// test seams; fixed product values by default
	logoutDelay time.Duration
	successTTL  time.Duration
	errorTTL    time.Duration
	clock       func() time.Time

	dataPoller  *refresher
	chartPoller *refresher

	mu         sync.Mutex
	state      Snapshot
	subs       map[int]func(Snapshot)
	nextSub    int
	successGen int
	errorGen   int
	started    bool
	closed     bool

	runCtx context.Context
	cancel context.CancelFunc
}

// New builds a controller. Sources and Session are required.
func New(cfg Config) (*Controller, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Sources.Auth == nil || cfg.Sources.Metrics == nil || cfg.Sources.Dashboard == nil {
		return nil, fmt.Errorf("auth, metrics and dashboard sources are required")
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("controller")
	}
	dataInterval := cfg.DataInterval
	if dataInterval <= 0 {
		dataInterval = 30 * time.Second
	}
	chartInterval := cfg.ChartInterval
	if chartInterval <= 0 {
		chartInterval = 5 * time.Minute
	}

	c := &Controller{
		src:            cfg.Sources,
		session:        cfg.Session,
		log:            log,
		adjustForecast: cfg.AdjustForecast,
		logoutDelay:    2 * time.Second,
		successTTL:     successTTL,
		errorTTL:       errorTTL,
		clock:          time.Now,
		subs:           make(map[int]func(Snapshot)),
		state: Snapshot{
			Phase:    PhaseUnauthenticated,
			AuthMode: ModeLogin,
			Page:     PageDashboard,
		},
	}
	c.dataPoller = newRefresher("data-poll", dataInterval, c.pollData, log.WithField("poller", "data"))
	c.chartPoller = newRefresher("chart-poll", chartInterval, c.refreshChart, log.WithField("poller", "chart"))
	return c, nil
}

// Start resumes a persisted session if one exists and prepares the run
// context that owns the pollers. Only the first call takes effect.
func (c *Controller) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.closed || c.started {
		c.mu.Unlock()
		cancel()
		return
	}
	c.started = true
	c.runCtx = runCtx
	c.cancel = cancel
	authed := c.session.Authenticated()
	if authed {
		c.state.Phase = PhaseLoading
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if authed {
		go c.resume(runCtx)
	}
}

// resume validates a persisted token by fetching the profile. Any failure
// is treated as an invalid session: the token is cleared and the user must
// log in again.
func (c *Controller) resume(ctx context.Context) {
	user, err := c.src.Auth.Profile(ctx)
	if err != nil {
		c.log.WithError(err).Warn("session resume failed, forcing login")
		c.forceLogout("Failed to fetch user profile: " + errText(err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.User = &user
	c.state.Phase = PhaseReady
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	c.cacheUser(user)

	c.startPollers(ctx)
	c.dataPoller.triggerAsync(ctx)
	c.chartPoller.triggerAsync(ctx)
}

// Close tears the controller down. Late responses from in-flight requests
// become no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	c.dataPoller.stop()
	c.chartPoller.stop()
	if cancel != nil {
		cancel()
	}
}

// Subscribe registers a state listener. The current snapshot is delivered
// immediately; the returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	snap := c.snapshotLocked()
	c.mu.Unlock()

	fn(snap)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetAuthMode switches between the login and register forms.
func (c *Controller) SetAuthMode(mode AuthMode) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.AuthMode = mode
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// Register validates the form and creates the account. On success the view
// is switched back to the login form.
func (c *Controller) Register(ctx context.Context, username, email, password, confirmPassword string) error {
	if errs := validate.Registration(username, email, password, confirmPassword); errs != nil {
		return errs
	}
	if _, err := c.src.Auth.Register(ctx, username, email, password); err != nil {
		c.fail("Registration failed", err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.AuthMode = ModeLogin
	c.setSuccessLocked("Registration successful, please log in")
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// Login authenticates and loads the initial dashboard state. The token is
// persisted before the first authenticated call. Any failure in the chain
// forces a logout.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if errs := validate.Login(username, password); errs != nil {
		return errs
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.Phase = PhaseAuthenticating
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	token, err := c.src.Auth.Login(ctx, username, password)
	if err != nil {
		c.forceLogout("Login failed: " + errText(err))
		return err
	}
	if err := c.session.SetToken(token); err != nil {
		c.log.WithError(err).Warn("persist session token failed")
	}

	user, err := c.src.Auth.Profile(ctx)
	if err != nil {
		c.forceLogout("Login process failed: " + errText(err))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.User = &user
	c.state.Phase = PhaseLoading
	c.mu.Unlock()
	c.cacheUser(user)

	if err := c.fetchData(ctx); err != nil {
		c.forceLogout("Login process failed: " + errText(err))
		return err
	}
	c.chartPoller.trigger(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	// A 401 during the chart refresh forces a logout mid-chain; the
	// transition to unauthenticated must not be clobbered back to ready.
	if c.state.Phase != PhaseLoading {
		c.mu.Unlock()
		return api.ErrUnauthorized
	}
	c.state.Phase = PhaseReady
	c.setSuccessLocked("Login successful")
	snap = c.snapshotLocked()
	runCtx := c.runCtx
	c.mu.Unlock()
	c.publish(snap)

	if runCtx == nil {
		runCtx = context.Background()
	}
	c.startPollers(runCtx)
	return nil
}

// Logout clears the session and resets all state.
func (c *Controller) Logout() {
	c.mu.Lock()
	if c.closed || c.state.Phase == PhaseUnauthenticated {
		c.mu.Unlock()
		return
	}
	c.resetStateLocked()
	c.setSuccessLocked("Logged out successfully")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.stopPollers()
	if err := c.session.Clear(); err != nil {
		c.log.WithError(err).Warn("clear session failed")
	}
	c.publish(snap)
}

// ToggleDevice flips a device after the server acknowledges the toggle.
// Failure leaves local state untouched.
func (c *Controller) ToggleDevice(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	var device *domain.Device
	for i := range c.state.Devices {
		if c.state.Devices[i].ID == deviceID {
			d := c.state.Devices[i]
			device = &d
			break
		}
	}
	c.mu.Unlock()
	if device == nil {
		return fmt.Errorf("unknown device %q", deviceID)
	}

	msg, err := c.src.Dashboard.ToggleDevice(ctx, deviceID)
	if err != nil {
		c.fail("Device control failed", err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	for i := range c.state.Devices {
		if c.state.Devices[i].ID == deviceID {
			c.state.Devices[i].IsOn = !c.state.Devices[i].IsOn
			if c.adjustForecast {
				energy.ApplyToggleDelta(&c.state.Series, c.state.Devices[i].PowerUsage, c.state.Devices[i].IsOn)
			}
			break
		}
	}
	if msg == "" {
		msg = "Device state updated"
	}
	c.setSuccessLocked(msg)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// UpdateSettings patches the username (and keeps the current background).
// A username change schedules a forced logout so the user re-authenticates
// under the new identity.
func (c *Controller) UpdateSettings(ctx context.Context, username string) error {
	if msg := validate.Username(username); msg != "" {
		return validate.FieldErrors{"username": msg}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	var prev domain.User
	if c.state.User != nil {
		prev = *c.state.User
	}
	c.mu.Unlock()

	user, err := c.src.Settings.Update(ctx, SettingsUpdate{
		Username:        username,
		BackgroundImage: prev.BackgroundImage,
	})
	if err != nil {
		c.fail("Failed to update settings", err)
		return err
	}
	if user.AvatarURL == "" {
		user.AvatarURL = prev.AvatarURL
	}
	if user.BackgroundImage == "" {
		user.BackgroundImage = prev.BackgroundImage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.User = &user
	changed := prev.Username != "" && prev.Username != user.Username
	if changed {
		c.setSuccessLocked("Username updated successfully. You will be logged out in 2 seconds...")
	} else {
		c.setSuccessLocked("Settings updated successfully")
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	c.cacheUser(user)

	if changed {
		time.AfterFunc(c.logoutDelay, c.Logout)
	}
	return nil
}

// UpdateAvatar uploads a new avatar, preserving the background image field
// cached from before the call.
func (c *Controller) UpdateAvatar(ctx context.Context, filename string, file io.Reader) error {
	return c.updateImage(ctx, filename, file, true)
}

// UpdateBackground uploads a new background image, preserving the cached
// avatar field.
func (c *Controller) UpdateBackground(ctx context.Context, filename string, file io.Reader) error {
	return c.updateImage(ctx, filename, file, false)
}

func (c *Controller) updateImage(ctx context.Context, filename string, file io.Reader, avatar bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	var prev domain.User
	if c.state.User != nil {
		prev = *c.state.User
	}
	c.mu.Unlock()

	var (
		user domain.User
		err  error
		what string
	)
	if avatar {
		user, err = c.src.Settings.UploadAvatar(ctx, filename, file)
		what = "avatar"
	} else {
		user, err = c.src.Settings.UploadBackground(ctx, filename, file)
		what = "background"
	}
	if err != nil {
		c.fail("Failed to update "+what, err)
		return err
	}

	// The response for one image update must not clobber the other image.
	if avatar {
		if prev.BackgroundImage != "" {
			user.BackgroundImage = prev.BackgroundImage
		}
	} else {
		if prev.AvatarURL != "" {
			user.AvatarURL = prev.AvatarURL
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.User = &user
	c.setSuccessLocked(capitalize(what) + " updated successfully")
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	c.cacheUser(user)
	return nil
}

// SetPage switches the active page. Returning to the dashboard refreshes
// data immediately, independent of the poll timer.
func (c *Controller) SetPage(page Page) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Page = page
	ready := c.state.Phase == PhaseReady || c.state.Phase == PhaseError
	runCtx := c.runCtx
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	if page == PageDashboard && ready {
		if runCtx == nil {
			runCtx = context.Background()
		}
		c.dataPoller.triggerAsync(runCtx)
	}
}

// RefreshNow forces an immediate data refresh, coalesced with any poll
// already in flight.
func (c *Controller) RefreshNow() {
	c.mu.Lock()
	runCtx := c.runCtx
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if runCtx == nil {
		runCtx = context.Background()
	}
	c.dataPoller.triggerAsync(runCtx)
	c.chartPoller.triggerAsync(runCtx)
}

// Ask forwards a question plus the current energy series to the assistant.
// When the assistant is unreachable a canned reply is returned so the chat
// panel never dead-ends.
func (c *Controller) Ask(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("message is required")
	}
	c.mu.Lock()
	series := copySeries(c.state.Series)
	c.mu.Unlock()

	if c.src.Assistant == nil {
		return assistantFallback, nil
	}
	reply, err := c.src.Assistant.Ask(ctx, message, series)
	if err != nil {
		c.log.WithError(err).Warn("assistant call failed, using canned reply")
		return assistantFallback, nil
	}
	return reply, nil
}

const assistantFallback = "The assistant service is unreachable right now. " +
	"Based on the cached series, recent usage looks stable; try again in a moment."

// --- polling ---

func (c *Controller) startPollers(ctx context.Context) {
	c.dataPoller.start(ctx)
	c.chartPoller.start(ctx)
}

func (c *Controller) stopPollers() {
	c.dataPoller.stop()
	c.chartPoller.stop()
}

// pollData is the periodic refresh body. Steady-state failures surface as
// feedback and flip the phase to error until a refresh succeeds again.
func (c *Controller) pollData(ctx context.Context) {
	if err := c.fetchData(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.fail("Failed to refresh dashboard data", err)
		c.mu.Lock()
		if !c.closed && c.state.Phase == PhaseReady {
			c.state.Phase = PhaseError
			snap := c.snapshotLocked()
			c.mu.Unlock()
			c.publish(snap)
			return
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if !c.closed && c.state.Phase == PhaseError {
		c.state.Phase = PhaseReady
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return
	}
	c.mu.Unlock()
}

// fetchData fetches metrics and dashboard data and merges both into state.
func (c *Controller) fetchData(ctx context.Context) error {
	metrics, err := c.src.Metrics.Get(ctx)
	if err != nil {
		return err
	}
	data, err := c.src.Dashboard.Data(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.Metrics = &metrics
	c.state.Devices = data.Devices
	c.state.Environment = data.Environment
	c.state.EnergyData = data.EnergyData
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// refreshChart fetches history and forecast. On any failure it substitutes
// a locally generated placeholder series so the chart never renders empty;
// the failure is logged but not surfaced as user feedback.
func (c *Controller) refreshChart(ctx context.Context) {
	series, err := c.fetchSeries(ctx)
	fallback := false
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, api.ErrUnauthorized) {
			c.forceLogout("Session expired, please log in again")
			return
		}
		c.log.WithError(err).Warn("energy series fetch failed, using mock data")
		series = energy.MockSeries(c.clock())
		fallback = true
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Series = series
	c.state.SeriesFallback = fallback
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) fetchSeries(ctx context.Context) (domain.EnergySeries, error) {
	if c.src.Forecast == nil {
		return domain.EnergySeries{}, fmt.Errorf("no forecast source configured")
	}
	history, err := c.src.Forecast.History(ctx)
	if err != nil {
		return domain.EnergySeries{}, err
	}
	return c.src.Forecast.Predict(ctx, history)
}

// --- error handling ---

// fail routes an operation failure: 401 forces a logout, anything else
// becomes a transient error message.
func (c *Controller) fail(prefix string, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		c.forceLogout("Session expired, please log in again")
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.setErrorLocked(prefix + ": " + errText(err))
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// forceLogout transitions to unauthenticated exactly once, no matter how
// many in-flight requests failed concurrently.
func (c *Controller) forceLogout(errMsg string) {
	c.mu.Lock()
	if c.closed || c.state.Phase == PhaseUnauthenticated {
		c.mu.Unlock()
		return
	}
	c.resetStateLocked()
	if errMsg != "" {
		c.setErrorLocked(errMsg)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.stopPollers()
	if err := c.session.Clear(); err != nil {
		c.log.WithError(err).Warn("clear session failed")
	}
	c.publish(snap)
}

// resetStateLocked drops all authenticated state. Caller holds c.mu.
func (c *Controller) resetStateLocked() {
	c.state.Phase = PhaseUnauthenticated
	c.state.AuthMode = ModeLogin
	c.state.Page = PageDashboard
	c.state.User = nil
	c.state.Devices = nil
	c.state.Environment = domain.Environment{}
	c.state.Metrics = nil
	c.state.EnergyData = nil
	c.state.Series = domain.EnergySeries{}
	c.state.SeriesFallback = false
}

// --- helpers ---

// cacheUser persists the minimal user fields next to the token.
func (c *Controller) cacheUser(user domain.User) {
	err := c.session.SetUser(session.CachedUser{
		Username:  user.Username,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	})
	if err != nil {
		c.log.WithError(err).Warn("cache user failed")
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := c.state
	if c.state.User != nil {
		u := *c.state.User
		snap.User = &u
	}
	if c.state.Metrics != nil {
		m := *c.state.Metrics
		snap.Metrics = &m
	}
	snap.Devices = append([]domain.Device(nil), c.state.Devices...)
	snap.EnergyData = append([]domain.EnergyPoint(nil), c.state.EnergyData...)
	snap.Series = copySeries(c.state.Series)
	return snap
}

func (c *Controller) publish(snap Snapshot) {
	c.mu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func copySeries(s domain.EnergySeries) domain.EnergySeries {
	return domain.EnergySeries{
		History:  append([]domain.TimeSeriesPoint(nil), s.History...),
		Forecast: append([]domain.TimeSeriesPoint(nil), s.Forecast...),
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
