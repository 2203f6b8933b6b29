package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the controller's position in the playback lifecycle. There is no
// terminal state; a session ends on Close from anywhere.
type State int

const (
	StateIdle State = iota
	StatePreviewing
	StateAwaitingInteraction
	StateActive
	StateRenewing
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreviewing:
		return "previewing"
	case StateAwaitingInteraction:
		return "awaiting-interaction"
	case StateActive:
		return "active"
	case StateRenewing:
		return "renewing"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	DefaultRenewInterval    = 45 * time.Second
	DefaultFailureThreshold = 3
	DefaultFallbackExt      = ".mp4"
)

type Config struct {
	// RenewInterval is how often an Active session requests a fresh grant.
	RenewInterval time.Duration
	// FailureThreshold is the number of consecutive grant failures tolerated;
	// one more and the session degrades to direct-file playback.
	FailureThreshold int
	// FallbackExt is appended to the media id to derive the degraded source.
	FallbackExt string
	// SponsorURL is opened on the first qualifying interaction. The second
	// interaction is the one that starts playback.
	SponsorURL string
}

func (c Config) withDefaults() Config {
	if c.RenewInterval <= 0 {
		c.RenewInterval = DefaultRenewInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.FallbackExt == "" {
		c.FallbackExt = DefaultFallbackExt
	}
	return c
}

// Controller keeps one video continuously playable across grant renewals and
// partial failures. All transitions run under a single lock; grant requests
// are strictly sequential, and a renewal tick that would overlap an in-flight
// request is dropped rather than queued.
type Controller struct {
	cfg         Config
	svc         Service
	surface     Surface
	engines     EngineFactory
	publicToken string

	mu             sync.Mutex
	state          State
	ref            *Reference
	grant          *Grant
	engine         Engine
	failures       int
	clicks         int
	viewRegistered bool
	renewInFlight  bool
	delegated      bool
	stopRenew      chan struct{}
	closed         bool
}

func NewController(svc Service, surface Surface, engines EngineFactory, publicToken string, cfg Config) *Controller {
	return &Controller{
		cfg:         cfg.withDefaults(),
		svc:         svc,
		surface:     surface,
		engines:     engines,
		publicToken: publicToken,
		state:       StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start resolves the public token and attaches a non-autoplaying preview.
// An unknown token is terminal; a failed grant request is not, it only
// counts against the failure threshold.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("start from %s: session already started", c.state)
	}
	c.state = StatePreviewing
	c.mu.Unlock()

	ref, err := c.svc.ResolveReference(ctx, c.publicToken)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", c.publicToken, err)
	}

	grant, err := c.svc.RequestGrant(ctx, ref.EmbedToken)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.ref = ref

	if err != nil || grant == nil || grant.URL == "" {
		c.failures++
		c.state = StateAwaitingInteraction
		return nil
	}
	c.grant = grant

	if grant.Mode == ModeEmbed {
		// Fully delegated: the sub-document manages its own lifecycle and
		// this controller never requests another grant.
		c.surface.MountEmbed(grant.URL)
		c.surface.HideOverlay()
		c.delegated = true
		c.state = StateActive
		return nil
	}

	if grant.Mode == ModeAdaptive && c.engines.Supported() {
		c.engine = c.engines.New(EngineEvents{})
		c.engine.Load(grant.URL)
	} else {
		c.surface.SetSource(grant.URL)
	}
	c.state = StateAwaitingInteraction
	return nil
}

// Interact handles one qualifying click on the overlay. The first click only
// opens the external reference; the second registers the view, hides the
// overlay, requests a grant with playback intent, and starts the renewal
// timer. Further clicks are ignored.
func (c *Controller) Interact(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state != StateAwaitingInteraction {
		c.mu.Unlock()
		return
	}
	c.clicks++
	if c.clicks == 1 {
		url := c.cfg.SponsorURL
		c.mu.Unlock()
		if url != "" {
			c.surface.OpenExternal(url)
		}
		return
	}

	registerView := !c.viewRegistered
	c.viewRegistered = true
	ref := c.ref
	c.renewInFlight = true
	c.state = StateRenewing
	c.mu.Unlock()

	if registerView {
		if err := c.svc.RegisterView(ctx, ref.ID); err != nil {
			slog.Warn("playback: view registration failed", "video_id", ref.ID, "error", err)
		}
	}
	c.surface.HideOverlay()

	grant, err := c.svc.RequestGrant(ctx, ref.EmbedToken)

	c.mu.Lock()
	c.renewInFlight = false
	// Close may have run while the request was in flight; the grant is
	// discarded so no engine or timer outlives teardown.
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.applyGrantLocked(grant, err, true)
	if c.state == StateActive && !c.delegated && c.stopRenew == nil {
		c.startRenewLoopLocked(ctx)
	}
	c.mu.Unlock()
}

// Tick runs one renewal attempt. The timer calls it; a tick arriving while a
// previous attempt is still in flight is suppressed, never queued.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.renewInFlight || c.state == StateDegraded || c.ref == nil {
		c.mu.Unlock()
		return
	}
	if c.state != StateActive || c.delegated {
		c.mu.Unlock()
		return
	}
	ref := c.ref
	c.renewInFlight = true
	c.state = StateRenewing
	c.mu.Unlock()

	grant, err := c.svc.RequestGrant(ctx, ref.EmbedToken)

	c.mu.Lock()
	c.renewInFlight = false
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.applyGrantLocked(grant, err, false)
	c.mu.Unlock()
}

// applyGrantLocked processes the outcome of one grant request. An error and
// an absent grant are the same failure; success swaps the media source while
// preserving the captured playback position.
func (c *Controller) applyGrantLocked(grant *Grant, err error, playNow bool) {
	if err != nil || grant == nil || grant.URL == "" {
		c.failures++
		if c.failures > c.cfg.FailureThreshold {
			c.degradeLocked()
			return
		}
		c.state = StateActive
		return
	}

	c.failures = 0
	c.grant = grant
	pos := c.surface.CurrentTime()
	c.surface.SetLoading(true)

	switch {
	case grant.Mode == ModeEmbed:
		c.releaseEngineLocked()
		c.surface.MountEmbed(grant.URL)
		c.surface.SetLoading(false)
		c.stopRenewLoopLocked()
		c.delegated = true
		c.state = StateActive

	case grant.Mode == ModeAdaptive && c.engines.Supported():
		// Grants are not reusable across engine instances; rebuild from scratch.
		c.releaseEngineLocked()
		surface := c.surface
		engine := c.engines.New(EngineEvents{
			ManifestParsed: func() {
				surface.Seek(pos)
				if playNow {
					surface.Play()
				}
			},
			SegmentBuffered: func() {
				surface.SetLoading(false)
			},
		})
		c.engine = engine
		engine.Load(grant.URL)
		c.state = StateActive

	case grant.Mode == ModeAdaptive && c.surface.CanPlayNativeAdaptive():
		c.surface.SetSource(grant.URL)
		c.surface.Seek(pos)
		if playNow {
			c.surface.Play()
		}
		c.surface.SetLoading(false)
		c.state = StateActive

	default:
		c.surface.SetSource(grant.URL)
		c.surface.Seek(pos)
		if playNow {
			c.surface.Play()
		}
		c.surface.SetLoading(false)
		c.state = StateActive
	}
}

// degradeLocked fails open: best-effort direct playback, no further grants.
func (c *Controller) degradeLocked() {
	c.stopRenewLoopLocked()
	c.releaseEngineLocked()
	c.surface.SetSource(FallbackName(c.ref.MediaID, c.cfg.FallbackExt))
	c.surface.Play()
	c.state = StateDegraded
}

func (c *Controller) startRenewLoopLocked(ctx context.Context) {
	stop := make(chan struct{})
	c.stopRenew = stop
	interval := c.cfg.RenewInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				c.Tick(ctx)
			}
		}
	}()
}

func (c *Controller) stopRenewLoopLocked() {
	if c.stopRenew != nil {
		close(c.stopRenew)
		c.stopRenew = nil
	}
}

func (c *Controller) releaseEngineLocked() {
	if c.engine != nil {
		c.engine.Close()
		c.engine = nil
	}
}

// OnStall and OnResume relay native media stall/resume signals. The loading
// indicator follows them independently of grant renewal outcomes.
func (c *Controller) OnStall() {
	c.surface.SetLoading(true)
}

func (c *Controller) OnResume() {
	c.surface.SetLoading(false)
}

// Close releases the streaming engine and stops the renewal timer. Safe to
// call from any state, including more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopRenewLoopLocked()
	c.releaseEngineLocked()
}
