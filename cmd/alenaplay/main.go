// Command alenaplay runs a headless playback session against a deployment:
// it resolves a public embed token, walks the two-click activation, and then
// holds the session open through grant renewals. Useful as a smoke check
// that the grant lifecycle works end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alenastream/alenastream/internal/playback"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "deployment base URL")
	token := flag.String("token", "", "public embed token to play")
	watch := flag.Duration("watch", 2*time.Minute, "how long to hold the session open")
	interval := flag.Duration("renew-interval", playback.DefaultRenewInterval, "grant renewal interval")
	flag.Parse()

	if *token == "" {
		slog.Error("alenaplay: -token is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	surface := &headlessSurface{}
	ctrl := playback.NewController(
		playback.NewClient(*baseURL),
		surface,
		noEngine{},
		*token,
		playback.Config{RenewInterval: *interval},
	)
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, playback.ErrNotFound) {
			slog.Error("alenaplay: video not found", "token", *token)
			os.Exit(1)
		}
		slog.Error("alenaplay: session start failed", "error", err)
		os.Exit(1)
	}
	slog.Info("alenaplay: previewing", "state", ctrl.State().String())

	// The two-click activation: the first click is the sponsor side-channel,
	// the second starts playback and the renewal loop.
	ctrl.Interact(ctx)
	ctrl.Interact(ctx)
	slog.Info("alenaplay: activated", "state", ctrl.State().String())

	select {
	case <-ctx.Done():
	case <-time.After(*watch):
	}
	slog.Info("alenaplay: session closed", "state", ctrl.State().String(), "source", surface.Source())
}

// headlessSurface stands in for the embed page: it tracks the current source
// and a synthetic playback position instead of rendering anything.
type headlessSurface struct {
	mu       sync.Mutex
	source   string
	playing  bool
	playedAt time.Time
	position float64
	loading  bool
	embedded bool
}

func (s *headlessSurface) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *headlessSurface) MountEmbed(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = url
	s.embedded = true
	slog.Info("alenaplay: mounted embedded sub-document")
}

func (s *headlessSurface) SetSource(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncPositionLocked()
	s.source = url
	slog.Info("alenaplay: source swapped")
}

func (s *headlessSurface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncPositionLocked()
	return s.position
}

func (s *headlessSurface) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = seconds
	s.playedAt = time.Now()
}

func (s *headlessSurface) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	s.playedAt = time.Now()
}

func (s *headlessSurface) CanPlayNativeAdaptive() bool { return false }

func (s *headlessSurface) HideOverlay() {
	slog.Info("alenaplay: overlay hidden")
}

func (s *headlessSurface) SetLoading(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = visible
}

func (s *headlessSurface) OpenExternal(url string) {
	slog.Info("alenaplay: sponsor reference opened", "url", url)
}

// syncPositionLocked advances the synthetic position by wall-clock time spent
// playing since the last sync.
func (s *headlessSurface) syncPositionLocked() {
	if s.playing {
		s.position += time.Since(s.playedAt).Seconds()
		s.playedAt = time.Now()
	}
}

// noEngine reports adaptive playback unsupported, forcing the direct-source
// fallback paths a plain media element would take.
type noEngine struct{}

func (noEngine) Supported() bool                           { return false }
func (noEngine) New(playback.EngineEvents) playback.Engine { return nil }
