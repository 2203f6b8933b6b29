package playback

// Surface is the presentation layer the controller drives: a media element,
// the interaction overlay, and the loading indicator.
type Surface interface {
	// MountEmbed replaces the player wholesale with an embedded sub-document.
	MountEmbed(url string)
	// SetSource assigns a URL directly as the media source.
	SetSource(url string)
	// CurrentTime reports the playback position in seconds.
	CurrentTime() float64
	// Seek moves the playback position.
	Seek(seconds float64)
	// Play starts or resumes playback.
	Play()
	// CanPlayNativeAdaptive reports whether the runtime plays adaptive
	// manifests natively, without a streaming engine.
	CanPlayNativeAdaptive() bool
	HideOverlay()
	SetLoading(visible bool)
	// OpenExternal opens an unrelated external reference in a new context.
	OpenExternal(url string)
}

// EngineEvents carries the readiness callbacks one engine instance reports.
// Either callback may be nil.
type EngineEvents struct {
	// ManifestParsed fires once the manifest is loaded and the media is seekable.
	ManifestParsed func()
	// SegmentBuffered fires when enough data has buffered to resume.
	SegmentBuffered func()
}

// Engine is one adaptive-streaming engine instance bound to the surface's
// media element. Instances are single-use: a renewal tears the old one down
// and constructs a replacement, so at most one is ever live.
type Engine interface {
	Load(url string)
	Close()
}

// EngineFactory constructs engine instances for a runtime, or reports that
// adaptive playback is unsupported there.
type EngineFactory interface {
	Supported() bool
	New(events EngineEvents) Engine
}
