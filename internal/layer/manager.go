// Package layer owns the map-layer lifecycle: the single active
// review/candidate overlay, the long-lived converted-points overlay,
// styling, and popup binding.
package layer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/backend"
	"github.com/gis-qa/reviewer/internal/models"
	"github.com/gis-qa/reviewer/internal/view"
)

// Canvas layer ids. There is exactly one active overlay and one
// converted-points overlay at any time.
const (
	ActiveOverlayID    = "active-overlay"
	ConvertedOverlayID = "converted-points"
)

// DefaultMaxFitZoom caps how far fit-to-bounds may zoom in unless the
// configuration overrides it.
const DefaultMaxFitZoom = 16

// ErrEmptyLayer marks a fetched layer with no features. Callers treat it as
// a soft failure: the map is left unchanged, nothing is surfaced as fatal.
var ErrEmptyLayer = errors.New("layer has no features")

// ErrStaleLoad marks a layer load whose apply guard rejected it: a newer
// selection superseded this one while its fetch was in flight. The map is
// left unchanged.
var ErrStaleLoad = errors.New("layer load superseded by a newer selection")

// LoadedLayer is a realized overlay.
type LoadedLayer struct {
	SourceFilename string
	Type           models.LayerType
	Collection     *geojson.FeatureCollection
}

// Manager drives the canvas. At most one active (review/candidate) overlay
// is attached after any operation; the previous one is always detached
// before its replacement is attached, so stale popups can never remain
// clickable.
type Manager struct {
	client     *backend.Client
	canvas     view.MapCanvas
	cache      *Cache
	sessionID  string
	maxFitZoom int

	mu     sync.Mutex
	active *LoadedLayer

	// beforeReplace runs before the active overlay is removed or replaced.
	// The highlight controller registers its Reset here so a highlight can
	// never reference a feature of a detached layer.
	beforeReplace func()

	logOut io.Writer
}

// NewManager creates a layer manager for one session. cache may be nil.
func NewManager(client *backend.Client, canvas view.MapCanvas, cache *Cache, sessionID string) *Manager {
	return &Manager{
		client:     client,
		canvas:     canvas,
		cache:      cache,
		sessionID:  sessionID,
		maxFitZoom: DefaultMaxFitZoom,
		logOut:     os.Stdout,
	}
}

// SetMaxFitZoom overrides the fit-to-bounds zoom cap. Non-positive values
// keep the default.
func (m *Manager) SetMaxFitZoom(z int) {
	if z > 0 {
		m.maxFitZoom = z
	}
}

// MaxFitZoom returns the fit-to-bounds zoom cap.
func (m *Manager) MaxFitZoom() int { return m.maxFitZoom }

// SetLogOutput redirects the manager's log lines.
func (m *Manager) SetLogOutput(w io.Writer) { m.logOut = w }

func (m *Manager) logf(format string, args ...interface{}) {
	fmt.Fprintf(m.logOut, "[Layers] "+format+"\n", args...)
}

// OnBeforeReplace registers the hook run before the active overlay is
// removed or replaced.
func (m *Manager) OnBeforeReplace(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeReplace = fn
}

// StyleFor is the single style function per layer role. Highlight reverts
// go through it too, so repeated highlight/unhighlight is idempotent.
func StyleFor(typ models.LayerType) view.Style {
	switch typ {
	case models.LayerReview:
		return view.Style{Color: "#d32f2f", FillColor: "#d32f2f", FillOpacity: 0.4, Weight: 2}
	case models.LayerCandidates:
		return view.Style{Color: "#ffb300", FillColor: "#ffb300", FillOpacity: 0.4, Weight: 2}
	case models.LayerConvertedPoints:
		return view.Style{Color: "#2e7d32", FillColor: "#2e7d32", FillOpacity: 0.8, Weight: 1, Radius: 6}
	default:
		return view.Style{Color: "#3388ff", FillOpacity: 0.2, Weight: 2}
	}
}

// HighlightStyle is the fixed emphasis treatment for the selected feature.
func HighlightStyle() view.Style {
	return view.Style{Color: "#00e5ff", FillColor: "#00e5ff", FillOpacity: 0.6, Weight: 4, Radius: 8}
}

// Active returns the currently attached review/candidate overlay, or nil.
func (m *Manager) Active() *LoadedLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LoadActive fetches and attaches a review/candidate overlay, replacing any
// previous one. An empty or missing feature collection returns ErrEmptyLayer
// and leaves the map untouched.
func (m *Manager) LoadActive(ctx context.Context, typ models.LayerType, filename string) (*LoadedLayer, error) {
	return m.LoadActiveGuarded(ctx, typ, filename, nil)
}

// LoadActiveGuarded is LoadActive with an apply guard evaluated after the
// fetch completes and before the overlay swap. A rejected load returns
// ErrStaleLoad without touching the map; the linker uses this to discard
// responses for selections the operator has already moved past.
func (m *Manager) LoadActiveGuarded(ctx context.Context, typ models.LayerType, filename string, apply func() bool) (*LoadedLayer, error) {
	fc, err := m.fetchLayer(ctx, typ, filename)
	if err != nil {
		return nil, err
	}
	if fc == nil || len(fc.Features) == 0 {
		m.logf("layer %s/%s is empty, leaving map unchanged", typ, filename)
		return nil, ErrEmptyLayer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if apply != nil && !apply() {
		m.logf("discarding stale load of %s/%s", typ, filename)
		return nil, ErrStaleLoad
	}

	if m.beforeReplace != nil {
		m.beforeReplace()
	}
	// Detach before attach: two overlapping review layers must never
	// render simultaneously.
	m.canvas.RemoveLayer(ActiveOverlayID)

	loaded := &LoadedLayer{SourceFilename: filename, Type: typ, Collection: fc}
	m.canvas.AddLayer(ActiveOverlayID, fc, StyleFor(typ))
	m.bindPopups(ActiveOverlayID, fc)
	m.active = loaded
	m.logf("loaded %s layer %s (%d features)", typ, filename, len(fc.Features))
	return loaded, nil
}

// RemoveActive detaches the active overlay if one is attached.
func (m *Manager) RemoveActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	if m.beforeReplace != nil {
		m.beforeReplace()
	}
	m.canvas.RemoveLayer(ActiveOverlayID)
	m.active = nil
}

// ReloadConvertedPoints clears and fully repopulates the converted-points
// overlay. It is never diffed incrementally; the backend's answer is the
// whole truth each time.
func (m *Manager) ReloadConvertedPoints(ctx context.Context) (*geojson.FeatureCollection, error) {
	fc, err := m.client.FetchAllValidPoints(ctx, m.sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.canvas.RemoveLayer(ConvertedOverlayID)
	m.canvas.AddLayer(ConvertedOverlayID, fc, StyleFor(models.LayerConvertedPoints))
	m.bindPopups(ConvertedOverlayID, fc)
	m.logf("converted-points overlay repopulated (%d features)", len(fc.Features))
	return fc, nil
}

// FitToLayer pans/zooms to the layer's bounding box. Empty or degenerate
// bounds skip the fit (the converted-points overlay is empty until the
// first conversion).
func (m *Manager) FitToLayer(fc *geojson.FeatureCollection) {
	b, ok := CollectionBound(fc)
	if !ok {
		return
	}
	m.canvas.FitBounds(b, m.maxFitZoom)
}

// PurgeCache drops every cached layer for the session.
func (m *Manager) PurgeCache() {
	if err := m.cache.Purge(); err != nil {
		m.logf("cache purge failed: %v", err)
	}
}

// fetchLayer reads through the disk cache.
func (m *Manager) fetchLayer(ctx context.Context, typ models.LayerType, filename string) (*geojson.FeatureCollection, error) {
	if data, ok := m.cache.Get(typ, filename); ok {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err == nil {
			m.logf("cache hit for %s/%s", typ, filename)
			return fc, nil
		}
		// fall through to a fresh fetch
	}

	fc, err := m.client.FetchLayer(ctx, m.sessionID, typ, filename)
	if err != nil {
		return nil, err
	}
	if data, err := fc.MarshalJSON(); err == nil {
		m.cache.Put(typ, filename, data)
	}
	return fc, nil
}

// bindPopups attaches a diagnosis popup to every feature that carries an
// identifying property.
func (m *Manager) bindPopups(layerID string, fc *geojson.FeatureCollection) {
	for _, f := range fc.Features {
		qaID := FeatureQaID(f)
		if qaID == "" {
			continue
		}
		m.canvas.BindPopup(layerID, qaID, PopupContent(f))
	}
}

// FeatureQaID extracts the qa_assistant_id property.
func FeatureQaID(f *geojson.Feature) string {
	if f == nil || f.Properties == nil {
		return ""
	}
	return f.Properties.MustString("qa_assistant_id", "")
}

// PopupContent summarizes a feature's diagnosis and attribute pills.
func PopupContent(f *geojson.Feature) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QA ID: %s", FeatureQaID(f))
	if issue := f.Properties.MustString("qa_issue", ""); issue != "" {
		fmt.Fprintf(&b, "\nIssue: %s", issue)
	}
	if attrs := f.Properties.MustString("attribute_status", ""); attrs != "" {
		fmt.Fprintf(&b, "\nAttributes: %s", attrs)
	}
	return b.String()
}

// CollectionBound unions the feature bounds. ok is false for an empty
// collection or when no feature carries geometry.
func CollectionBound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	var bound orb.Bound
	found := false
	if fc == nil {
		return bound, false
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			bound = fb
			found = true
		} else {
			bound = bound.Union(fb)
		}
	}
	return bound, found
}
