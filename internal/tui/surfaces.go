package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/models"
	"github.com/gis-qa/reviewer/internal/view"
)

// StatusCanvas is the terminal stand-in for a map widget. It cannot draw
// tiles; it tracks what the engine attached and renders a textual status
// pane (layer, feature count, viewport) instead.
type StatusCanvas struct {
	mu sync.Mutex

	layers      map[string]layerState
	popups      map[string]string
	openPopupID string
	viewport    string
}

type layerState struct {
	featureCount int
	style        view.Style
	emphasized   map[string]bool
}

// NewStatusCanvas returns an empty canvas.
func NewStatusCanvas() *StatusCanvas {
	return &StatusCanvas{
		layers: make(map[string]layerState),
		popups: make(map[string]string),
	}
}

func (c *StatusCanvas) AddLayer(id string, fc *geojson.FeatureCollection, style view.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers[id] = layerState{
		featureCount: len(fc.Features),
		style:        style,
		emphasized:   make(map[string]bool),
	}
}

func (c *StatusCanvas) RemoveLayer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.layers, id)
	if c.openPopupID != "" {
		c.openPopupID = ""
	}
}

func (c *StatusCanvas) SetFeatureStyle(layerID, featureID string, style view.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.layers[layerID]
	if !ok {
		return
	}
	l.emphasized[featureID] = style != l.style
	c.layers[layerID] = l
}

func (c *StatusCanvas) BindPopup(layerID, featureID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.popups[layerID+"/"+featureID] = content
}

func (c *StatusCanvas) OpenPopup(layerID, featureID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openPopupID = layerID + "/" + featureID
}

func (c *StatusCanvas) FitBounds(b orb.Bound, maxZoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = fmt.Sprintf("bounds (%.4f, %.4f) to (%.4f, %.4f), zoom <= %d",
		b.Min[0], b.Min[1], b.Max[0], b.Max[1], maxZoom)
}

func (c *StatusCanvas) SetView(center orb.Point, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = fmt.Sprintf("center (%.4f, %.4f), zoom %d", center[0], center[1], zoom)
}

func (c *StatusCanvas) InvalidateSize() {}

// snapshot copies the render-relevant state out under the lock.
func (c *StatusCanvas) snapshot() (layers map[string]layerState, popup, viewport string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	layers = make(map[string]layerState, len(c.layers))
	for id, l := range c.layers {
		layers[id] = l
	}
	if c.openPopupID != "" {
		popup = c.popups[c.openPopupID]
	}
	return layers, popup, c.viewport
}

// SessionPresenter backs both the detail table and the dashboard: it keeps
// the latest rendered snapshot for the bubbletea model to draw from.
type SessionPresenter struct {
	mu      sync.Mutex
	session *models.Session
	counts  models.Counts
	recalcs int
}

func (p *SessionPresenter) Render(sess *models.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = sess
}

func (p *SessionPresenter) RecalculateWidths() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recalcs++
}

// RenderDashboard satisfies view.DashboardPresenter via dashboardAdapter.
func (p *SessionPresenter) renderDashboard(sess *models.Session, counts models.Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = sess
	p.counts = counts
}

func (p *SessionPresenter) snapshot() (*models.Session, models.Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.counts
}

// dashboardAdapter exposes the presenter under the dashboard interface.
type dashboardAdapter struct{ p *SessionPresenter }

func (d dashboardAdapter) Render(sess *models.Session, counts models.Counts) {
	d.p.renderDashboard(sess, counts)
}

// Toast display durations. Success messages clear quickly; errors stay up
// long enough to read.
const (
	successToastTTL = 4 * time.Second
	infoToastTTL    = 6 * time.Second
	errorToastTTL   = 10 * time.Second
)

// Toast is the notifier surface: one transient message line plus the
// blocking overlay used during batch conversion. Messages expire after
// their level's display duration.
type Toast struct {
	mu        sync.Mutex
	level     string
	message   string
	expiresAt time.Time
	overlay   string

	now func() time.Time // test clock
}

func (t *Toast) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Toast) set(level, msg string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level = level
	t.message = msg
	t.expiresAt = t.clock().Add(ttl)
}

func (t *Toast) Success(msg string) { t.set("ok", msg, successToastTTL) }
func (t *Toast) Error(msg string)   { t.set("error", msg, errorToastTTL) }
func (t *Toast) Info(msg string)    { t.set("info", msg, infoToastTTL) }

func (t *Toast) ShowOverlay(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overlay = msg
}

func (t *Toast) HideOverlay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overlay = ""
}

func (t *Toast) snapshot() (level, message, overlay string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.message != "" && !t.clock().Before(t.expiresAt) {
		t.level = ""
		t.message = ""
	}
	return t.level, t.message, t.overlay
}

// remaining reports how long the current message stays visible; zero when
// nothing is displayed. The model schedules a redraw tick from it.
func (t *Toast) remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.message == "" {
		return 0
	}
	d := t.expiresAt.Sub(t.clock())
	if d < 0 {
		return 0
	}
	return d
}

// armedConfirmer implements two-keypress confirmation: the first press of a
// destructive command arms it, the second confirms. The model disarms on any
// other key.
type armedConfirmer struct {
	mu     sync.Mutex
	armed  bool
	always bool
	prompt string
}

func (c *armedConfirmer) Confirm(prompt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.always {
		return true
	}
	if c.armed {
		c.armed = false
		c.prompt = ""
		return true
	}
	c.prompt = prompt
	return false
}

func (c *armedConfirmer) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
}

func (c *armedConfirmer) disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
	c.prompt = ""
}

// autoConfirm makes every confirmation succeed. Headless commands use it;
// the operator already confirmed by passing the flag.
func (c *armedConfirmer) autoConfirm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.always = true
}

func (c *armedConfirmer) pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}
