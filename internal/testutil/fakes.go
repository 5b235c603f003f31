// Package testutil provides fake display surfaces for engine tests.
package testutil

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/models"
	"github.com/gis-qa/reviewer/internal/view"
)

// FakeCanvas records every canvas operation so tests can assert the layer
// lifecycle and highlight behavior.
type FakeCanvas struct {
	mu sync.Mutex

	Layers        map[string]*geojson.FeatureCollection
	LayerStyles   map[string]view.Style
	FeatureStyles map[string]view.Style // key: layerID + "/" + featureID
	Popups        map[string]string
	OpenedPopups  []string
	FitCalls      []orb.Bound
	ViewCalls     []orb.Point
	ZoomCalls     []int
	Invalidations int
}

// NewFakeCanvas returns an empty recording canvas.
func NewFakeCanvas() *FakeCanvas {
	return &FakeCanvas{
		Layers:        make(map[string]*geojson.FeatureCollection),
		LayerStyles:   make(map[string]view.Style),
		FeatureStyles: make(map[string]view.Style),
		Popups:        make(map[string]string),
	}
}

func (c *FakeCanvas) AddLayer(id string, fc *geojson.FeatureCollection, style view.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Layers[id] = fc
	c.LayerStyles[id] = style
}

func (c *FakeCanvas) RemoveLayer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Layers, id)
	delete(c.LayerStyles, id)
}

func (c *FakeCanvas) SetFeatureStyle(layerID, featureID string, style view.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FeatureStyles[layerID+"/"+featureID] = style
}

func (c *FakeCanvas) BindPopup(layerID, featureID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Popups[layerID+"/"+featureID] = content
}

func (c *FakeCanvas) OpenPopup(layerID, featureID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenedPopups = append(c.OpenedPopups, layerID+"/"+featureID)
}

func (c *FakeCanvas) FitBounds(b orb.Bound, maxZoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FitCalls = append(c.FitCalls, b)
	c.ZoomCalls = append(c.ZoomCalls, maxZoom)
}

func (c *FakeCanvas) SetView(center orb.Point, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ViewCalls = append(c.ViewCalls, center)
	c.ZoomCalls = append(c.ZoomCalls, zoom)
}

func (c *FakeCanvas) InvalidateSize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidations++
}

// LayerCount returns the number of attached layers.
func (c *FakeCanvas) LayerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Layers)
}

// HasLayer reports whether a layer id is attached.
func (c *FakeCanvas) HasLayer(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Layers[id]
	return ok
}

// FakeTable records render calls.
type FakeTable struct {
	Rendered []*models.Session
	Recalcs  int
}

func (t *FakeTable) Render(sess *models.Session) { t.Rendered = append(t.Rendered, sess) }
func (t *FakeTable) RecalculateWidths()          { t.Recalcs++ }

// FakeDashboard records render calls.
type FakeDashboard struct {
	Rendered []models.Counts
}

func (d *FakeDashboard) Render(sess *models.Session, counts models.Counts) {
	d.Rendered = append(d.Rendered, counts)
}

// FakeNotifier records every message and overlay transition.
type FakeNotifier struct {
	Successes []string
	Errors    []string
	Infos     []string
	Overlays  []string
	Hidden    int
}

func (n *FakeNotifier) Success(msg string)     { n.Successes = append(n.Successes, msg) }
func (n *FakeNotifier) Error(msg string)       { n.Errors = append(n.Errors, msg) }
func (n *FakeNotifier) Info(msg string)        { n.Infos = append(n.Infos, msg) }
func (n *FakeNotifier) ShowOverlay(msg string) { n.Overlays = append(n.Overlays, msg) }
func (n *FakeNotifier) HideOverlay()           { n.Hidden++ }

// FakeConfirmer answers every confirmation with a canned response.
type FakeConfirmer struct {
	Answer  bool
	Prompts []string
}

func (c *FakeConfirmer) Confirm(prompt string) bool {
	c.Prompts = append(c.Prompts, prompt)
	return c.Answer
}
