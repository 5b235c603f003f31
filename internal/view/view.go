// Package view defines the display surfaces the engine drives and the
// coordinator that switches between them. The surfaces are pure display:
// implementations render, they never own state or reload data.
package view

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/models"
)

// Style is the visual treatment of a layer or a single feature.
type Style struct {
	Color       string
	FillColor   string
	FillOpacity float64
	Weight      int
	Radius      int // circle-marker radius for point geometry
}

// MapCanvas is the map surface. Layers are identified by the id the engine
// assigns; features within a layer by their qa_assistant_id property.
type MapCanvas interface {
	// AddLayer attaches a feature collection under the given id.
	AddLayer(id string, fc *geojson.FeatureCollection, style Style)
	// RemoveLayer detaches a layer. Removing an unknown id is a no-op.
	RemoveLayer(id string)
	// SetFeatureStyle overrides one feature's style within a layer.
	SetFeatureStyle(layerID, featureID string, style Style)
	// BindPopup attaches popup content to a feature.
	BindPopup(layerID, featureID, content string)
	// OpenPopup opens a previously bound popup.
	OpenPopup(layerID, featureID string)
	// FitBounds pans and zooms to the given bound, capped at maxZoom.
	FitBounds(b orb.Bound, maxZoom int)
	// SetView centers the map at a point with a fixed zoom.
	SetView(center orb.Point, zoom int)
	// InvalidateSize tells the canvas its container size changed. Needed
	// after the map was hidden (zero-sized) while the dashboard was shown.
	InvalidateSize()
}

// TablePresenter renders the detail table.
type TablePresenter interface {
	Render(sess *models.Session)
	// RecalculateWidths re-measures columns after the table container
	// becomes visible again.
	RecalculateWidths()
}

// DashboardPresenter renders the summary cards and charts.
type DashboardPresenter interface {
	Render(sess *models.Session, counts models.Counts)
}

// Notifier is the shared toast/message surface. Success messages are
// short-lived, errors stay up long enough to read.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
	// ShowOverlay blocks all interactive controls with a message until
	// HideOverlay is called (used for batch conversion).
	ShowOverlay(msg string)
	HideOverlay()
}

// Confirmer asks the operator a yes/no question before a destructive batch
// operation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// State is the active top-level view.
type State string

const (
	StateDashboard State = "dashboard"
	StateGIS       State = "gis"
)

// Coordinator is the two-state machine between the dashboard and the
// map/table view. Switching toggles surface visibility and runs the
// layout fixups; it never reloads data.
type Coordinator struct {
	canvas MapCanvas
	table  TablePresenter
	state  State
}

// NewCoordinator starts in the dashboard state.
func NewCoordinator(canvas MapCanvas, table TablePresenter) *Coordinator {
	return &Coordinator{canvas: canvas, table: table, state: StateDashboard}
}

// Current returns the active state.
func (c *Coordinator) Current() State { return c.state }

// SwitchTo transitions to the given state. Entering GIS triggers the map
// resize fixup and a table width recalculation, since both were hidden and
// zero-sized while the dashboard was up.
func (c *Coordinator) SwitchTo(target State) {
	if target == c.state {
		return
	}
	c.state = target
	if target == StateGIS {
		c.canvas.InvalidateSize()
		c.table.RecalculateWidths()
	}
}
