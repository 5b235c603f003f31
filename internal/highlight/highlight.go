// Package highlight tracks the one emphasized feature on the map.
package highlight

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/paulmach/orb"

	"github.com/gis-qa/reviewer/internal/layer"
	"github.com/gis-qa/reviewer/internal/models"
	"github.com/gis-qa/reviewer/internal/view"
)

// DefaultPointZoom is the zoom level used when centering on point geometry
// unless the configuration overrides it.
const DefaultPointZoom = 16

// state is the current highlight: the feature's qa id and the role of the
// layer that owns it. It must only ever reference the attached active
// overlay; the layer manager resets it before any replacement.
type state struct {
	qaID      string
	layerType models.LayerType
}

// Controller applies and reverts the visual emphasis of a single feature.
type Controller struct {
	canvas    view.MapCanvas
	layers    *layer.Manager
	pointZoom int

	mu      sync.Mutex
	current *state

	logOut io.Writer
}

// NewController wires the controller into the layer manager's replacement
// hook so a highlight can never outlive its owning layer.
func NewController(canvas view.MapCanvas, layers *layer.Manager) *Controller {
	c := &Controller{canvas: canvas, layers: layers, pointZoom: DefaultPointZoom, logOut: os.Stdout}
	layers.OnBeforeReplace(c.Reset)
	return c
}

// SetPointZoom overrides the zoom level used for point geometry.
// Non-positive values keep the default.
func (c *Controller) SetPointZoom(z int) {
	if z > 0 {
		c.pointZoom = z
	}
}

// SetLogOutput redirects the controller's log lines.
func (c *Controller) SetLogOutput(w io.Writer) { c.logOut = w }

func (c *Controller) logf(format string, args ...interface{}) {
	fmt.Fprintf(c.logOut, "[Highlight] "+format+"\n", args...)
}

// Highlight emphasizes the feature with the given qa id within the active
// overlay and zooms to it. Returns false when the feature is absent from
// the loaded layer; the caller leaves the view at the layer's full extent.
func (c *Controller) Highlight(qaID string) bool {
	active := c.layers.Active()
	if active == nil {
		c.logf("no active layer to highlight %s in", qaID)
		return false
	}

	c.Reset()

	var found *orb.Bound
	var isPoint bool
	for _, f := range active.Collection.Features {
		if layer.FeatureQaID(f) != qaID || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		found = &b
		_, isPoint = f.Geometry.(orb.Point)
		break
	}
	if found == nil {
		c.logf("feature %s not in layer %s, leaving full extent", qaID, active.SourceFilename)
		return false
	}

	c.mu.Lock()
	c.current = &state{qaID: qaID, layerType: active.Type}
	c.mu.Unlock()

	c.canvas.SetFeatureStyle(layer.ActiveOverlayID, qaID, layer.HighlightStyle())
	c.canvas.OpenPopup(layer.ActiveOverlayID, qaID)

	if isPoint {
		c.canvas.SetView(found.Center(), c.pointZoom)
	} else {
		c.canvas.FitBounds(*found, c.layers.MaxFitZoom())
	}
	return true
}

// Reset reverts the current highlight by reapplying the owning layer's
// style function. Going through the style function (never a copied style
// literal) keeps repeated highlight/reset cycles idempotent. Reset is safe
// to call when nothing is highlighted.
func (c *Controller) Reset() {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()

	if cur == nil {
		return
	}
	c.canvas.SetFeatureStyle(layer.ActiveOverlayID, cur.qaID, layer.StyleFor(cur.layerType))
}

// Current returns the highlighted qa id, or "" when nothing is emphasized.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.qaID
}
