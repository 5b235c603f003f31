package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/models"
	"github.com/gis-qa/reviewer/internal/view"
)

func TestStatusCanvas_TracksLayerLifecycle(t *testing.T) {
	c := NewStatusCanvas()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))

	c.AddLayer("active-overlay", fc, view.Style{Color: "#d32f2f"})
	layers, _, _ := c.snapshot()
	if layers["active-overlay"].featureCount != 1 {
		t.Fatalf("layer state = %+v", layers["active-overlay"])
	}

	c.SetFeatureStyle("active-overlay", "Q1", view.Style{Color: "#00e5ff"})
	layers, _, _ = c.snapshot()
	if !layers["active-overlay"].emphasized["Q1"] {
		t.Error("differing style must mark the feature emphasized")
	}

	// Reverting to the layer style clears the emphasis flag.
	c.SetFeatureStyle("active-overlay", "Q1", view.Style{Color: "#d32f2f"})
	layers, _, _ = c.snapshot()
	if layers["active-overlay"].emphasized["Q1"] {
		t.Error("layer-default style must clear the emphasis flag")
	}

	c.RemoveLayer("active-overlay")
	layers, _, _ = c.snapshot()
	if len(layers) != 0 {
		t.Error("layer survived removal")
	}
}

func TestStatusCanvas_PopupAndViewport(t *testing.T) {
	c := NewStatusCanvas()
	c.BindPopup("active-overlay", "Q1", "QA ID: Q1")
	c.OpenPopup("active-overlay", "Q1")
	c.SetView(orb.Point{7, 8}, 16)

	_, popup, viewport := c.snapshot()
	if popup != "QA ID: Q1" {
		t.Errorf("popup = %q", popup)
	}
	if !strings.Contains(viewport, "zoom 16") {
		t.Errorf("viewport = %q", viewport)
	}
}

func TestArmedConfirmer_TwoPressFlow(t *testing.T) {
	c := &armedConfirmer{}

	if c.Confirm("Convert all 3 candidate features to points?") {
		t.Fatal("first Confirm must decline and store the prompt")
	}
	if c.pending() == "" {
		t.Fatal("prompt not stored")
	}

	c.arm()
	if !c.Confirm("Convert all 3 candidate features to points?") {
		t.Fatal("armed Confirm must accept")
	}
	if c.pending() != "" {
		t.Error("prompt must clear after acceptance")
	}

	// Any other key disarms.
	c.Confirm("again?")
	c.disarm()
	if c.Confirm("again?") {
		t.Error("disarmed Confirm must decline")
	}
}

func TestSessionPresenter_SnapshotsLatestRender(t *testing.T) {
	p := &SessionPresenter{}
	sess := models.NewEmptySession("sess-1")
	sess.Loaded = true

	dashboardAdapter{p: p}.Render(sess, models.Counts{Total: 4, Candidate: 2})

	got, counts := p.snapshot()
	if got != sess {
		t.Error("presenter lost the session snapshot")
	}
	if counts.Candidate != 2 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestToast_LevelsAndOverlay(t *testing.T) {
	toast := &Toast{}
	toast.Success("done")
	if level, msg, _ := toast.snapshot(); level != "ok" || msg != "done" {
		t.Errorf("snapshot = %q/%q", level, msg)
	}

	toast.ShowOverlay("Converting 3 features...")
	if _, _, overlay := toast.snapshot(); overlay == "" {
		t.Error("overlay not shown")
	}
	toast.HideOverlay()
	if _, _, overlay := toast.snapshot(); overlay != "" {
		t.Error("overlay not hidden")
	}
}

func TestToast_SuccessExpiresBeforeError(t *testing.T) {
	base := time.Now()
	now := base
	toast := &Toast{now: func() time.Time { return now }}

	toast.Success("done")
	now = base.Add(successToastTTL - time.Second)
	if _, msg, _ := toast.snapshot(); msg != "done" {
		t.Fatal("success toast gone before its display duration")
	}
	now = base.Add(successToastTTL)
	if _, msg, _ := toast.snapshot(); msg != "" {
		t.Errorf("success toast still visible after expiry: %q", msg)
	}

	// Errors stay up longer than the success duration.
	errAt := now
	toast.Error("boom")
	now = errAt.Add(successToastTTL + time.Second)
	if _, msg, _ := toast.snapshot(); msg != "boom" {
		t.Fatal("error toast must outlive the success duration")
	}
	now = errAt.Add(errorToastTTL)
	if _, msg, _ := toast.snapshot(); msg != "" {
		t.Errorf("error toast still visible after expiry: %q", msg)
	}
	if toast.remaining() != 0 {
		t.Errorf("remaining() = %v for a cleared toast", toast.remaining())
	}
}
