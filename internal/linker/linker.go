// Package linker resolves a detail-table row to its geometry: it figures
// out which remote layer file owns the row's feature, loads that layer if
// it is not already up, and drives the highlight and zoom.
package linker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/gis-qa/reviewer/internal/highlight"
	"github.com/gis-qa/reviewer/internal/layer"
	"github.com/gis-qa/reviewer/internal/models"
	"github.com/gis-qa/reviewer/internal/view"
)

// Linker is the row→feature state machine. Each selection carries a request
// token; a layer load finishing after a newer selection started is discarded
// instead of overwriting the newer selection's view.
type Linker struct {
	layers    *layer.Manager
	highlight *highlight.Controller
	notifier  view.Notifier

	mu     sync.Mutex
	latest string

	logOut io.Writer
}

// NewLinker creates a linker over the given manager and controller.
func NewLinker(layers *layer.Manager, hl *highlight.Controller, notifier view.Notifier) *Linker {
	return &Linker{layers: layers, highlight: hl, notifier: notifier, logOut: os.Stdout}
}

// SetLogOutput redirects the linker's log lines.
func (l *Linker) SetLogOutput(w io.Writer) { l.logOut = w }

func (l *Linker) logf(format string, args ...interface{}) {
	fmt.Fprintf(l.logOut, "[Linker] "+format+"\n", args...)
}

// newToken registers a new selection and returns its token.
func (l *Linker) newToken() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latest = uuid.New().String()
	return l.latest
}

func (l *Linker) isLatest(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest == token
}

// SelectRow shows the geometry behind a table row. Rows without a qa id or
// without a reviewable layer (Valid rows) produce an informational message
// and no network traffic.
func (l *Linker) SelectRow(ctx context.Context, rec *models.FeatureRecord) error {
	if rec == nil || rec.QaID == "" {
		l.notifier.Info("This row has no GIS link.")
		return nil
	}

	typ, filename, ok := rec.LayerTarget()
	if !ok {
		l.notifier.Info(fmt.Sprintf("%s is valid; it has no review geometry to show.", rec.QaID))
		return nil
	}

	token := l.newToken()

	// Already-loaded check: same source file and same status-derived layer
	// role means no fetch at all.
	if active := l.layers.Active(); active != nil &&
		active.SourceFilename == filename && active.Type == typ {
		l.zoomTo(rec.QaID, active)
		return nil
	}

	loaded, err := l.layers.LoadActiveGuarded(ctx, typ, filename, func() bool {
		return l.isLatest(token)
	})
	switch {
	case errors.Is(err, layer.ErrStaleLoad):
		l.logf("selection of %s superseded, dropping result", rec.QaID)
		return nil
	case errors.Is(err, layer.ErrEmptyLayer):
		l.logf("layer %s for %s came back empty", filename, rec.QaID)
		return nil
	case err != nil:
		// Conversion removes features from their source layers, so a
		// missing file most often means the operator already converted it.
		l.notifier.Error(fmt.Sprintf(
			"Could not load layer %s. The feature may have already been converted. (%v)",
			filename, err))
		return err
	}

	if !l.isLatest(token) {
		// A newer selection won between the swap and the highlight.
		return nil
	}
	l.zoomTo(rec.QaID, loaded)
	return nil
}

// zoomTo highlights the feature, falling back to the layer's full extent
// when the qa id is absent from the loaded collection.
func (l *Linker) zoomTo(qaID string, loaded *layer.LoadedLayer) {
	if l.highlight.Highlight(qaID) {
		return
	}
	l.logf("feature %s absent from %s, showing full extent", qaID, loaded.SourceFilename)
	l.layers.FitToLayer(loaded.Collection)
}
