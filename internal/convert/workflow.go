// Package convert runs the polygon-to-point conversion workflows. The
// backend owns all geometry mutation; after a successful conversion the
// client reloads the whole session snapshot rather than patching state.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/gis-qa/reviewer/internal/backend"
	"github.com/gis-qa/reviewer/internal/session"
	"github.com/gis-qa/reviewer/internal/view"
)

// ReloadFunc is the full-reload hook. The application context supplies it;
// it clears the highlight, drops the active overlay, purges the layer cache,
// refetches the session, and re-renders every surface.
type ReloadFunc func(ctx context.Context) error

// Workflow drives single and batch conversion. The busy flag is the sole
// barrier against double submission; the network calls themselves are not
// idempotent, so the guard matters.
type Workflow struct {
	client    *backend.Client
	store     *session.Store
	notifier  view.Notifier
	confirmer view.Confirmer
	reload    ReloadFunc

	busy atomic.Bool

	logOut io.Writer
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(client *backend.Client, store *session.Store, notifier view.Notifier, confirmer view.Confirmer, reload ReloadFunc) *Workflow {
	return &Workflow{
		client:    client,
		store:     store,
		notifier:  notifier,
		confirmer: confirmer,
		reload:    reload,
		logOut:    os.Stdout,
	}
}

// SetLogOutput redirects the workflow's log lines.
func (w *Workflow) SetLogOutput(out io.Writer) { w.logOut = out }

func (w *Workflow) logf(format string, args ...interface{}) {
	fmt.Fprintf(w.logOut, "[Convert] "+format+"\n", args...)
}

// Busy reports whether a conversion is in flight. Display surfaces disable
// their convert controls while this is true.
func (w *Workflow) Busy() bool { return w.busy.Load() }

// ConvertOne converts a single candidate feature. On success the session is
// fully reloaded; on failure the error is reported and no client state
// changes.
func (w *Workflow) ConvertOne(ctx context.Context, qaID string) error {
	if qaID == "" {
		w.notifier.Error("No feature selected for conversion.")
		return backend.NewValidationError("qa_assistant_id")
	}
	if !w.busy.CompareAndSwap(false, true) {
		w.logf("conversion of %s refused, another conversion is running", qaID)
		return nil
	}
	defer w.busy.Store(false)

	if err := w.client.ConvertFeature(ctx, w.store.SessionID(), qaID); err != nil {
		w.notifier.Error(fmt.Sprintf("Conversion of %s failed: %v", qaID, err))
		return err
	}

	if err := w.reload(ctx); err != nil {
		w.notifier.Error(fmt.Sprintf("%s was converted but the session reload failed: %v", qaID, err))
		return err
	}
	w.notifier.Success(fmt.Sprintf("%s converted to a point.", qaID))
	return nil
}

// ConvertAll converts every remaining candidate in one batch. It asks for
// confirmation first, shows a blocking overlay for the duration, and reloads
// on success. With no candidates it reports and never calls the backend.
func (w *Workflow) ConvertAll(ctx context.Context) error {
	if !w.busy.CompareAndSwap(false, true) {
		w.logf("batch conversion refused, another conversion is running")
		return nil
	}
	defer w.busy.Store(false)

	ids := w.store.Session().CandidateIDs()
	if len(ids) == 0 {
		w.notifier.Info("No features are marked for conversion.")
		return nil
	}

	if !w.confirmer.Confirm(fmt.Sprintf("Convert all %d candidate features to points?", len(ids))) {
		w.logf("batch conversion of %d features cancelled", len(ids))
		return nil
	}

	w.notifier.ShowOverlay(fmt.Sprintf("Converting %d features...", len(ids)))
	defer w.notifier.HideOverlay()

	result, err := w.client.ConvertAll(ctx, w.store.SessionID(), ids)
	if err != nil {
		w.notifier.Error(fmt.Sprintf("Batch conversion failed: %v", err))
		return err
	}

	if err := w.reload(ctx); err != nil {
		w.notifier.Error(fmt.Sprintf("Converted %d features but the session reload failed: %v", result.ConvertedCount, err))
		return err
	}

	if len(result.FailedIDs) > 0 {
		w.notifier.Error(fmt.Sprintf("Converted %d features; %d failed: %v",
			result.ConvertedCount, len(result.FailedIDs), result.FailedIDs))
	} else {
		w.notifier.Success(fmt.Sprintf("Converted %d features to points.", result.ConvertedCount))
	}
	return nil
}
