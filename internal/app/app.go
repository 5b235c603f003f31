// Package app assembles the review engine. Context is the explicit owner of
// every component; it is constructed once in cmd/reviewer and passed by
// reference, never reached through package globals.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gis-qa/reviewer/internal/backend"
	"github.com/gis-qa/reviewer/internal/config"
	"github.com/gis-qa/reviewer/internal/convert"
	"github.com/gis-qa/reviewer/internal/highlight"
	"github.com/gis-qa/reviewer/internal/layer"
	"github.com/gis-qa/reviewer/internal/linker"
	"github.com/gis-qa/reviewer/internal/session"
	"github.com/gis-qa/reviewer/internal/view"
)

// Surfaces are the display collaborators the engine drives. The TUI
// implements them for interactive use; tests substitute fakes.
type Surfaces struct {
	Canvas    view.MapCanvas
	Table     view.TablePresenter
	Dashboard view.DashboardPresenter
	Notifier  view.Notifier
	Confirmer view.Confirmer
}

// Context owns the engine's components and the reload pipeline.
type Context struct {
	Config *config.AppConfig

	Client      *backend.Client
	Store       *session.Store
	Loader      *session.Loader
	Layers      *layer.Manager
	Highlight   *highlight.Controller
	Linker      *linker.Linker
	Convert     *convert.Workflow
	Coordinator *view.Coordinator

	Surfaces Surfaces

	logOut io.Writer
}

// New wires the full component graph for one review session.
func New(cfg *config.AppConfig, surfaces Surfaces) (*Context, error) {
	sessionID := cfg.Backend.SessionID
	if sessionID == "" {
		return nil, fmt.Errorf("no session id configured (set backend.session_id or REVIEWER_SESSION_ID)")
	}

	cache, err := layer.NewCache(cfg.Storage.CacheDirectory, sessionID)
	if err != nil {
		return nil, err
	}

	a := &Context{
		Config:   cfg,
		Surfaces: surfaces,
		logOut:   os.Stdout,
	}
	a.Client = backend.NewClient(cfg.Backend.URL)
	a.Client.SetTimeout(time.Duration(cfg.Backend.TimeoutSeconds) * time.Second)
	a.Store = session.NewStore(sessionID)
	a.Loader = session.NewLoader(a.Client, a.Store)
	a.Layers = layer.NewManager(a.Client, surfaces.Canvas, cache, sessionID)
	a.Layers.SetMaxFitZoom(cfg.Review.MaxFitZoom)
	a.Highlight = highlight.NewController(surfaces.Canvas, a.Layers)
	a.Highlight.SetPointZoom(cfg.Review.PointZoom)
	a.Linker = linker.NewLinker(a.Layers, a.Highlight, surfaces.Notifier)

	confirmer := surfaces.Confirmer
	if !cfg.Review.ConfirmBatchConvert {
		confirmer = skipConfirmer{}
	}
	a.Convert = convert.NewWorkflow(a.Client, a.Store, surfaces.Notifier, confirmer, a.Reload)
	a.Coordinator = view.NewCoordinator(surfaces.Canvas, surfaces.Table)
	return a, nil
}

// skipConfirmer accepts every prompt; substituted for the display confirmer
// when review.confirm_batch_convert is off.
type skipConfirmer struct{}

func (skipConfirmer) Confirm(string) bool { return true }

// SetLogOutput redirects every component's log lines to one writer.
func (a *Context) SetLogOutput(w io.Writer) {
	a.logOut = w
	a.Client.SetLogOutput(w)
	a.Loader.SetLogOutput(w)
	a.Layers.SetLogOutput(w)
	a.Highlight.SetLogOutput(w)
	a.Linker.SetLogOutput(w)
	a.Convert.SetLogOutput(w)
}

func (a *Context) logf(format string, args ...interface{}) {
	fmt.Fprintf(a.logOut, "[App] "+format+"\n", args...)
}

// Reload is the full refresh run after every successful conversion and on
// startup: clear the highlight, drop the active overlay, purge the layer
// cache, refetch the session snapshot, re-render the dashboard and table,
// and repopulate the converted-points overlay. Converted geometry must never
// survive a reload through any client-side cache.
func (a *Context) Reload(ctx context.Context) error {
	a.Highlight.Reset()
	a.Layers.RemoveActive()
	a.Layers.PurgeCache()

	if err := a.Loader.Load(ctx, a.Store.SessionID()); err != nil {
		a.render()
		return err
	}
	a.render()

	if _, err := a.Layers.ReloadConvertedPoints(ctx); err != nil {
		// The report is already up; a missing overlay is worth a log line
		// and a toast, not a failed reload.
		a.logf("converted-points refresh failed: %v", err)
		a.Surfaces.Notifier.Error(fmt.Sprintf("Could not refresh converted points: %v", err))
	}
	return nil
}

func (a *Context) render() {
	sess := a.Store.Session()
	a.Surfaces.Dashboard.Render(sess, a.Store.Counts())
	a.Surfaces.Table.Render(sess)
}

// SelectRow forwards a table selection to the linker and switches to the
// GIS view so the result is visible.
func (a *Context) SelectRow(ctx context.Context, qaID string) error {
	rec, _ := a.Store.Session().FindRecord(qaID)
	a.Coordinator.SwitchTo(view.StateGIS)
	return a.Linker.SelectRow(ctx, rec)
}

// Download fetches the zipped results archive into the configured
// download directory.
func (a *Context) Download(ctx context.Context) (string, error) {
	return a.Client.DownloadResults(ctx, a.Store.SessionID(), a.Config.Storage.DownloadDirectory)
}

// Consolidate fetches the merged valid-features file.
func (a *Context) Consolidate(ctx context.Context) (string, error) {
	return a.Client.DownloadConsolidated(ctx, a.Store.SessionID(), a.Config.Storage.DownloadDirectory)
}

// Cleanup releases the server-side session. Called when the operator is done
// with this upload.
func (a *Context) Cleanup(ctx context.Context) error {
	return a.Client.Cleanup(ctx, a.Store.SessionID())
}
