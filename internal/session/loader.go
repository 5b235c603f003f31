package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gis-qa/reviewer/internal/backend"
	"github.com/gis-qa/reviewer/internal/models"
)

// Loader fetches the session payload and populates the store. Payload shape
// problems are recovered locally: a missing or non-array report block is
// sanitized into an empty slice and the session still counts as loaded.
// Only the fetch itself failing marks the session with HasError, and even
// then the store ends up with a well-formed empty snapshot so no reader
// ever observes nil.
type Loader struct {
	client *backend.Client
	store  *Store
	logOut io.Writer
}

// NewLoader creates a loader writing log lines to stdout.
func NewLoader(client *backend.Client, store *Store) *Loader {
	return &Loader{client: client, store: store, logOut: os.Stdout}
}

// SetLogOutput redirects the loader's log lines.
func (l *Loader) SetLogOutput(w io.Writer) { l.logOut = w }

func (l *Loader) logf(format string, args ...interface{}) {
	fmt.Fprintf(l.logOut, "[Loader] "+format+"\n", args...)
}

// Load fetches and installs the snapshot for sessionID. On failure the store
// is replaced with an empty error-flagged session and the failure returned.
func (l *Loader) Load(ctx context.Context, sessionID string) error {
	payload, err := l.client.FetchSessionData(ctx, sessionID)
	if err != nil {
		l.logf("session %s load failed: %v", shortID(sessionID), err)
		sess := models.NewEmptySession(sessionID)
		sess.HasError = true
		l.store.Replace(sess)
		return err
	}

	sess := sanitize(sessionID, payload, l.logf)
	l.store.Replace(sess)
	l.logf("session %s loaded: %d detail rows, %d layers, %d clean files",
		shortID(sessionID), len(sess.DetailRows), len(sess.MapLayers), sess.CleanFileCount)
	return nil
}

// sanitize converts the raw payload into a well-formed session. Each report
// block is decoded independently; a block that is absent or not an array
// degrades to empty rather than failing the load.
func sanitize(sessionID string, payload *backend.SessionPayload, logf func(string, ...interface{})) *models.Session {
	sess := models.NewEmptySession(sessionID)
	sess.Loaded = true
	sess.CleanFileCount = payload.CleanFileCount

	if len(payload.SummaryRows) > 0 {
		var rows []map[string]string
		if err := json.Unmarshal(payload.SummaryRows, &rows); err != nil {
			logf("malformed summary_report_data, using empty: %v", err)
		} else {
			sess.SummaryRows = rows
		}
	}

	if len(payload.DetailRows) > 0 {
		var rows []models.FeatureRecord
		if err := json.Unmarshal(payload.DetailRows, &rows); err != nil {
			logf("malformed detailed_report_data, using empty: %v", err)
		} else {
			sess.DetailRows = rows
		}
	}

	if len(payload.MapLayers) > 0 {
		var layers []models.MapLayerDescriptor
		if err := json.Unmarshal(payload.MapLayers, &layers); err != nil {
			logf("malformed map_layers, using empty: %v", err)
		} else {
			sess.MapLayers = layers
		}
	}

	return sess
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
