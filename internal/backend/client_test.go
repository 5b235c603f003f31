package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gis-qa/reviewer/internal/models"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL)
	c.SetLogOutput(&bytes.Buffer{})
	return c, srv
}

func TestClient_FetchSessionData(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		errStatus int
	}{
		{
			name:   "well-formed payload",
			status: http.StatusOK,
			body: `{"summary_report_data":[{"File":"a.geojson"}],` +
				`"detailed_report_data":[{"qa_assistant_id":"Q1","final_status":"Valid"}],` +
				`"map_layers":[{"name":"a_review.geojson","label":"a.geojson","type":"review"}],` +
				`"clean_file_count":2}`,
		},
		{
			name:      "explicit error field in 2xx body",
			status:    http.StatusOK,
			body:      `{"error":"Session not complete or failed"}`,
			wantErr:   true,
			errStatus: http.StatusOK,
		},
		{
			name:      "404 session",
			status:    http.StatusNotFound,
			body:      `{"error":"Session not found"}`,
			wantErr:   true,
			errStatus: http.StatusNotFound,
		},
		{
			name:      "500 without body",
			status:    http.StatusInternalServerError,
			body:      ``,
			wantErr:   true,
			errStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/data/sess-1", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			payload, err := c.FetchSessionData(context.Background(), "sess-1")
			if tt.wantErr {
				require.Error(t, err)
				var se *ServerError
				require.True(t, errors.As(err, &se), "expected ServerError, got %T", err)
				assert.Equal(t, tt.errStatus, se.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, payload.CleanFileCount)
			assert.NotEmpty(t, payload.DetailRows)
		})
	}
}

func TestClient_FetchSessionData_NetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nothing listens here
	c.SetLogOutput(&bytes.Buffer{})

	_, err := c.FetchSessionData(context.Background(), "sess-1")
	var ne *NetworkError
	require.True(t, errors.As(err, &ne), "expected NetworkError, got %T", err)
}

func TestClient_FetchLayer(t *testing.T) {
	fc := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[10,20]},` +
		`"properties":{"qa_assistant_id":"Q1"}}]}`

	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/geojson/sess-1/review/parcels_review.geojson":
			w.Write([]byte(fc))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Layer not found"}`))
		}
	}))
	defer srv.Close()

	got, err := c.FetchLayer(context.Background(), "sess-1", models.LayerReview, "parcels_review.geojson")
	require.NoError(t, err)
	require.Len(t, got.Features, 1)
	assert.Equal(t, "Q1", got.Features[0].Properties.MustString("qa_assistant_id", ""))

	_, err = c.FetchLayer(context.Background(), "sess-1", models.LayerReview, "gone_review.geojson")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "expected NotFoundError, got %T", err)
	assert.Contains(t, err.Error(), "gone_review.geojson")
}

func TestClient_ConvertFeature(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantErr bool
	}{
		{name: "success", body: `{"success":true}`, status: http.StatusOK},
		{name: "explicit failure", body: `{"success":false,"error":"feature not a candidate"}`, status: http.StatusOK, wantErr: true},
		{name: "server failure", body: `{"success":false,"error":"boom"}`, status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				assert.Equal(t, http.MethodPost, r.Method)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := c.ConvertFeature(context.Background(), "sess-1", "Q1")
			assert.Equal(t, "/api/convert/sess-1/Q1", gotPath)
			if tt.wantErr {
				var ce *ConversionError
				require.True(t, errors.As(err, &ce), "expected ConversionError, got %T", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClient_ConvertAll(t *testing.T) {
	var gotBody map[string][]string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"success":true,"converted_count":3,"failed_ids":[]}`))
	}))
	defer srv.Close()

	result, err := c.ConvertAll(context.Background(), "sess-1", []string{"Q1", "Q2", "Q3"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ConvertedCount)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, gotBody["qa_ids"])
}

func TestClient_DownloadResults(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		wantName    string
	}{
		{
			name:        "filename from header",
			disposition: `attachment; filename="eudr_results_2026-01-05.zip"`,
			wantName:    "eudr_results_2026-01-05.zip",
		},
		{
			name:     "default name when header missing",
			wantName: "qa_results.zip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.disposition != "" {
					w.Header().Set("Content-Disposition", tt.disposition)
				}
				w.Write([]byte("zip-bytes"))
			}))
			defer srv.Close()

			dir := t.TempDir()
			path, err := c.DownloadResults(context.Background(), "sess-1", dir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.wantName), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "zip-bytes", string(data))
		})
	}
}

func TestClient_Cleanup(t *testing.T) {
	var called bool
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/cleanup/sess-1", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	require.NoError(t, c.Cleanup(context.Background(), "sess-1"))
	assert.True(t, called)
}

func TestClient_TimeoutConfiguration(t *testing.T) {
	c := NewClient("http://localhost:5000")
	assert.Equal(t, DefaultTimeout, c.http.Timeout)

	c.SetTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.http.Timeout)

	// Non-positive values keep the current timeout.
	c.SetTimeout(0)
	assert.Equal(t, 5*time.Second, c.http.Timeout)

	// Downloads go through their own client and never inherit the
	// per-request timeout.
	require.NotNil(t, c.download)
	assert.Equal(t, time.Duration(0), c.download.Timeout)
}
