// Package backend is the HTTP client for the geospatial-audit backend.
// Session ids are explicit arguments on every call; nothing in this package
// reads ambient state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/models"
)

// DefaultTimeout bounds every non-download request.
const DefaultTimeout = 30 * time.Second

// Client talks to the audit backend. Downloads go through a separate,
// timeout-free client; result archives can be large.
type Client struct {
	baseURL  string
	http     *http.Client
	download *http.Client
	logOut   io.Writer
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		download: &http.Client{},
		logOut:   os.Stdout,
	}
}

// SetTimeout overrides the per-request timeout for non-download calls.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.http.Timeout = d
	}
}

// SetLogOutput redirects the client's log lines (tests capture them here).
func (c *Client) SetLogOutput(w io.Writer) { c.logOut = w }

func (c *Client) logf(format string, args ...interface{}) {
	fmt.Fprintf(c.logOut, "[Backend] "+format+"\n", args...)
}

// SessionPayload is the raw body of GET /api/data/{session}. The report
// arrays stay raw so the loader can sanitize malformed shapes instead of
// failing the whole fetch.
type SessionPayload struct {
	SummaryRows    json.RawMessage `json:"summary_report_data"`
	DetailRows     json.RawMessage `json:"detailed_report_data"`
	MapLayers      json.RawMessage `json:"map_layers"`
	CleanFileCount int             `json:"clean_file_count"`
	Error          string          `json:"error"`
}

// ConvertResult is the body of POST /api/convert/{session}/{qaId}.
type ConvertResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ConvertAllResult is the body of POST /api/convert_all/{session}.
type ConvertAllResult struct {
	Success        bool     `json:"success"`
	ConvertedCount int      `json:"converted_count"`
	FailedIDs      []string `json:"failed_ids"`
	Error          string   `json:"error"`
}

// TaskStatus is the body of GET /status/{session}, produced by the
// processing pipeline while an upload is still being validated.
type TaskStatus struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Step     string  `json:"step"`
	Finished bool    `json:"finished"`
	Error    bool    `json:"error"`
}

func (c *Client) get(ctx context.Context, op, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, NewNetworkError(op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	return resp, nil
}

// serverError extracts an error message from a non-2xx response body.
func serverError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return NewServerError(resp.StatusCode, body.Error)
	}
	return NewServerError(resp.StatusCode, "")
}

// FetchSessionData loads the session snapshot. A 2xx body carrying an
// explicit error field is classified as a ServerError.
func (c *Client) FetchSessionData(ctx context.Context, sessionID string) (*SessionPayload, error) {
	resp, err := c.get(ctx, "session data fetch", "/api/data/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp)
	}

	var payload SessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewServerError(resp.StatusCode, fmt.Sprintf("undecodable session payload: %v", err))
	}
	if payload.Error != "" {
		return nil, NewServerError(resp.StatusCode, payload.Error)
	}
	return &payload, nil
}

// FetchLayer loads one named GeoJSON layer. A 404 is a NotFoundError naming
// the file, since conversion removes features (and eventually whole files)
// from their source layers.
func (c *Client) FetchLayer(ctx context.Context, sessionID string, typ models.LayerType, filename string) (*geojson.FeatureCollection, error) {
	path := fmt.Sprintf("/api/geojson/%s/%s/%s",
		url.PathEscape(sessionID), url.PathEscape(string(typ)), url.PathEscape(filename))
	resp, err := c.get(ctx, "layer fetch", path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewNotFoundError(filename)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("layer fetch", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, NewServerError(resp.StatusCode, fmt.Sprintf("invalid geojson in %s: %v", filename, err))
	}
	return fc, nil
}

// FetchAllValidPoints loads the converted-points overlay. The backend
// answers an empty FeatureCollection rather than 404 when nothing has been
// converted yet.
func (c *Client) FetchAllValidPoints(ctx context.Context, sessionID string) (*geojson.FeatureCollection, error) {
	resp, err := c.get(ctx, "valid points fetch", "/api/all_valid_points/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("valid points fetch", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, NewServerError(resp.StatusCode, fmt.Sprintf("invalid valid-points geojson: %v", err))
	}
	return fc, nil
}

// ConvertFeature converts one candidate polygon to a point.
func (c *Client) ConvertFeature(ctx context.Context, sessionID, qaID string) error {
	path := fmt.Sprintf("/api/convert/%s/%s", url.PathEscape(sessionID), url.PathEscape(qaID))
	resp, err := c.postJSON(ctx, "convert", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result ConvertResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return NewConversionError(qaID, fmt.Sprintf("undecodable response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return NewConversionError(qaID, msg)
	}
	c.logf("converted %s in session %s", qaID, shortID(sessionID))
	return nil
}

// ConvertAll converts the given candidate ids in one batch call.
func (c *Client) ConvertAll(ctx context.Context, sessionID string, qaIDs []string) (*ConvertAllResult, error) {
	body := map[string][]string{"qa_ids": qaIDs}
	resp, err := c.postJSON(ctx, "convert all", "/api/convert_all/"+url.PathEscape(sessionID), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ConvertAllResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewConversionError("", fmt.Sprintf("undecodable response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, NewConversionError("", msg)
	}
	c.logf("batch converted %d features in session %s", result.ConvertedCount, shortID(sessionID))
	return &result, nil
}

// FetchStatus reads the processing-progress status of a session.
func (c *Client) FetchStatus(ctx context.Context, sessionID string) (*TaskStatus, error) {
	resp, err := c.get(ctx, "status poll", "/status/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp)
	}
	var status TaskStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, NewServerError(resp.StatusCode, fmt.Sprintf("undecodable status: %v", err))
	}
	return &status, nil
}

// Cleanup releases the session's server-side resources. Called before the
// operator starts reviewing a different upload.
func (c *Client) Cleanup(ctx context.Context, sessionID string) error {
	resp, err := c.postJSON(ctx, "cleanup", "/cleanup/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverError(resp)
	}
	return nil
}

// DownloadResults fetches the zipped results archive into destDir and
// returns the written path. The filename comes from Content-Disposition,
// falling back to defaultName.
func (c *Client) DownloadResults(ctx context.Context, sessionID, destDir string) (string, error) {
	return c.downloadBlob(ctx, "/download/"+url.PathEscape(sessionID), destDir, "qa_results.zip")
}

// DownloadConsolidated fetches the consolidated valid-features file.
func (c *Client) DownloadConsolidated(ctx context.Context, sessionID, destDir string) (string, error) {
	return c.downloadBlob(ctx, "/api/consolidate/"+url.PathEscape(sessionID), destDir, "consolidated_valid_features.geojson")
}

func (c *Client) downloadBlob(ctx context.Context, path, destDir, defaultName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", NewNetworkError("download", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return "", NewNetworkError("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", NewNotFoundError(defaultName)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", serverError(resp)
	}

	name := defaultName
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name = filepath.Base(params["filename"])
		}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	dest := filepath.Join(destDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return "", NewNetworkError("download", err)
	}
	c.logf("downloaded %s", dest)
	return dest, nil
}

// shortID truncates a session id for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
