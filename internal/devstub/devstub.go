// Package devstub embeds a stand-in audit backend speaking the same HTTP
// contract as the production service. It serves fixture sessions from
// memory; conversion rewrites the fixture the way the real pipeline does,
// so integration tests can assert the full reload semantics end to end.
package devstub

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb/geojson"

	"github.com/gis-qa/reviewer/internal/models"
)

// Session is one in-memory fixture: the report rows plus the GeoJSON
// collections the report rows point at.
type Session struct {
	ID             string
	SummaryRows    []map[string]string
	DetailRows     []models.FeatureRecord
	MapLayers      []models.MapLayerDescriptor
	CleanFileCount int

	// Layer collections keyed by filename.
	Review      map[string]*geojson.FeatureCollection
	Candidates  map[string]*geojson.FeatureCollection
	ValidPoints *geojson.FeatureCollection

	// Progress is a scripted status sequence; each /status poll consumes
	// one entry, the last entry repeats with finished=true.
	Progress []float64
	polled   int
}

// Server is the stub backend.
type Server struct {
	echo *echo.Echo

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer creates an empty stub. Add fixture sessions before serving.
func NewServer() *Server {
	s := &Server{
		echo:     echo.New(),
		sessions: make(map[string]*Session),
	}
	s.echo.HideBanner = true
	s.registerRoutes()
	return s
}

// AddSession registers a fixture session.
func (s *Server) AddSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ValidPoints == nil {
		sess.ValidPoints = geojson.NewFeatureCollection()
	}
	s.sessions[sess.ID] = sess
}

// Handler exposes the stub as an http.Handler for httptest servers.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on the given address (used by `reviewer --stub` demos).
func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) registerRoutes() {
	e := s.echo
	e.GET("/api/data/:session", s.handleData)
	e.GET("/api/geojson/:session/:type/:filename", s.handleLayer)
	e.GET("/api/all_valid_points/:session", s.handleValidPoints)
	e.POST("/api/convert/:session/:qaId", s.handleConvert)
	e.POST("/api/convert_all/:session", s.handleConvertAll)
	e.GET("/api/consolidate/:session", s.handleConsolidate)
	e.GET("/download/:session", s.handleDownload)
	e.POST("/cleanup/:session", s.handleCleanup)
	e.GET("/status/:session", s.handleStatus)
}

func (s *Server) session(c echo.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[c.Param("session")]
	if !ok {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found or expired"})
	}
	return sess, nil
}

func (s *Server) handleData(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"summary_report_data":  sess.SummaryRows,
		"detailed_report_data": sess.DetailRows,
		"map_layers":           sess.MapLayers,
		"clean_file_count":     sess.CleanFileCount,
	})
}

func (s *Server) handleLayer(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var fc *geojson.FeatureCollection
	switch models.LayerType(c.Param("type")) {
	case models.LayerReview:
		fc = sess.Review[c.Param("filename")]
	case models.LayerCandidates:
		fc = sess.Candidates[c.Param("filename")]
	}
	if fc == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Layer not found"})
	}
	return c.JSON(http.StatusOK, fc)
}

func (s *Server) handleValidPoints(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, sess.ValidPoints)
}

func (s *Server) handleConvert(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	qaID := c.Param("qaId")

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.convertLocked(sess, qaID) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("Feature %s is not a conversion candidate", qaID),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleConvertAll(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	var body struct {
		QaIDs []string `json:"qa_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid request body",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	converted := 0
	failed := make([]string, 0)
	for _, id := range body.QaIDs {
		if s.convertLocked(sess, id) {
			converted++
		} else {
			failed = append(failed, id)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":         true,
		"converted_count": converted,
		"failed_ids":      failed,
	})
}

// convertLocked moves one candidate feature into the valid-points set and
// rewrites its report row. Caller holds s.mu.
func (s *Server) convertLocked(sess *Session, qaID string) bool {
	for filename, fc := range sess.Candidates {
		for i, f := range fc.Features {
			if f.Properties.MustString("qa_assistant_id", "") != qaID {
				continue
			}

			center := f.Geometry.Bound().Center()
			point := geojson.NewFeature(center)
			point.Properties = f.Properties.Clone()
			point.Properties["converted_from"] = filename
			sess.ValidPoints.Append(point)

			fc.Features = append(fc.Features[:i], fc.Features[i+1:]...)
			if len(fc.Features) == 0 {
				delete(sess.Candidates, filename)
			}

			for j := range sess.DetailRows {
				if sess.DetailRows[j].QaID == qaID {
					sess.DetailRows[j].FinalStatus = "Valid"
					sess.DetailRows[j].ActionTaken = "Converted polygon to point"
				}
			}
			return true
		}
	}
	return false
}

func (s *Server) handleConsolidate(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	s.mu.Lock()
	data, merr := sess.ValidPoints.MarshalJSON()
	s.mu.Unlock()
	if merr != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": merr.Error()})
	}
	c.Response().Header().Set("Content-Disposition", `attachment; filename="consolidated_valid_features.geojson"`)
	return c.Blob(http.StatusOK, "application/geo+json", data)
}

func (s *Server) handleDownload(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	// Not a real zip; integration tests only assert the transfer.
	name := fmt.Sprintf("qa_results_%s.zip", sess.ID)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/zip", []byte("PK stub archive"))
}

func (s *Server) handleCleanup(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, c.Param("session"))
	return c.JSON(http.StatusOK, map[string]string{"status": "cleaned"})
}

func (s *Server) handleStatus(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sess.Progress) == 0 {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"progress": 100, "message": "Complete", "step": "done", "finished": true,
		})
	}
	idx := sess.polled
	if idx >= len(sess.Progress) {
		idx = len(sess.Progress) - 1
	} else {
		sess.polled++
	}
	p := sess.Progress[idx]
	return c.JSON(http.StatusOK, map[string]interface{}{
		"progress": p,
		"message":  fmt.Sprintf("Processing (%.0f%%)", p),
		"step":     "validate",
		"finished": idx == len(sess.Progress)-1 && p >= 100,
	})
}

// FixtureSession builds the canned demo session used by tests and
// `reviewer --stub`: two source files, one review layer, one candidates
// layer, and report rows pointing at them.
func FixtureSession(id string) *Session {
	polygon := func(qaID string, x, y float64) *geojson.Feature {
		f, _ := geojson.UnmarshalFeature([]byte(fmt.Sprintf(
			`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[%f,%f],[%f,%f],[%f,%f],[%f,%f],[%f,%f]]]},"properties":{"qa_assistant_id":%q,"qa_issue":"area below threshold"}}`,
			x, y, x, y+1, x+1, y+1, x+1, y, x, y, qaID)))
		return f
	}

	review := geojson.NewFeatureCollection()
	review.Append(polygon("R1", 0, 0))

	candidates := geojson.NewFeatureCollection()
	candidates.Append(polygon("C1", 10, 10))
	candidates.Append(polygon("C2", 20, 20))

	return &Session{
		ID: id,
		SummaryRows: []map[string]string{
			{"filename": "parcels.geojson", "status": "Issues Found"},
			{"filename": "roads.geojson", "status": "Clean"},
		},
		DetailRows: []models.FeatureRecord{
			{QaID: "R1", FinalStatus: "Requires Review", OriginalFilename: "parcels.geojson",
				ReasonNotes: "overlapping boundary"},
			{QaID: "C1", FinalStatus: "Candidate for Conversion", OriginalFilename: "parcels.geojson",
				ReasonNotes: "area below threshold"},
			{QaID: "C2", FinalStatus: "Candidate for Conversion", OriginalFilename: "parcels.geojson",
				ReasonNotes: "area below threshold"},
			{QaID: "V1", FinalStatus: "Valid", OriginalFilename: "roads.geojson",
				ActionTaken: "geometry auto-fixed"},
		},
		MapLayers: []models.MapLayerDescriptor{
			{Filename: "parcels_review.geojson", Label: "parcels (review)", Type: string(models.LayerReview)},
			{Filename: "parcels_candidates.geojson", Label: "parcels (candidates)", Type: string(models.LayerCandidates)},
		},
		CleanFileCount: 1,
		Review:         map[string]*geojson.FeatureCollection{"parcels_review.geojson": review},
		Candidates:     map[string]*geojson.FeatureCollection{"parcels_candidates.geojson": candidates},
	}
}
