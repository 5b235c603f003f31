package models

// LayerType identifies which backend layer directory a file belongs to.
// The values are the path segments of /api/geojson/{session}/{type}/{file}.
type LayerType string

const (
	LayerReview     LayerType = "review"
	LayerCandidates LayerType = "candidates"
	// LayerConvertedPoints is the client-side accumulator overlay of
	// already-converted geometry. It is not fetched through /api/geojson;
	// it comes from /api/all_valid_points.
	LayerConvertedPoints LayerType = "convertedPoints"
)

// MapLayerDescriptor is one entry of the session payload's map_layers list.
// It is a navigation aid for the layer panel; loading the layer still goes
// through the geojson endpoint.
type MapLayerDescriptor struct {
	Filename string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
}
