package models

import "strings"

// FinalStatus is the backend's verdict for a single audited feature.
type FinalStatus string

const (
	StatusValid     FinalStatus = "Valid"
	StatusReview    FinalStatus = "Requires Review"
	StatusCandidate FinalStatus = "Candidate for Conversion"
	StatusUnknown   FinalStatus = ""
)

// ParseFinalStatus maps the wire string to a FinalStatus. Matching is
// case-insensitive; unrecognized values map to StatusUnknown.
func ParseFinalStatus(s string) FinalStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "valid":
		return StatusValid
	case "requires review":
		return StatusReview
	case "candidate for conversion":
		return StatusCandidate
	default:
		return StatusUnknown
	}
}

// FeatureRecord is one row of the detailed report. QaID is the only key
// linking a table row to its geometry on the map.
type FeatureRecord struct {
	QaID             string `json:"qa_assistant_id"`
	FinalStatus      string `json:"final_status"`
	ReasonNotes      string `json:"reason_notes"`
	AttributeStatus  string `json:"attribute_status"`
	OriginalFilename string `json:"original_filename"`
	ActionTaken      string `json:"action_taken"`
}

// Status returns the parsed final status of the record.
func (r *FeatureRecord) Status() FinalStatus {
	return ParseFinalStatus(r.FinalStatus)
}

// AutoFixed reports whether the backend auto-fixed this feature's geometry.
func (r *FeatureRecord) AutoFixed() bool {
	return strings.Contains(strings.ToLower(r.ActionTaken), "auto-fixed")
}

// BaseFilename strips the .geojson suffix from the record's source file.
func (r *FeatureRecord) BaseFilename() string {
	return strings.TrimSuffix(r.OriginalFilename, ".geojson")
}

// LayerTarget resolves which remote layer file holds this record's geometry.
// The backend writes flagged geometry to {base}_review.geojson and
// convertible geometry to {base}_candidates.geojson. Valid records live in
// neither reviewable layer, so ok is false for them.
func (r *FeatureRecord) LayerTarget() (typ LayerType, filename string, ok bool) {
	switch r.Status() {
	case StatusReview:
		return LayerReview, r.BaseFilename() + "_review.geojson", true
	case StatusCandidate:
		return LayerCandidates, r.BaseFilename() + "_candidates.geojson", true
	default:
		return "", "", false
	}
}
