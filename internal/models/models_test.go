package models

import "testing"

func TestParseFinalStatus(t *testing.T) {
	tests := []struct {
		in   string
		want FinalStatus
	}{
		{"Valid", StatusValid},
		{"valid", StatusValid},
		{"Requires Review", StatusReview},
		{"REQUIRES REVIEW", StatusReview},
		{"Candidate for Conversion", StatusCandidate},
		{"candidate for conversion", StatusCandidate},
		{"  Valid  ", StatusValid},
		{"", StatusUnknown},
		{"Rejected", StatusUnknown},
	}

	for _, tt := range tests {
		if got := ParseFinalStatus(tt.in); got != tt.want {
			t.Errorf("ParseFinalStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFeatureRecord_LayerTarget(t *testing.T) {
	tests := []struct {
		name     string
		record   FeatureRecord
		wantType LayerType
		wantFile string
		wantOK   bool
	}{
		{
			name:     "review row maps to _review file",
			record:   FeatureRecord{FinalStatus: "Requires Review", OriginalFilename: "parcels.geojson"},
			wantType: LayerReview,
			wantFile: "parcels_review.geojson",
			wantOK:   true,
		},
		{
			name:     "candidate row maps to _candidates file",
			record:   FeatureRecord{FinalStatus: "Candidate for Conversion", OriginalFilename: "parcels.geojson"},
			wantType: LayerCandidates,
			wantFile: "parcels_candidates.geojson",
			wantOK:   true,
		},
		{
			name:   "valid row has no reviewable layer",
			record: FeatureRecord{FinalStatus: "Valid", OriginalFilename: "parcels.geojson"},
			wantOK: false,
		},
		{
			name:     "filename without suffix is used as-is",
			record:   FeatureRecord{FinalStatus: "Requires Review", OriginalFilename: "plots"},
			wantType: LayerReview,
			wantFile: "plots_review.geojson",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, file, ok := tt.record.LayerTarget()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if typ != tt.wantType || file != tt.wantFile {
				t.Errorf("got (%s, %s), want (%s, %s)", typ, file, tt.wantType, tt.wantFile)
			}
		})
	}
}

func TestComputeCounts(t *testing.T) {
	rows := []FeatureRecord{
		{QaID: "Q1", FinalStatus: "Valid"},
		{QaID: "Q2", FinalStatus: "Valid", ActionTaken: "Geometry Auto-Fixed (buffer 0)"},
		{QaID: "Q3", FinalStatus: "Requires Review"},
		{QaID: "Q4", FinalStatus: "Candidate for Conversion"},
		{QaID: "Q5", FinalStatus: "Candidate for Conversion", ActionTaken: "auto-fixed"},
		{QaID: "Q6", FinalStatus: "something else"},
	}

	c := ComputeCounts(rows)
	if c.Total != 6 {
		t.Errorf("Total = %d, want 6", c.Total)
	}
	if c.Valid != 2 {
		t.Errorf("Valid = %d, want 2", c.Valid)
	}
	if c.Review != 1 {
		t.Errorf("Review = %d, want 1", c.Review)
	}
	if c.Candidate != 2 {
		t.Errorf("Candidate = %d, want 2", c.Candidate)
	}
	if c.Fixed != 2 {
		t.Errorf("Fixed = %d, want 2", c.Fixed)
	}

	empty := ComputeCounts(nil)
	if empty != (Counts{}) {
		t.Errorf("ComputeCounts(nil) = %+v, want zero counts", empty)
	}
}

func TestSession_CandidateIDs(t *testing.T) {
	s := NewEmptySession("abc")
	s.DetailRows = []FeatureRecord{
		{QaID: "Q1", FinalStatus: "Candidate for Conversion"},
		{QaID: "Q2", FinalStatus: "Valid"},
		{QaID: "", FinalStatus: "Candidate for Conversion"}, // unlinked row, skipped
		{QaID: "Q3", FinalStatus: "Candidate for Conversion"},
	}

	ids := s.CandidateIDs()
	if len(ids) != 2 || ids[0] != "Q1" || ids[1] != "Q3" {
		t.Errorf("CandidateIDs() = %v, want [Q1 Q3]", ids)
	}
}
