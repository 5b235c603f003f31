package models

// Session is the client-side snapshot of one audited upload. It is replaced
// wholesale after any mutation that can invalidate derived geometry (every
// conversion forces a reload); it is never patched in place.
type Session struct {
	ID             string
	SummaryRows    []map[string]string
	DetailRows     []FeatureRecord
	MapLayers      []MapLayerDescriptor
	CleanFileCount int
	Loaded         bool
	HasError       bool
}

// Counts are the aggregates derived from DetailRows. They are recomputed
// from scratch on every session replacement.
type Counts struct {
	Total     int
	Review    int
	Candidate int
	Valid     int
	Fixed     int
}

// NewEmptySession returns a well-formed session with no data, used as the
// fallback whenever loading fails so downstream readers never see nil slices.
func NewEmptySession(id string) *Session {
	return &Session{
		ID:          id,
		SummaryRows: make([]map[string]string, 0),
		DetailRows:  make([]FeatureRecord, 0),
		MapLayers:   make([]MapLayerDescriptor, 0),
	}
}

// ComputeCounts partitions the detail rows by final status and action taken.
func ComputeCounts(rows []FeatureRecord) Counts {
	c := Counts{Total: len(rows)}
	for i := range rows {
		switch rows[i].Status() {
		case StatusReview:
			c.Review++
		case StatusCandidate:
			c.Candidate++
		case StatusValid:
			c.Valid++
		}
		if rows[i].AutoFixed() {
			c.Fixed++
		}
	}
	return c
}

// CandidateIDs returns the qa ids of every row still marked convertible.
func (s *Session) CandidateIDs() []string {
	ids := make([]string, 0)
	for i := range s.DetailRows {
		if s.DetailRows[i].Status() == StatusCandidate && s.DetailRows[i].QaID != "" {
			ids = append(ids, s.DetailRows[i].QaID)
		}
	}
	return ids
}

// FindRecord returns the detail row with the given qa id.
func (s *Session) FindRecord(qaID string) (*FeatureRecord, bool) {
	for i := range s.DetailRows {
		if s.DetailRows[i].QaID == qaID {
			return &s.DetailRows[i], true
		}
	}
	return nil, false
}
