package devstub

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gis-qa/reviewer/internal/backend"
	"github.com/gis-qa/reviewer/internal/models"
)

func newStubClient(t *testing.T) *backend.Client {
	t.Helper()
	stub := NewServer()
	stub.AddSession(FixtureSession("sess-1"))
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL)
	client.SetLogOutput(&bytes.Buffer{})
	return client
}

func TestStub_ConversionMovesFeature(t *testing.T) {
	client := newStubClient(t)
	ctx := context.Background()

	if err := client.ConvertFeature(ctx, "sess-1", "C1"); err != nil {
		t.Fatalf("ConvertFeature() error: %v", err)
	}

	// The candidates layer no longer carries C1.
	fc, err := client.FetchLayer(ctx, "sess-1", models.LayerCandidates, "parcels_candidates.geojson")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range fc.Features {
		if f.Properties.MustString("qa_assistant_id", "") == "C1" {
			t.Error("C1 still present in candidates layer after conversion")
		}
	}

	// The valid-points set gained a point at the polygon's center.
	points, err := client.FetchAllValidPoints(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(points.Features) != 1 {
		t.Fatalf("valid points = %d, want 1", len(points.Features))
	}

	// The report row was rewritten.
	payload, err := client.FetchSessionData(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(payload.DetailRows, []byte(`"final_status":"Valid"`)) {
		t.Error("converted row's status not rewritten to Valid")
	}
}

func TestStub_ConvertUnknownFeatureFails(t *testing.T) {
	client := newStubClient(t)

	if err := client.ConvertFeature(context.Background(), "sess-1", "NOPE"); err == nil {
		t.Fatal("expected a conversion error for an unknown feature")
	}
}

func TestStub_ConvertAllEmptiesCandidates(t *testing.T) {
	client := newStubClient(t)
	ctx := context.Background()

	result, err := client.ConvertAll(ctx, "sess-1", []string{"C1", "C2", "GHOST"})
	if err != nil {
		t.Fatalf("ConvertAll() error: %v", err)
	}
	if result.ConvertedCount != 2 {
		t.Errorf("converted = %d, want 2", result.ConvertedCount)
	}
	if len(result.FailedIDs) != 1 || result.FailedIDs[0] != "GHOST" {
		t.Errorf("failed ids = %v", result.FailedIDs)
	}

	// The emptied candidates file disappears, like the real pipeline's.
	if _, err := client.FetchLayer(ctx, "sess-1", models.LayerCandidates, "parcels_candidates.geojson"); !backend.IsNotFound(err) {
		t.Errorf("expected NotFound after the last candidate converted, got %v", err)
	}
}

func TestStub_CleanupRemovesSession(t *testing.T) {
	client := newStubClient(t)
	ctx := context.Background()

	if err := client.Cleanup(ctx, "sess-1"); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if _, err := client.FetchSessionData(ctx, "sess-1"); err == nil {
		t.Fatal("session data still served after cleanup")
	}
}

func TestStub_ScriptedProgress(t *testing.T) {
	stub := NewServer()
	sess := FixtureSession("sess-1")
	sess.Progress = []float64{10, 60, 100}
	stub.AddSession(sess)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL)
	client.SetLogOutput(&bytes.Buffer{})
	ctx := context.Background()

	var seen []float64
	for i := 0; i < 3; i++ {
		status, err := client.FetchStatus(ctx, "sess-1")
		if err != nil {
			t.Fatal(err)
		}
		seen = append(seen, status.Progress)
	}
	if seen[0] != 10 || seen[1] != 60 || seen[2] != 100 {
		t.Errorf("progress sequence = %v", seen)
	}
}
