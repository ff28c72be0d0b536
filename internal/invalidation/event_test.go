package invalidation

import (
	"encoding/json"
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

const square = `{"type":"Polygon","coordinates":[[[11,55],[12,55],[12,56],[11,56],[11,55]]]}`

func TestEvent_Validate_BBoxAndPolygonMutualExclusion(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpInvalidate, TS: mustTS(),
		BBox:     &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
		Geometry: json.RawMessage(square),
	}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error when both bbox and geometry are set")
	}
}

func TestEvent_Validate_BBoxHappyPath(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpInvalidate, TS: mustTS(),
		BBox: &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestEvent_Area_FromPolygon(t *testing.T) {
	ev := Event{Version: 1, Op: OpInvalidate, TS: mustTS(), Geometry: json.RawMessage(square)}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	bb, err := ev.Area()
	if err != nil {
		t.Fatal(err)
	}
	if bb.X1 != 11 || bb.Y1 != 55 || bb.X2 != 12 || bb.Y2 != 56 {
		t.Fatalf("area=%v", bb)
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	cases := map[string]Event{
		"inverted bbox": {Version: 1, Op: OpInvalidate, TS: mustTS(),
			BBox: &BBox{X1: 12, Y1: 55, X2: 11, Y2: 56, SRID: "EPSG:4326"}},
		"wrong srid": {Version: 1, Op: OpInvalidate, TS: mustTS(),
			BBox: &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:25832"}},
		"point geometry": {Version: 1, Op: OpInvalidate, TS: mustTS(),
			Geometry: json.RawMessage(`{"type":"Point","coordinates":[11,55]}`)},
		"no area":         {Version: 1, Op: OpInvalidate, TS: mustTS()},
		"unknown op":      {Version: 1, Op: "update", TS: mustTS()},
		"version":         {Version: 2, Op: OpRegenerated, TS: mustTS()},
		"missing ts":      {Version: 1, Op: OpRegenerated},
		"regen with bbox": {Version: 1, Op: OpRegenerated, TS: mustTS(), BBox: &BBox{SRID: "EPSG:4326"}},
		"negative gen":    {Version: 1, Op: OpRegenerated, TS: mustTS(), Generation: -1},
	}
	for name, ev := range cases {
		if err := ev.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestRegenerated_IsValid(t *testing.T) {
	ev := Regenerated(3, "host-a")
	if err := ev.Validate(); err != nil {
		t.Fatal(err)
	}
	if ev.Generation != 3 || ev.Op != OpRegenerated {
		t.Fatalf("%+v", ev)
	}
}
