package catalog

import (
	"strings"
	"testing"
)

const sample = `[
  {"OBJECT_ID": "2023-047A", "TLE_LINE1": "1 00001U", "TLE_LINE2": "2 00001"},
  {"OBJECT_ID": "UNKNOWN", "TLE_LINE1": "1 00002U", "TLE_LINE2": "2 00002"},
  {"OBJECT_ID": "2023-047D", "TLE_LINE1": "1 00003U", "TLE_LINE2": "2 00003"}
]`

func TestLoadFiltersUnknown(t *testing.T) {
	objs, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects after filtering UNKNOWN, got %d", len(objs))
	}
	for _, o := range objs {
		if o.ObjectID == unknownID {
			t.Fatalf("UNKNOWN entry survived filtering")
		}
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	if _, err := Load(strings.NewReader("not json")); err == nil {
		t.Fatal("expected a decode error")
	}
}
