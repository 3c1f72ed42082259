// Package catalog loads the object descriptors (identifier + two-line
// element set) that the rest of the pipeline propagates and screens.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// unknownID is filtered out of every catalog before allocation; it marks
// a tracked object whose identifying data was never resolved upstream.
const unknownID = "UNKNOWN"

// Object is a single tracked object: an opaque identifier plus the two
// ASCII lines of its orbital element set.
type Object struct {
	ObjectID string `json:"OBJECT_ID"`
	Line1    string `json:"TLE_LINE1"`
	Line2    string `json:"TLE_LINE2"`
}

// Load reads a catalog from r (a JSON array of Object records) and drops
// any entry whose ObjectID is the literal string "UNKNOWN".
func Load(r io.Reader) ([]Object, error) {
	var raw []Object
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return Filter(raw), nil
}

// LoadFile opens path and loads a catalog from it.
func LoadFile(path string) ([]Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Filter drops entries whose ObjectID is "UNKNOWN", preserving order.
func Filter(objects []Object) []Object {
	out := make([]Object, 0, len(objects))
	for _, o := range objects {
		if o.ObjectID == unknownID {
			continue
		}
		out = append(out, o)
	}
	return out
}
