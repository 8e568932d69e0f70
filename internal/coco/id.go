package coco

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// maxExactFloat is the largest integer a float64 represents exactly.
const maxExactFloat = 1 << 53

// ID is a record identifier that may have been written as a JSON number or a
// JSON string. Two IDs are equal when their canonical strings are equal.
type ID struct {
	key     string
	numeric bool
}

// IntID returns a numeric ID.
func IntID(n int64) ID {
	return ID{key: strconv.FormatInt(n, 10), numeric: true}
}

// StringID returns an ID that is written back as a JSON string.
func StringID(s string) ID {
	return ID{key: s}
}

// String returns the canonical form used for comparison and indexing.
func (id ID) String() string { return id.key }

// IsZero reports whether the ID was never set.
func (id ID) IsZero() bool { return id.key == "" && !id.numeric }

// Equal compares canonical forms, ignoring the JSON representation.
func (id ID) Equal(other ID) bool { return id.key == other.key }

// UnmarshalJSON accepts a number, a string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ID{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}

	key, err := canonicalNumber(string(data))
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID{key: key, numeric: true}
	return nil
}

// MarshalJSON writes numeric IDs as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.key), nil
	}
	return json.Marshal(id.key)
}

// canonicalNumber renders integral values without a fraction so that 7 and
// 7.0 collapse to the same key.
func canonicalNumber(text string) (string, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return "", err
	}
	if f == math.Trunc(f) && math.Abs(f) < maxExactFloat {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
