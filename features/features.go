package features

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind says which side of a match a record describes.
type Kind string

const (
	KindResume  Kind = "resume"
	KindPosting Kind = "posting"
)

// DocumentFeatures is the feature record of one résumé owner or one posting.
// Text, Terms and Embedding are always produced together from the same input.
type DocumentFeatures struct {
	OwnerID   int64     `json:"owner_id"`
	Text      string    `json:"text"`
	Terms     []string  `json:"terms"`
	Embedding []float32 `json:"embedding"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the record carries no usable text.
func (f *DocumentFeatures) Empty() bool {
	return f == nil || strings.TrimSpace(f.Text) == ""
}

// Clone returns a deep copy, so stores can hand out records without sharing
// slices with their own state.
func (f *DocumentFeatures) Clone() *DocumentFeatures {
	if f == nil {
		return nil
	}
	c := *f
	c.Terms = append([]string(nil), f.Terms...)
	c.Embedding = append([]float32(nil), f.Embedding...)
	if c.Terms == nil {
		c.Terms = []string{}
	}
	if c.Embedding == nil {
		c.Embedding = []float32{}
	}
	return &c
}

// Record is a structured posting as received from the service layer.
// Values may be strings, numbers, booleans or lists of those.
type Record map[string]interface{}

// DefaultFieldOrder lists the posting fields that make up its text.
var DefaultFieldOrder = []string{
	"titulo", "descripcion", "requisitos", "responsabilidades", "ubicacion", "tipo", "salario",
}

// PostingText flattens a record into one newline-joined text. Fields are read
// in fieldOrder and list values are joined with spaces. Absent, empty, zero
// and false values are skipped, as are fields not named in fieldOrder.
func PostingText(r Record, fieldOrder []string) string {
	parts := make([]string, 0, len(fieldOrder))
	for _, k := range fieldOrder {
		if s := flatten(r[k]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func flatten(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if !x {
			return ""
		}
		return "true"
	case []string:
		return strings.Join(x, " ")
	case []interface{}:
		items := make([]string, 0, len(x))
		for _, item := range x {
			if s := flatten(item); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, " ")
	case map[string]interface{}:
		// Nested objects flatten in key order so the text is reproducible.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := flatten(x[k]); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, " ")
	case int:
		return nonZero(x != 0, x)
	case int64:
		return nonZero(x != 0, x)
	case float64:
		return nonZero(x != 0, x)
	default:
		return fmt.Sprint(x)
	}
}

func nonZero(ok bool, v interface{}) string {
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}
