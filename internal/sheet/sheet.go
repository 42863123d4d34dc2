package sheet

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Stored field names. They are shared with documents written by earlier clients
// and must not change.
const (
	FieldCode      = "sheetCode"
	FieldName      = "nome"
	FieldLevel     = "nivel"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

const (
	// UnnamedSheet replaces a missing or blank display name.
	UnnamedSheet = "Ficha sem nome"
	// DefaultSheetName is the name of the sheet synthesized for an empty workspace.
	DefaultSheetName = "Ficha principal"
)

// Sheet is one character record. Everything the repository does not interpret
// lives in Fields and round-trips untouched.
type Sheet struct {
	Code      string
	Name      string
	Level     float64
	CreatedAt int64 // ms since epoch
	UpdatedAt int64 // ms since epoch
	Fields    map[string]any
}

func isReserved(key string) bool {
	switch key {
	case FieldCode, FieldName, FieldLevel, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

// Map returns the sheet as a plain JSON object, payload included.
func (s Sheet) Map() map[string]any {
	m := make(map[string]any, len(s.Fields)+5)
	for k, v := range s.Fields {
		if !isReserved(k) {
			m[k] = cloneValue(v)
		}
	}
	m[FieldCode] = s.Code
	m[FieldName] = s.Name
	m[FieldLevel] = s.Level
	m[FieldCreatedAt] = s.CreatedAt
	m[FieldUpdatedAt] = s.UpdatedAt
	return m
}

// Clone returns a deep copy of the sheet.
func (s Sheet) Clone() Sheet {
	c := s
	c.Fields = CloneMap(s.Fields)
	return c
}

func (s Sheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes a stored sheet as-is. It coerces the typed fields but
// never synthesizes ids or timestamps; use a Normalizer for that.
func (s *Sheet) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal sheet: %w", err)
	}
	code, _ := raw[FieldCode].(string)
	name, _ := raw[FieldName].(string)
	*s = Sheet{
		Code:      code,
		Name:      name,
		Level:     toFiniteNumber(raw[FieldLevel], 0),
		CreatedAt: toMillis(raw[FieldCreatedAt], 0),
		UpdatedAt: toMillis(raw[FieldUpdatedAt], 0),
		Fields:    payload(raw),
	}
	return nil
}

// Dedupe keeps one sheet per code: the copy with the greatest UpdatedAt, the
// later one on a tie. Result order follows each code's first appearance.
func Dedupe(sheets []Sheet) []Sheet {
	index := make(map[string]int, len(sheets))
	out := make([]Sheet, 0, len(sheets))
	for _, s := range sheets {
		i, seen := index[s.Code]
		if !seen {
			index[s.Code] = len(out)
			out = append(out, s)
			continue
		}
		if s.UpdatedAt >= out[i].UpdatedAt {
			out[i] = s
		}
	}
	return out
}

// SortByRecent returns a copy ordered most recently updated first, ties broken
// by code so the order never depends on the input.
func SortByRecent(sheets []Sheet) []Sheet {
	out := make([]Sheet, len(sheets))
	copy(out, sheets)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Find returns the sheet with the given code.
func Find(sheets []Sheet, code string) (Sheet, bool) {
	for _, s := range sheets {
		if s.Code == code {
			return s, true
		}
	}
	return Sheet{}, false
}

// Upsert replaces the sheet carrying next.Code, or appends next.
func Upsert(sheets []Sheet, next Sheet) []Sheet {
	out := make([]Sheet, 0, len(sheets)+1)
	for _, s := range sheets {
		if s.Code != next.Code {
			out = append(out, s)
		}
	}
	return append(out, next)
}

// Without drops the sheet carrying code.
func Without(sheets []Sheet, code string) []Sheet {
	out := make([]Sheet, 0, len(sheets))
	for _, s := range sheets {
		if s.Code != code {
			out = append(out, s)
		}
	}
	return out
}

func payload(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if !isReserved(k) {
			out[k] = cloneValue(v)
		}
	}
	return out
}

// CloneMap deep-copies a stored payload: nested objects and arrays are
// copied, scalars are shared.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
