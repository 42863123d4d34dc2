package sheet

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Hydrator expands legacy-compressed fields of a stored sheet. It must be
// total: values it does not recognise are returned unchanged.
type Hydrator interface {
	Hydrate(raw map[string]any) map[string]any
}

// HydratorFunc adapts a plain function to Hydrator.
type HydratorFunc func(raw map[string]any) map[string]any

func (f HydratorFunc) Hydrate(raw map[string]any) map[string]any { return f(raw) }

// Options controls a single Normalize call.
type Options struct {
	// Hydrate runs the Hydrator first. Leave it off for values produced in the
	// same session, which are already decompressed.
	Hydrate bool
}

// Normalizer turns sheet-like values into canonical Sheets. The zero value is
// usable: no hydration, uuid v4 codes, wall clock.
type Normalizer struct {
	Hydrator Hydrator
	NewID    func() string
	Now      func() time.Time
}

func (n Normalizer) newID() string {
	if n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// NowMillis is the normalizer's clock in milliseconds since epoch.
func (n Normalizer) NowMillis() int64 {
	if n.Now != nil {
		return n.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// Normalize builds a well-formed Sheet from raw. A non-empty forcedID always
// becomes the code, whatever raw carries.
func (n Normalizer) Normalize(raw map[string]any, forcedID string, opts Options) Sheet {
	src := raw
	if src == nil {
		src = map[string]any{}
	} else if opts.Hydrate && n.Hydrator != nil {
		src = n.Hydrator.Hydrate(src)
	}

	code := forcedID
	if code == "" {
		if c, ok := src[FieldCode].(string); ok && strings.TrimSpace(c) != "" {
			code = c
		} else {
			code = n.newID()
		}
	}

	createdAt := toMillis(src[FieldCreatedAt], 0)
	updatedAt := toMillis(src[FieldUpdatedAt], createdAt)
	base := updatedAt
	if base == 0 {
		base = createdAt
	}
	if base == 0 {
		base = n.NowMillis()
	}
	if createdAt == 0 {
		createdAt = base
	}
	if updatedAt == 0 {
		updatedAt = base
	}

	return Sheet{
		Code:      code,
		Name:      SafeName(src[FieldName]),
		Level:     toFiniteNumber(src[FieldLevel], 0),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Fields:    payload(src),
	}
}

// Default synthesizes the sheet of an otherwise empty workspace.
func (n Normalizer) Default() Sheet {
	now := n.NowMillis()
	return Sheet{
		Code:      n.newID(),
		Name:      DefaultSheetName,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    map[string]any{},
	}
}

// SafeName trims v, substituting UnnamedSheet for blanks and non-strings.
func SafeName(v any) string {
	s, ok := v.(string)
	if !ok {
		return UnnamedSheet
	}
	if s = strings.TrimSpace(s); s == "" {
		return UnnamedSheet
	}
	return s
}

// toMillis reads a millisecond timestamp. Values outside the int64 range
// count as unset.
func toMillis(v any, fallback int64) int64 {
	if i, ok := v.(int64); ok {
		return i
	}
	f := toFiniteNumber(v, math.NaN())
	if math.IsNaN(f) || f >= float64(1<<63) || f < -float64(1<<63) {
		return fallback
	}
	return int64(f)
}

func toFiniteNumber(v any, fallback float64) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return fallback
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		f = parsed
	default:
		return fallback
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}
