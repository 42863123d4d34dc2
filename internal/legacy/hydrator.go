// Package legacy reads values written by clients that compressed sheet
// fields with lz-string before storing them.
package legacy

import (
	"encoding/json"
	"strings"
	"unicode/utf16"

	lzstring "github.com/daku10/go-lz-string"
)

// Signature prefixes every compressed string value.
const Signature = "[LZ]"

// Keys that were never compressed. The three array keys may still hold a
// JSON-encoded array in string form.
var excludedKeys = map[string]bool{
	"skillsArray":      true,
	"annotationsArray": true,
	"itemsArray":       true,
	"sheetCode":        true,
}

// LZHydrator expands "[LZ]"-signed lz-string UTF-16 values anywhere inside a
// stored sheet. Values that fail to decompress are kept as they are.
type LZHydrator struct{}

// Hydrate returns a copy of raw with every compressed value expanded.
func (LZHydrator) Hydrate(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	return hydrateObject(raw)
}

func hydrateObject(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = hydrateField(k, v)
	}
	return out
}

func hydrateField(key string, v any) any {
	if excludedKeys[key] {
		if s, ok := v.(string); ok && key != "sheetCode" && looksLikeArray(s) {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return arr
			}
		}
		return v
	}
	return hydrateValue(v)
}

func hydrateValue(v any) any {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, Signature) {
			return expand(t)
		}
		return t
	case map[string]any:
		return hydrateObject(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = hydrateValue(item)
		}
		return out
	default:
		return v
	}
}

// expand decompresses a signed value and decodes it when it holds JSON. The
// stored text is the UTF-16 code unit sequence lz-string produced.
func expand(s string) any {
	units := utf16.Encode([]rune(strings.TrimPrefix(s, Signature)))
	plain, err := lzstring.DecompressFromUTF16(units)
	if err != nil || plain == "" {
		return s
	}
	var decoded any
	if err := json.Unmarshal([]byte(plain), &decoded); err != nil {
		return plain
	}
	switch decoded.(type) {
	case map[string]any, []any:
		return hydrateValue(decoded)
	case nil:
		return plain
	default:
		return decoded
	}
}

func looksLikeArray(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

// Compress produces the signed form Hydrate understands. Only tests and
// fixture tooling write compressed values; the service never does.
func Compress(plain string) (string, error) {
	packed, err := lzstring.CompressToUTF16(plain)
	if err != nil {
		return "", err
	}
	return Signature + string(utf16.Decode(packed)), nil
}
