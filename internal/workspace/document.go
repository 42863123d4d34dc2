package workspace

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ryanbastic/go-sheetspace/internal/sheet"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

// SchemaVersion is the layout every write produces.
const SchemaVersion = 2

// Stored document fields.
const (
	fieldSchemaVersion = "schemaVersion"
	fieldActiveSheetID = "activeSheetId"
	fieldData          = "data"
	fieldSheets        = "sheets"
	fieldSheetsMap     = "sheetsMap"
	fieldUpdatedAt     = "updatedAt"
	fieldMigratedAt    = "migratedAt"
)

// Where a workspace's sheets were read from.
const (
	SourceAbsent      = "absent"
	SourceEmpty       = "empty"
	SourceCanonical   = "canonical"
	SourceLegacyArray = "legacy_array"
	SourceLegacyMap   = "legacy_sheets_map"
)

// An extractor pulls raw sheet objects out of one document layout. Entries
// that are not JSON objects are dropped, never reported.
type extractor struct {
	source  string
	extract func(doc storage.Document) []map[string]any
}

// extractors are tried in order; the first non-empty result wins. The
// canonical data/sheets pair always beats sheetsMap, which is only a fallback
// for documents written before schema 2.
var extractors = []extractor{
	{source: SourceCanonical, extract: func(doc storage.Document) []map[string]any {
		if schemaVersion(doc) != SchemaVersion {
			return nil
		}
		return dataAndSheets(doc)
	}},
	{source: SourceLegacyArray, extract: func(doc storage.Document) []map[string]any {
		if schemaVersion(doc) == SchemaVersion {
			return nil
		}
		return dataAndSheets(doc)
	}},
	{source: SourceLegacyMap, extract: legacySheetsMap},
}

func dataAndSheets(doc storage.Document) []map[string]any {
	var out []map[string]any
	if data, ok := doc[fieldData].(map[string]any); ok {
		out = append(out, data)
	}
	if list, ok := doc[fieldSheets].([]any); ok {
		out = append(out, objects(list)...)
	}
	return out
}

func legacySheetsMap(doc storage.Document) []map[string]any {
	m, ok := doc[fieldSheetsMap].(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]any, 0, len(m))
	for _, k := range keys {
		list = append(list, m[k])
	}
	return objects(list)
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// extract normalizes the first layout that yields anything. Stored values may
// carry legacy compression, so they are always hydrated. minted reports that
// at least one entry had no code and was given a fresh one, which only
// sticks once the document is rewritten.
func extract(doc storage.Document, n sheet.Normalizer) (sheets []sheet.Sheet, source string, minted bool) {
	for _, e := range extractors {
		raw := e.extract(doc)
		if len(raw) == 0 {
			continue
		}
		sheets = make([]sheet.Sheet, 0, len(raw))
		for _, r := range raw {
			if !hasCode(r) {
				minted = true
			}
			sheets = append(sheets, n.Normalize(r, "", sheet.Options{Hydrate: true}))
		}
		return sheets, e.source, minted
	}
	return nil, SourceEmpty, false
}

func hasCode(raw map[string]any) bool {
	c, ok := raw[sheet.FieldCode].(string)
	return ok && strings.TrimSpace(c) != ""
}

// resolveActiveID picks the active pointer: the stored pointer, then the
// legacy data.sheetCode, then the most recently updated sheet. sheets must
// already be sorted by recency.
func resolveActiveID(doc storage.Document, sheets []sheet.Sheet) string {
	if len(sheets) == 0 {
		return ""
	}
	candidates := []string{stringField(doc, fieldActiveSheetID)}
	if data, ok := doc[fieldData].(map[string]any); ok {
		code, _ := data[sheet.FieldCode].(string)
		candidates = append(candidates, code)
	}
	for _, id := range candidates {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if _, ok := sheet.Find(sheets, id); ok {
			return id
		}
	}
	return sheets[0].Code
}

func schemaVersion(doc storage.Document) int {
	switch v := doc[fieldSchemaVersion].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

func stringField(doc storage.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

// encode renders the canonical stored form of a workspace view.
func encode(ws *Workspace, now int64) storage.Document {
	inactive := make([]any, len(ws.InactiveSheets))
	for i, s := range ws.InactiveSheets {
		inactive[i] = s.Map()
	}
	return storage.Document{
		fieldSchemaVersion: SchemaVersion,
		fieldActiveSheetID: ws.ActiveSheetID,
		fieldData:          ws.ActiveSheet.Map(),
		fieldSheets:        inactive,
		fieldSheetsMap:     nil,
		fieldUpdatedAt:     now,
	}
}
