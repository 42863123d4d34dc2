// Package workspace reconciles a user's active character sheet with the
// parked ones, all stored as a single denormalized document per user.
//
// Every operation is a full read-normalize-mutate-write cycle: the document
// is loaded, migrated from whichever legacy layout it uses, changed in memory
// and written back whole. The repository keeps no state between calls.
//
// An empty user id means "not authenticated": every operation then returns a
// nil result and a nil error without touching the store.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ryanbastic/go-sheetspace/internal/metrics"
	"github.com/ryanbastic/go-sheetspace/internal/sheet"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

// Workspace is the reconciled view of one user's sheets. It is derived on
// every read and never stored in this shape.
type Workspace struct {
	ActiveSheetID  string        `json:"activeSheetId"`
	ActiveSheet    sheet.Sheet   `json:"activeSheet"`
	InactiveSheets []sheet.Sheet `json:"inactiveSheets"`
	AllSheets      []sheet.Sheet `json:"allSheets"`
}

// Repository is the only writer of workspace documents.
type Repository struct {
	store      storage.DocumentStore
	normalizer sheet.Normalizer
	logger     *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithNormalizer replaces the sheet normalizer (hydrator, id source, clock).
func WithNormalizer(n sheet.Normalizer) Option {
	return func(r *Repository) { r.normalizer = n }
}

// New creates a Repository on top of store.
func New(store storage.DocumentStore, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{store: store, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func view(sheets []sheet.Sheet, activeID string) *Workspace {
	active, ok := sheet.Find(sheets, activeID)
	if !ok {
		active = sheets[0]
	}
	inactive := make([]sheet.Sheet, 0, len(sheets)-1)
	for _, s := range sheets {
		if s.Code != active.Code {
			inactive = append(inactive, s)
		}
	}
	return &Workspace{
		ActiveSheetID:  active.Code,
		ActiveSheet:    active,
		InactiveSheets: inactive,
		AllSheets:      sheets,
	}
}

// ensure loads the user's workspace, synthesizing and migrating as needed.
func (r *Repository) ensure(ctx context.Context, userID string) (*Workspace, error) {
	doc, exists, err := r.store.Read(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read workspace document: %w", err)
	}

	sheets, source, minted := extract(doc, r.normalizer)
	if !exists {
		source = SourceAbsent
	}
	if len(sheets) == 0 {
		sheets = []sheet.Sheet{r.normalizer.Default()}
	}
	sheets = sheet.SortByRecent(sheet.Dedupe(sheets))
	ws := view(sheets, resolveActiveID(doc, sheets))

	if !minted && schemaVersion(doc) == SchemaVersion && stringField(doc, fieldActiveSheetID) == ws.ActiveSheetID {
		return ws, nil
	}

	persisted, err := r.persist(ctx, userID, ws.AllSheets, ws.ActiveSheetID, storage.Document{
		fieldMigratedAt: r.normalizer.NowMillis(),
	})
	if err != nil {
		return nil, fmt.Errorf("migrate workspace document: %w", err)
	}
	metrics.ObserveMigration(source)
	r.logger.Info("workspace document normalized",
		"user_id", userID,
		"source", source,
		"from_version", schemaVersion(doc),
		"sheets", len(persisted.AllSheets),
	)
	return persisted, nil
}

// persist re-deduplicates the full set, rebuilds the view and writes a single
// canonical document. The legacy sheetsMap is tombstoned so it can never
// resurrect sheets on a later read.
func (r *Repository) persist(ctx context.Context, userID string, all []sheet.Sheet, activeID string, extra storage.Document) (*Workspace, error) {
	sheets := sheet.SortByRecent(sheet.Dedupe(all))
	if len(sheets) == 0 {
		sheets = []sheet.Sheet{r.normalizer.Default()}
	}
	ws := view(sheets, activeID)

	doc := encode(ws, r.normalizer.NowMillis())
	for k, v := range extra {
		doc[k] = v
	}
	if err := r.store.Write(ctx, userID, doc, storage.WriteOptions{Merge: true}); err != nil {
		return nil, fmt.Errorf("write workspace document: %w", err)
	}
	return ws, nil
}

// snapshot normalizes live application state into the slot identified by
// code, keeping createdAt and stamping updatedAt.
func (r *Repository) snapshot(data map[string]any, code string, createdAt int64) sheet.Sheet {
	now := r.normalizer.NowMillis()
	raw := make(map[string]any, len(data)+2)
	for k, v := range data {
		raw[k] = v
	}
	if createdAt == 0 {
		createdAt = now
	}
	raw[sheet.FieldCreatedAt] = createdAt
	raw[sheet.FieldUpdatedAt] = now
	return r.normalizer.Normalize(raw, code, sheet.Options{})
}

func (r *Repository) observe(op, userID string, start time.Time, found bool, err error) {
	result := metrics.ResultOK
	switch {
	case err != nil:
		result = metrics.ResultError
		r.logger.Error("workspace operation failed", "operation", op, "user_id", userID, "error", err)
	case userID == "":
		result = metrics.ResultNoIdentity
	case !found:
		result = metrics.ResultNotFound
	}
	metrics.ObserveOperation(op, result, time.Since(start))
}

// GetWorkspace returns the reconciled workspace, migrating the stored
// document on first contact. Repeated calls without writes in between are
// read-only.
func (r *Repository) GetWorkspace(ctx context.Context, userID string) (ws *Workspace, err error) {
	defer func(start time.Time) { r.observe("get_workspace", userID, start, ws != nil, err) }(time.Now())
	if userID == "" {
		return nil, nil
	}
	return r.ensure(ctx, userID)
}

// EnsureWorkspace makes sure a canonical document exists for the user.
func (r *Repository) EnsureWorkspace(ctx context.Context, userID string) (*Workspace, error) {
	return r.GetWorkspace(ctx, userID)
}

// ActiveSheet returns just the active sheet.
func (r *Repository) ActiveSheet(ctx context.Context, userID string) (*sheet.Sheet, error) {
	ws, err := r.GetWorkspace(ctx, userID)
	if err != nil || ws == nil {
		return nil, err
	}
	active := ws.ActiveSheet
	return &active, nil
}

// InactiveSheets returns the parked sheets, most recently updated first.
func (r *Repository) InactiveSheets(ctx context.Context, userID string) ([]sheet.Sheet, error) {
	ws, err := r.GetWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return []sheet.Sheet{}, nil
	}
	return ws.InactiveSheets, nil
}

// SaveActiveSheet stores data as the active sheet. The active sheetCode never
// changes here, whatever data claims.
func (r *Repository) SaveActiveSheet(ctx context.Context, userID string, data map[string]any) (ws *Workspace, err error) {
	defer func(start time.Time) { r.observe("save_active_sheet", userID, start, ws != nil, err) }(time.Now())
	if userID == "" {
		return nil, nil
	}

	current, err := r.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := r.snapshot(data, current.ActiveSheetID, current.ActiveSheet.CreatedAt)
	return r.persist(ctx, userID, sheet.Upsert(current.AllSheets, next), current.ActiveSheetID, nil)
}

// SwitchActiveSheet moves the active pointer to target. When currentActive is
// non-nil it is saved under the previous active id in the same write that
// moves the pointer, so edits in flight are never dropped. Returns nil when
// target is unknown.
func (r *Repository) SwitchActiveSheet(ctx context.Context, userID, target string, currentActive map[string]any) (active *sheet.Sheet, err error) {
	defer func(start time.Time) { r.observe("switch_active_sheet", userID, start, active != nil, err) }(time.Now())
	if userID == "" {
		return nil, nil
	}

	current, err := r.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := sheet.Find(current.AllSheets, target); !ok {
		return nil, nil
	}

	all := current.AllSheets
	if currentActive != nil {
		all = sheet.Upsert(all, r.snapshot(currentActive, current.ActiveSheetID, current.ActiveSheet.CreatedAt))
	}
	ws, err := r.persist(ctx, userID, all, target, nil)
	if err != nil {
		return nil, err
	}
	result := ws.ActiveSheet
	return &result, nil
}

// CreateSheet adds a blank sheet without touching the active pointer.
// Display names need not be unique.
func (r *Repository) CreateSheet(ctx context.Context, userID, name string) (created *sheet.Sheet, err error) {
	defer func(start time.Time) { r.observe("create_sheet", userID, start, created != nil, err) }(time.Now())
	if userID == "" {
		return nil, nil
	}

	current, err := r.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := r.normalizer.NowMillis()
	next := r.normalizer.Normalize(map[string]any{
		sheet.FieldName:      name,
		sheet.FieldLevel:     0,
		sheet.FieldCreatedAt: now,
		sheet.FieldUpdatedAt: now,
	}, "", sheet.Options{})

	if _, err := r.persist(ctx, userID, append(current.AllSheets, next), current.ActiveSheetID, nil); err != nil {
		return nil, err
	}
	return &next, nil
}

// DuplicateSheet clones the sheet with the given code under a fresh code and
// a name that collides with no existing one. Returns nil when code is unknown.
func (r *Repository) DuplicateSheet(ctx context.Context, userID, code string) (dup *sheet.Sheet, err error) {
	defer func(start time.Time) { r.observe("duplicate_sheet", userID, start, dup != nil, err) }(time.Now())
	if userID == "" {
		return nil, nil
	}

	current, err := r.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	source, ok := sheet.Find(current.AllSheets, code)
	if !ok {
		return nil, nil
	}

	names := make(map[string]bool, len(current.AllSheets))
	for _, s := range current.AllSheets {
		names[sheet.SafeName(s.Name)] = true
	}

	now := r.normalizer.NowMillis()
	raw := source.Map()
	delete(raw, sheet.FieldCode)
	raw[sheet.FieldName] = duplicateName(sheet.SafeName(source.Name), names)
	raw[sheet.FieldCreatedAt] = now
	raw[sheet.FieldUpdatedAt] = now
	next := r.normalizer.Normalize(raw, "", sheet.Options{})

	if _, err := r.persist(ctx, userID, append(current.AllSheets, next), current.ActiveSheetID, nil); err != nil {
		return nil, err
	}
	return &next, nil
}

func duplicateName(base string, taken map[string]bool) string {
	root := base + " (copia)"
	if !taken[root] {
		return root
	}
	for i := 2; ; i++ {
		name := root + " " + strconv.Itoa(i)
		if !taken[name] {
			return name
		}
	}
}

// DeleteSheet removes a sheet. Unknown codes leave the workspace untouched.
// The workspace never ends up empty: removing the last sheet synthesizes a
// fresh default. Deleting the active sheet hands the pointer to the most
// recently updated survivor.
func (r *Repository) DeleteSheet(ctx context.Context, userID, code string) (ws *Workspace, err error) {
	defer func(start time.Time) { r.observe("delete_sheet", userID, start, ws != nil, err) }(time.Now())
	if userID == "" {
		return nil, nil
	}

	current, err := r.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := sheet.Find(current.AllSheets, code); !ok {
		return current, nil
	}

	remaining := sheet.Without(current.AllSheets, code)
	if len(remaining) == 0 {
		remaining = []sheet.Sheet{r.normalizer.Default()}
	}
	remaining = sheet.SortByRecent(remaining)

	activeID := current.ActiveSheetID
	if activeID == code {
		activeID = remaining[0].Code
	}
	return r.persist(ctx, userID, remaining, activeID, nil)
}

// ReplaceInactiveSheets swaps every parked sheet for the given list. Entries
// claiming the active code are dropped: the active slot only changes through
// SaveActiveSheet and SwitchActiveSheet.
func (r *Repository) ReplaceInactiveSheets(ctx context.Context, userID string, incoming []map[string]any) (inactive []sheet.Sheet, err error) {
	defer func(start time.Time) { r.observe("replace_inactive_sheets", userID, start, true, err) }(time.Now())
	if userID == "" {
		return []sheet.Sheet{}, nil
	}

	current, err := r.ensure(ctx, userID)
	if err != nil {
		return nil, err
	}

	parked := make([]sheet.Sheet, 0, len(incoming))
	for _, raw := range incoming {
		if raw == nil {
			continue
		}
		if code, _ := raw[sheet.FieldCode].(string); code == current.ActiveSheetID {
			continue
		}
		parked = append(parked, r.normalizer.Normalize(raw, "", sheet.Options{}))
	}
	parked = sheet.Dedupe(parked)

	all := append([]sheet.Sheet{current.ActiveSheet}, parked...)
	ws, err := r.persist(ctx, userID, all, current.ActiveSheetID, nil)
	if err != nil {
		return nil, err
	}
	return ws.InactiveSheets, nil
}
