package sheetctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanbastic/go-sheetspace/internal/auth"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

func testDeps(store *storage.MemoryStore) Deps {
	logger := slog.New(slog.DiscardHandler)
	return Deps{
		Repo:          workspace.New(store, logger),
		Resolver:      auth.NewResolver("test-secret"),
		Logger:        logger,
		AutosaveDelay: time.Hour,
	}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), testDeps(storage.NewMemoryStore()), nil, &out)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "usage: sheetctl")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), testDeps(storage.NewMemoryStore()), []string{"frobnicate"}, &out)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestRun_TokenResolvesToUser(t *testing.T) {
	deps := testDeps(storage.NewMemoryStore())
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), deps, []string{"token", "-ttl", "1m", "u1"}, &out))

	userID, err := deps.Resolver.Resolve(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestRun_TokenNeedsOneUser(t *testing.T) {
	err := Run(context.Background(), testDeps(storage.NewMemoryStore()), []string{"token"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestRun_MigrateRewritesLegacyDocuments(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put("legacy", storage.Document{
		"data":   map[string]any{"sheetCode": "A", "nome": "Alpha", "updatedAt": float64(10)},
		"sheets": []any{map[string]any{"sheetCode": "B", "nome": "Beta", "updatedAt": float64(5)}},
	}))
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), testDeps(store), []string{"migrate", "legacy", "fresh"}, &out))

	doc, ok, err := store.Read(context.Background(), "legacy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, workspace.SchemaVersion, doc["schemaVersion"])
	assert.Equal(t, "A", doc["activeSheetId"])

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "legacy\tok\tactive=A\tsheets=2")
	assert.Contains(t, lines[1], "fresh\tok")
}

type brokenStore struct{}

func (brokenStore) Read(context.Context, string) (storage.Document, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Write(context.Context, string, storage.Document, storage.WriteOptions) error {
	return errors.New("connection refused")
}

func TestRun_MigrateReportsFailuresPerUser(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	deps := Deps{Repo: workspace.New(brokenStore{}, logger), Logger: logger}
	var out bytes.Buffer

	err := Run(context.Background(), deps, []string{"migrate", "u1", "u2"}, &out)
	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(out.String(), "\terror\t"))
}

func TestRun_Export(t *testing.T) {
	deps := testDeps(storage.NewMemoryStore())
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), deps, []string{"export", "u1"}, &out))

	var ws workspace.Workspace
	require.NoError(t, json.Unmarshal(out.Bytes(), &ws))
	assert.NotEmpty(t, ws.ActiveSheetID)
}

func TestRun_EditSavesFields(t *testing.T) {
	store := storage.NewMemoryStore()
	deps := testDeps(store)
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), deps, []string{"edit", "u1", "nome=Renamed", "hp=12", `tags=["a"]`}, &out))

	active, err := deps.Repo.ActiveSheet(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Renamed", active.Name)
	m := active.Map()
	assert.EqualValues(t, 12, m["hp"])
	assert.Equal(t, []any{"a"}, m["tags"])
}

func TestRun_EditAndSwitch(t *testing.T) {
	deps := testDeps(storage.NewMemoryStore())
	ctx := context.Background()
	first, err := deps.Repo.EnsureWorkspace(ctx, "u1")
	require.NoError(t, err)
	second, err := deps.Repo.CreateSheet(ctx, "u1", "Segunda")
	require.NoError(t, err)

	require.NoError(t, Run(ctx, deps, []string{"edit", "-switch", second.Code, "u1", "nome=Principal editada"}, &bytes.Buffer{}))

	ws, err := deps.Repo.GetWorkspace(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second.Code, ws.ActiveSheetID)
	require.Len(t, ws.InactiveSheets, 1)
	assert.Equal(t, first.ActiveSheetID, ws.InactiveSheets[0].Code)
	assert.Equal(t, "Principal editada", ws.InactiveSheets[0].Name)
}

func TestRun_EditUnknownSwitchTarget(t *testing.T) {
	err := Run(context.Background(), testDeps(storage.NewMemoryStore()), []string{"edit", "-switch", "missing", "u1"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no sheet with code")
}

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments([]string{"a=1", "b=true", "c=plain text", "d="})
	require.NoError(t, err)
	assert.EqualValues(t, 1, fields["a"])
	assert.Equal(t, true, fields["b"])
	assert.Equal(t, "plain text", fields["c"])
	assert.Equal(t, "", fields["d"])

	_, err = parseAssignments([]string{"novalue"})
	assert.ErrorIs(t, err, ErrUsage)
}
