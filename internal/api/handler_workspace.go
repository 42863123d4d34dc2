package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetspace/internal/auth"
	"github.com/ryanbastic/go-sheetspace/internal/sheet"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

// --- Huma Input/Output types ---

// Sheets travel as plain JSON objects so opaque payload fields reach the
// client exactly as stored.
type SheetBody = map[string]any

type WorkspaceResponse struct {
	ActiveSheetID  string      `json:"activeSheetId" doc:"Code of the active sheet"`
	ActiveSheet    SheetBody   `json:"activeSheet" doc:"The sheet open for editing"`
	InactiveSheets []SheetBody `json:"inactiveSheets" doc:"Parked sheets, most recently updated first"`
}

type WorkspaceOutput struct {
	Body WorkspaceResponse
}

type SheetOutput struct {
	Body SheetBody
}

type SheetListOutput struct {
	Body []SheetBody
}

type SaveActiveSheetInput struct {
	Body SheetBody
}

type ReplaceInactiveSheetsInput struct {
	Body []SheetBody
}

type SwitchBody struct {
	Target  string    `json:"target" doc:"Code of the sheet to open" minLength:"1"`
	Current SheetBody `json:"current,omitempty" doc:"Unsaved state of the sheet being left"`
}

type SwitchInput struct {
	Body SwitchBody
}

type CreateSheetBody struct {
	Name string `json:"name" doc:"Display name; need not be unique"`
}

type CreateSheetInput struct {
	Body CreateSheetBody
}

type SheetCodeInput struct {
	SheetCode string `path:"sheet_code" doc:"Sheet code"`
}

// --- Handler ---

type WorkspaceHandler struct {
	repo   *workspace.Repository
	logger *slog.Logger
}

func NewWorkspaceHandler(repo *workspace.Repository, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{repo: repo, logger: logger}
}

func registerWorkspaceRoutes(api huma.API, h *WorkspaceHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/v1/workspace",
		Summary:     "Get the workspace, migrating legacy documents",
		Tags:        []string{"workspace"},
	}, h.GetWorkspace)

	huma.Register(api, huma.Operation{
		OperationID: "get-active-sheet",
		Method:      http.MethodGet,
		Path:        "/v1/workspace/active",
		Summary:     "Get the active sheet",
		Tags:        []string{"workspace"},
	}, h.GetActiveSheet)

	huma.Register(api, huma.Operation{
		OperationID: "save-active-sheet",
		Method:      http.MethodPut,
		Path:        "/v1/workspace/active",
		Summary:     "Save the active sheet",
		Tags:        []string{"workspace"},
	}, h.SaveActiveSheet)

	huma.Register(api, huma.Operation{
		OperationID: "get-inactive-sheets",
		Method:      http.MethodGet,
		Path:        "/v1/workspace/inactive",
		Summary:     "List parked sheets",
		Tags:        []string{"workspace"},
	}, h.GetInactiveSheets)

	huma.Register(api, huma.Operation{
		OperationID: "replace-inactive-sheets",
		Method:      http.MethodPut,
		Path:        "/v1/workspace/inactive",
		Summary:     "Replace every parked sheet",
		Tags:        []string{"workspace"},
	}, h.ReplaceInactiveSheets)

	huma.Register(api, huma.Operation{
		OperationID: "switch-active-sheet",
		Method:      http.MethodPost,
		Path:        "/v1/workspace/switch",
		Summary:     "Open another sheet",
		Tags:        []string{"workspace"},
	}, h.SwitchActiveSheet)

	huma.Register(api, huma.Operation{
		OperationID:   "create-sheet",
		Method:        http.MethodPost,
		Path:          "/v1/sheets",
		Summary:       "Create a blank sheet",
		Tags:          []string{"sheets"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateSheet)

	huma.Register(api, huma.Operation{
		OperationID:   "duplicate-sheet",
		Method:        http.MethodPost,
		Path:          "/v1/sheets/{sheet_code}/duplicate",
		Summary:       "Duplicate a sheet",
		Tags:          []string{"sheets"},
		DefaultStatus: http.StatusCreated,
	}, h.DuplicateSheet)

	huma.Register(api, huma.Operation{
		OperationID: "delete-sheet",
		Method:      http.MethodDelete,
		Path:        "/v1/sheets/{sheet_code}",
		Summary:     "Delete a sheet",
		Tags:        []string{"sheets"},
	}, h.DeleteSheet)
}

func sheetBodies(sheets []sheet.Sheet) []SheetBody {
	out := make([]SheetBody, len(sheets))
	for i, s := range sheets {
		out[i] = s.Map()
	}
	return out
}

func workspaceOutput(ws *workspace.Workspace) *WorkspaceOutput {
	return &WorkspaceOutput{Body: WorkspaceResponse{
		ActiveSheetID:  ws.ActiveSheetID,
		ActiveSheet:    ws.ActiveSheet.Map(),
		InactiveSheets: sheetBodies(ws.InactiveSheets),
	}}
}

// user returns the authenticated user id or a 401.
func user(ctx context.Context) (string, error) {
	id := auth.UserID(ctx)
	if id == "" {
		return "", huma.Error401Unauthorized(auth.ErrMissingToken.Error())
	}
	return id, nil
}

func (h *WorkspaceHandler) GetWorkspace(ctx context.Context, _ *struct{}) (*WorkspaceOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := h.repo.GetWorkspace(ctx, userID)
	if err != nil {
		return nil, h.storeError(err, "failed to load workspace", "user_id", userID)
	}
	return workspaceOutput(ws), nil
}

func (h *WorkspaceHandler) GetActiveSheet(ctx context.Context, _ *struct{}) (*SheetOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	active, err := h.repo.ActiveSheet(ctx, userID)
	if err != nil {
		return nil, h.storeError(err, "failed to load active sheet", "user_id", userID)
	}
	return &SheetOutput{Body: active.Map()}, nil
}

func (h *WorkspaceHandler) SaveActiveSheet(ctx context.Context, input *SaveActiveSheetInput) (*WorkspaceOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := h.repo.SaveActiveSheet(ctx, userID, input.Body)
	if err != nil {
		return nil, h.storeError(err, "failed to save active sheet", "user_id", userID)
	}
	return workspaceOutput(ws), nil
}

func (h *WorkspaceHandler) GetInactiveSheets(ctx context.Context, _ *struct{}) (*SheetListOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	inactive, err := h.repo.InactiveSheets(ctx, userID)
	if err != nil {
		return nil, h.storeError(err, "failed to load inactive sheets", "user_id", userID)
	}
	return &SheetListOutput{Body: sheetBodies(inactive)}, nil
}

func (h *WorkspaceHandler) ReplaceInactiveSheets(ctx context.Context, input *ReplaceInactiveSheetsInput) (*SheetListOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	inactive, err := h.repo.ReplaceInactiveSheets(ctx, userID, input.Body)
	if err != nil {
		return nil, h.storeError(err, "failed to replace inactive sheets", "user_id", userID, "count", len(input.Body))
	}
	return &SheetListOutput{Body: sheetBodies(inactive)}, nil
}

func (h *WorkspaceHandler) SwitchActiveSheet(ctx context.Context, input *SwitchInput) (*SheetOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	active, err := h.repo.SwitchActiveSheet(ctx, userID, input.Body.Target, input.Body.Current)
	if err != nil {
		return nil, h.storeError(err, "failed to switch sheet", "user_id", userID, "target", input.Body.Target)
	}
	if active == nil {
		return nil, huma.Error404NotFound("sheet not found")
	}
	return &SheetOutput{Body: active.Map()}, nil
}

func (h *WorkspaceHandler) CreateSheet(ctx context.Context, input *CreateSheetInput) (*SheetOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	created, err := h.repo.CreateSheet(ctx, userID, input.Body.Name)
	if err != nil {
		return nil, h.storeError(err, "failed to create sheet", "user_id", userID)
	}
	return &SheetOutput{Body: created.Map()}, nil
}

func (h *WorkspaceHandler) DuplicateSheet(ctx context.Context, input *SheetCodeInput) (*SheetOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	dup, err := h.repo.DuplicateSheet(ctx, userID, input.SheetCode)
	if err != nil {
		return nil, h.storeError(err, "failed to duplicate sheet", "user_id", userID, "sheet_code", input.SheetCode)
	}
	if dup == nil {
		return nil, huma.Error404NotFound("sheet not found")
	}
	return &SheetOutput{Body: dup.Map()}, nil
}

func (h *WorkspaceHandler) DeleteSheet(ctx context.Context, input *SheetCodeInput) (*WorkspaceOutput, error) {
	userID, err := user(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := h.repo.DeleteSheet(ctx, userID, input.SheetCode)
	if err != nil {
		return nil, h.storeError(err, "failed to delete sheet", "user_id", userID, "sheet_code", input.SheetCode)
	}
	return workspaceOutput(ws), nil
}
