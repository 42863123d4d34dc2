// Package sheetctl implements the operator commands: issuing tokens,
// migrating stored workspaces ahead of first use, exporting a workspace and
// editing a user's active sheet.
package sheetctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ryanbastic/go-sheetspace/internal/auth"
	"github.com/ryanbastic/go-sheetspace/internal/editor"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

const usage = `usage: sheetctl <command> [flags] [args]

commands:
  token   [-ttl 24h] <user>             issue a bearer token
  migrate <user>...                     rewrite workspaces in the current layout
  export  <user>                        print the workspace as JSON
  edit    [-switch code] <user> k=v...  set fields on the active sheet
`

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("invalid usage")

// Deps are the services commands run against.
type Deps struct {
	Repo          *workspace.Repository
	Resolver      *auth.Resolver
	Logger        *slog.Logger
	AutosaveDelay time.Duration
}

// Run executes the command named by args[0] and writes its result to out.
func Run(ctx context.Context, deps Deps, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)

	switch cmd {
	case "token":
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: token takes exactly one user id", ErrUsage)
		}
		return token(deps, fs.Arg(0), *ttl, out)
	case "migrate":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			return fmt.Errorf("%w: migrate needs at least one user id", ErrUsage)
		}
		return migrate(ctx, deps, fs.Args(), out)
	case "export":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: export takes exactly one user id", ErrUsage)
		}
		return export(ctx, deps, fs.Arg(0), out)
	case "edit":
		target := fs.String("switch", "", "sheet code to open after saving the edits")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() < 1 {
			return fmt.Errorf("%w: edit needs a user id", ErrUsage)
		}
		fields, err := parseAssignments(fs.Args()[1:])
		if err != nil {
			return err
		}
		return edit(ctx, deps, fs.Arg(0), fields, *target, out)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func token(deps Deps, userID string, ttl time.Duration, out io.Writer) error {
	if deps.Resolver == nil {
		return errors.New("token signing is not configured")
	}
	tok, err := deps.Resolver.Issue(userID, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}

// migrate runs every user through EnsureWorkspace. Failures are reported
// per user and do not stop the batch.
func migrate(ctx context.Context, deps Deps, users []string, out io.Writer) error {
	var errs []error
	for _, userID := range users {
		ws, err := deps.Repo.EnsureWorkspace(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("migrate %s: %w", userID, err))
			fmt.Fprintf(out, "%s\terror\t%v\n", userID, err)
			continue
		}
		fmt.Fprintf(out, "%s\tok\tactive=%s\tsheets=%d\n", userID, ws.ActiveSheetID, len(ws.AllSheets))
	}
	return errors.Join(errs...)
}

func export(ctx context.Context, deps Deps, userID string, out io.Writer) error {
	ws, err := deps.Repo.GetWorkspace(ctx, userID)
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(ws)
}

func edit(ctx context.Context, deps Deps, userID string, fields map[string]any, target string, out io.Writer) error {
	// A failed autosave leaves the session dirty, so Close retries it.
	session := editor.NewSession(deps.Repo, userID, deps.Logger, editor.WithDelay(deps.AutosaveDelay))
	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if len(fields) > 0 {
		if err := session.Edit(fields); err != nil {
			return err
		}
	}
	if target != "" {
		active, err := session.Switch(ctx, target)
		if err != nil {
			return fmt.Errorf("switch sheet: %w", err)
		}
		if active == nil {
			return fmt.Errorf("switch sheet: no sheet with code %q", target)
		}
	}
	if err := session.Close(ctx); err != nil {
		return fmt.Errorf("save sheet: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(session.Current())
}

// parseAssignments reads key=value pairs. Values that parse as JSON keep
// their type; anything else is a string.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrUsage, arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		fields[key] = v
	}
	return fields, nil
}
