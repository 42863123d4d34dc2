// Package editor holds the sheet a user currently has open and saves it back
// to the workspace shortly after edits stop.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/ryanbastic/go-sheetspace/internal/sheet"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

// DefaultDelay is how long edits must be quiet before an autosave.
const DefaultDelay = 500 * time.Millisecond

// ErrNotLoaded is returned when the session is used before Load.
var ErrNotLoaded = errors.New("editor session not loaded")

// Repository is the part of workspace.Repository a session needs.
type Repository interface {
	GetWorkspace(ctx context.Context, userID string) (*workspace.Workspace, error)
	SaveActiveSheet(ctx context.Context, userID string, data map[string]any) (*workspace.Workspace, error)
	SwitchActiveSheet(ctx context.Context, userID, target string, current map[string]any) (*sheet.Sheet, error)
}

// Option configures a Session.
type Option func(*Session)

// WithDelay sets the autosave debounce delay.
func WithDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// WithErrorHandler receives autosave failures, which have no caller to
// return to.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// Session is one user's open sheet. Edits change memory immediately and
// reach the store through a debounced SaveActiveSheet. A failed save leaves
// memory untouched and the session dirty.
type Session struct {
	repo    Repository
	userID  string
	logger  *slog.Logger
	delay   time.Duration
	onError func(error)

	// save serializes store round trips so one session never has two
	// writes in flight.
	save sync.Mutex

	mu      sync.Mutex
	current map[string]any
	rev     uint64
	saved   uint64
	timer   *time.Timer
	closed  bool
}

func NewSession(repo Repository, userID string, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		repo:   repo,
		userID: userID,
		logger: logger,
		delay:  DefaultDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the active sheet, discarding any unsaved edits.
func (s *Session) Load(ctx context.Context) error {
	s.save.Lock()
	defer s.save.Unlock()

	ws, err := s.repo.GetWorkspace(ctx, s.userID)
	if err != nil {
		return err
	}
	if ws == nil {
		return ErrNotLoaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer()
	s.current = ws.ActiveSheet.Map()
	s.saved = s.rev
	return nil
}

// Current returns a deep copy of the in-memory sheet.
func (s *Session) Current() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return sheet.CloneMap(s.current)
}

// Dirty reports whether there are edits the store has not seen.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev != s.saved
}

// Edit overlays fields on the in-memory sheet and schedules an autosave.
func (s *Session) Edit(fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNotLoaded
	}
	if s.closed {
		return errors.New("editor session closed")
	}
	maps.Copy(s.current, sheet.CloneMap(fields))
	s.rev++

	s.stopTimer()
	s.timer = time.AfterFunc(s.delay, s.autosave)
	return nil
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) autosave() {
	if err := s.Flush(context.Background()); err != nil {
		s.logger.Error("autosave failed", "user_id", s.userID, "error", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

// snapshot returns the state to persist and its revision, or nil when
// there is nothing new.
func (s *Session) snapshot() (map[string]any, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer()
	if s.current == nil || s.rev == s.saved {
		return nil, s.rev
	}
	return sheet.CloneMap(s.current), s.rev
}

// Flush saves pending edits now.
func (s *Session) Flush(ctx context.Context) error {
	s.save.Lock()
	defer s.save.Unlock()

	data, rev := s.snapshot()
	if data == nil {
		return nil
	}
	if _, err := s.repo.SaveActiveSheet(ctx, s.userID, data); err != nil {
		return err
	}

	s.mu.Lock()
	if rev > s.saved {
		s.saved = rev
	}
	s.mu.Unlock()
	return nil
}

// Switch opens target, handing the in-memory sheet to the repository so it
// is saved under its own code in the same write. It returns nil when target
// is unknown, leaving the session as it was. Edits made while the switch is
// in flight belong to the sheet being left and are dropped.
func (s *Session) Switch(ctx context.Context, target string) (*sheet.Sheet, error) {
	s.save.Lock()
	defer s.save.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	s.stopTimer()
	data := sheet.CloneMap(s.current)
	s.mu.Unlock()

	active, err := s.repo.SwitchActiveSheet(ctx, s.userID, target, data)
	if err != nil || active == nil {
		s.rearm()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = active.Map()
	s.rev++
	s.saved = s.rev
	return active, nil
}

// rearm restarts the autosave timer when edits are still pending.
func (s *Session) rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rev != s.saved && !s.closed {
		s.stopTimer()
		s.timer = time.AfterFunc(s.delay, s.autosave)
	}
}

// Close flushes pending edits and stops autosaving.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.stopTimer()
	s.mu.Unlock()
	return err
}
