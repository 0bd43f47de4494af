package auditlog

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/pagination"
	"github.com/angelmondragon/miyf-books/pkg/types"
)

// Entry is one audit log row.
type Entry struct {
	Time   string                `json:"time"`
	User   string                `json:"user"`
	Action string                `json:"action"`
	Object string                `json:"object"`
	Field  string                `json:"field"`
	Old    string                `json:"old"`
	New    string                `json:"new"`
	Detail string                `json:"detail"`
	Status enums.AuditVisibility `json:"status"`

	row int
}

// Page is one slice of the audit trail. NextCursor is empty on the last page.
type Page struct {
	Entries    []Entry
	NextCursor string
}

// Visible reports whether the entry has not been cleared.
func (e Entry) Visible() bool {
	return e.Status != enums.AuditCleared
}

// Service records and exposes the audit trail.
type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, actor types.Actor) ([]Entry, error)
	Page(ctx context.Context, actor types.Actor, params pagination.Params) (Page, error)
	Clear(ctx context.Context, actor types.Actor) (int, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(store Repository) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit repository required")
	}
	return &service{repo: store, now: time.Now}, nil
}

// Record appends entry as visible, stamping the time when unset.
func (s *service) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit action is required")
	}
	if entry.Time == "" {
		entry.Time = s.now().UTC().Format(time.RFC3339)
	}
	entry.Status = enums.AuditVisible
	if err := s.repo.Append(ctx, entry); err != nil {
		return repo.Translate(err, "audit log", "append audit entry")
	}
	return nil
}

// List returns the visible entries in the actor's scope, newest first.
func (s *service) List(ctx context.Context, actor types.Actor) ([]Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, repo.Translate(err, "audit log", "read audit log")
	}
	inScope := scopeFor(actor)
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Visible() && inScope(entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out, nil
}

// Page returns up to params.Limit entries of List, continuing after the cursor.
func (s *service) Page(ctx context.Context, actor types.Actor, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, err := s.List(ctx, actor)
	if err != nil {
		return Page{}, err
	}
	if cursor != nil {
		start := len(entries)
		for i, e := range entries {
			if e.row < cursor.Before {
				start = i
				break
			}
		}
		entries = entries[start:]
	}

	limit := pagination.NormalizeLimit(params.Limit)
	if len(entries) <= limit {
		return Page{Entries: entries}, nil
	}
	entries = entries[:limit]
	return Page{
		Entries:    entries,
		NextCursor: pagination.EncodeCursor(pagination.Cursor{Before: entries[limit-1].row}),
	}, nil
}

// Clear hides every visible entry in the actor's scope and returns how many changed.
func (s *service) Clear(ctx context.Context, actor types.Actor) (int, error) {
	inScope := scopeFor(actor)
	count, err := s.repo.SetStatus(ctx, enums.AuditCleared, func(e Entry) bool {
		return e.Visible() && inScope(e)
	})
	if err != nil {
		return 0, repo.Translate(err, "audit log", "clear audit log")
	}
	return count, nil
}

// scopeFor returns the visibility filter for actor: admins see everything,
// everyone else only the rows they wrote.
func scopeFor(actor types.Actor) func(Entry) bool {
	if actor.Role.IsAdmin() {
		return func(Entry) bool { return true }
	}
	return func(e Entry) bool { return actor.Owns(e.User) }
}
