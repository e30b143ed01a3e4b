package quota

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/store"
)

// TitleMaxLen matches the snippets.title column width.
const TitleMaxLen = 255

// ErrUnauthenticated is returned when no user identity accompanies a
// request that requires one.
var ErrUnauthenticated = errors.New("user is not authenticated")

// ValidationError carries per-field messages for a rejected draft.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "snippet validation failed"
}

// QuotaError is returned when the owner is at their plan limit. Callers use
// the counts to render an upgrade prompt.
type QuotaError struct {
	Plan         model.Plan
	CurrentCount int
	MaxCount     int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("snippet limit reached (%d/%d on %s)", e.CurrentCount, e.MaxCount, e.Plan)
}

// Draft is an unvalidated snippet submission.
type Draft struct {
	Title       string
	Description string
	Snippet     string
	Visibility  string
}

// Validate checks the draft against schema constraints and returns a
// per-field error map, or nil if the draft is acceptable. An empty
// visibility defaults to PUBLIC.
func (d *Draft) Validate() *ValidationError {
	fields := make(map[string]string)

	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		fields["title"] = "Title is required"
	} else if len(d.Title) > TitleMaxLen {
		fields["title"] = fmt.Sprintf("Title must be %d characters or less", TitleMaxLen)
	}

	if d.Snippet == "" {
		fields["snippet"] = "Snippet is required"
	}

	if d.Visibility == "" {
		d.Visibility = string(model.VisibilityPublic)
	}
	if !model.Visibility(d.Visibility).Valid() {
		fields["visibility"] = "Visibility must be PUBLIC or PRIVATE"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Service is the quota enforcer: it gates snippet creation on the owner's
// entitlement and performs the insert.
type Service struct {
	resolver *Resolver
	snippets *store.SnippetStore
}

func NewService(resolver *Resolver, snippets *store.SnippetStore) *Service {
	return &Service{resolver: resolver, snippets: snippets}
}

// Resolve exposes the underlying entitlement read.
func (s *Service) Resolve(userID string) (Entitlement, error) {
	return s.resolver.Resolve(userID)
}

// TryCreate validates the draft, checks the owner's entitlement, and
// inserts the snippet. On success it returns the created snippet and the
// entitlement as it stands after the insert, so callers can update usage
// displays without another read. Returns ErrUnauthenticated, a
// *ValidationError, or a *QuotaError on the corresponding failures; in
// every failure case nothing is persisted.
func (s *Service) TryCreate(userID string, d Draft) (*model.Snippet, Entitlement, error) {
	if userID == "" {
		return nil, Entitlement{}, ErrUnauthenticated
	}

	if verr := d.Validate(); verr != nil {
		return nil, Entitlement{}, verr
	}

	ent, err := s.resolver.Resolve(userID)
	if err != nil {
		return nil, Entitlement{}, err
	}
	if !ent.CanCreateMore {
		return nil, ent, &QuotaError{Plan: ent.Plan, CurrentCount: ent.CurrentCount, MaxCount: ent.MaxCount}
	}

	// The insert re-checks the count in the same statement, so two
	// concurrent creations near the limit cannot both land.
	sn, err := s.snippets.CreateUnderLimit(userID, d.Title, d.Description, d.Snippet, model.Visibility(d.Visibility), ent.MaxCount)
	if err != nil {
		return nil, Entitlement{}, fmt.Errorf("create snippet: %w", err)
	}
	if sn == nil {
		// Lost a race to a concurrent creation; report the fresh counts.
		ent, err = s.resolver.Resolve(userID)
		if err != nil {
			return nil, Entitlement{}, err
		}
		return nil, ent, &QuotaError{Plan: ent.Plan, CurrentCount: ent.CurrentCount, MaxCount: ent.MaxCount}
	}

	ent.CurrentCount++
	ent.CanCreateMore = ent.CurrentCount < ent.MaxCount
	return sn, ent, nil
}
