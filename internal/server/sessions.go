package server

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

// SessionRegistry keeps one editing session per owner.
type SessionRegistry struct {
	service *editor.Service

	mu       sync.Mutex
	sessions map[resumes.OwnerID]*editor.Session
}

func NewSessionRegistry(service *editor.Service) *SessionRegistry {
	return &SessionRegistry{
		service:  service,
		sessions: make(map[resumes.OwnerID]*editor.Session),
	}
}

// Session returns the owner's session, opening one on first use.
func (r *SessionRegistry) Session(owner resumes.OwnerID) *editor.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[owner]
	if !ok {
		session = r.service.NewSession(owner.String())
		r.sessions[owner] = session
	}
	return session
}

// Subscribe streams events for owner without opening a session.
func (r *SessionRegistry) Subscribe(ctx context.Context, owner resumes.OwnerID) (<-chan editor.Event, func()) {
	return r.service.Dispatcher().Subscribe(ctx, owner)
}

// CloseAll flushes and releases every session.
func (r *SessionRegistry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*editor.Session, 0, len(r.sessions))
	for owner, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, owner)
	}
	r.mu.Unlock()

	var result error
	for _, session := range sessions {
		result = multierr.Append(result, session.Close(ctx))
	}
	return result
}
