package usecase

import (
	"crypto/subtle"
	"sort"
	"sync"
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	"github.com/AzielCF/wa-relay/pkg/eventbus"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
)

// liveSession is a registry entry. All fields are guarded by Registry.mu.
type liveSession struct {
	id            string
	status        domainSession.Status
	apiKey        string
	createdAt     time.Time
	startedAt     time.Time
	messagesSaved int64
	engine        domainEngine.Engine
	qrImage       []byte
}

// sessionView is an immutable copy of a registry entry.
type sessionView struct {
	ID            string
	Status        domainSession.Status
	APIKey        string
	CreatedAt     time.Time
	StartedAt     time.Time
	MessagesSaved int64
	Engine        domainEngine.Engine
	HasQR         bool
}

// Registry holds the live sessions of this process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*liveSession), now: time.Now}
}

func (s *liveSession) view() sessionView {
	return sessionView{
		ID:            s.id,
		Status:        s.status,
		APIKey:        s.apiKey,
		CreatedAt:     s.createdAt,
		StartedAt:     s.startedAt,
		MessagesSaved: s.messagesSaved,
		Engine:        s.engine,
		HasQR:         len(s.qrImage) > 0,
	}
}

// Add registers a session in the initializing state.
func (r *Registry) Add(id, apiKey string, createdAt time.Time, engine domainEngine.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return pkgError.ErrSessionExists
	}
	r.sessions[id] = &liveSession{
		id:        id,
		status:    domainSession.StatusInitializing,
		apiKey:    apiKey,
		createdAt: createdAt,
		startedAt: r.now(),
		engine:    engine,
	}
	return nil
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

func (r *Registry) Get(id string) (sessionView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return sessionView{}, false
	}
	return s.view(), true
}

// Remove deletes the entry and returns what it held.
func (r *Registry) Remove(id string) (sessionView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return sessionView{}, false
	}
	delete(r.sessions, id)
	return s.view(), true
}

// Drain empties the registry.
func (r *Registry) Drain() []sessionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sessionView, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s.view())
		delete(r.sessions, id)
	}
	return out
}

// Owns reports whether id is still served by engine. Events of a released
// engine are ignored through this check.
func (r *Registry) Owns(id string, engine domainEngine.Engine) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return ok && s.engine == engine
}

// SetStatus applies a transition. Ready and authenticated drop the QR image.
func (r *Registry) SetStatus(id string, status domainSession.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.status = status
	if status == domainSession.StatusReady || status == domainSession.StatusAuthenticated {
		s.qrImage = nil
	}
	return true
}

// SetQR stores the latest pairing image and moves the session to qr.
func (r *Registry) SetQR(id string, png []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.status = domainSession.StatusQR
	s.qrImage = png
	return true
}

func (r *Registry) QR(id string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.qrImage, true
}

func (r *Registry) SetKey(id, apiKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.apiKey = apiKey
	return true
}

func (r *Registry) IncSaved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.messagesSaved++
	}
}

func keysEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FindByKey returns the session whose key is apiKey.
func (r *Registry) FindByKey(apiKey string) (string, bool) {
	if apiKey == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sessions {
		if s.apiKey != "" && keysEqual(s.apiKey, apiKey) {
			return id, true
		}
	}
	return "", false
}

// List returns every entry ordered by id.
func (r *Registry) List() []sessionView {
	r.mu.RLock()
	out := make([]sessionView, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.view())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Summaries() []domainSession.Summary {
	list := r.List()
	out := make([]domainSession.Summary, 0, len(list))
	for _, s := range list {
		out = append(out, domainSession.Summary{ID: s.ID, Status: s.Status})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot is the first event of a new stream: the status of the filtered
// session, or the list of every session.
func (r *Registry) Snapshot(filter string) eventbus.Envelope {
	if filter != "" {
		status := domainSession.Status("not_found")
		if s, ok := r.Get(filter); ok {
			status = s.Status
		}
		return eventbus.Envelope{Event: "status", ClientID: filter, Payload: map[string]any{"status": status}}
	}
	return eventbus.Envelope{Event: "clients", Payload: map[string]any{"clients": r.Summaries()}}
}
