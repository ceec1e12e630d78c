package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

const (
	testQuietPeriod = 2 * time.Second
	testStatusReset = 3 * time.Second
	testOwner       = "owner-1"
)

type manualTimer struct {
	scheduler *manualScheduler
	delay     time.Duration
	callback  func()
	done      bool
}

func (t *manualTimer) Stop() bool {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// manualScheduler only runs callbacks when the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(delay time.Duration, callback func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &manualTimer{scheduler: s, delay: delay, callback: callback}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *manualScheduler) pending(delay time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, timer := range s.timers {
		if !timer.done && timer.delay == delay {
			count++
		}
	}
	return count
}

// fire runs every pending timer armed with delay and returns how many ran.
func (s *manualScheduler) fire(delay time.Duration) int {
	s.mu.Lock()
	var due []*manualTimer
	for _, timer := range s.timers {
		if !timer.done && timer.delay == delay {
			timer.done = true
			due = append(due, timer)
		}
	}
	s.mu.Unlock()
	for _, timer := range due {
		timer.callback()
	}
	return len(due)
}

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequentialIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%03d", s.next), nil
}

// fakeStore is an in-memory RemoteStore with failure and blocking hooks.
type fakeStore struct {
	mu          sync.Mutex
	documents   map[resumes.DocumentID]resumes.Document
	written     []resumes.Document
	failures    int
	failWith    error
	blocking    int
	gate        chan struct{}
	started     chan resumes.DocumentID
	inFlight    int
	maxInFlight int
	insertErr   error
	selectErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: make(map[resumes.DocumentID]resumes.Document),
		gate:      make(chan struct{}),
		started:   make(chan resumes.DocumentID, 16),
	}
}

func (s *fakeStore) Insert(_ context.Context, document resumes.Document) (resumes.DocumentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.documents[document.ID] = document.Clone()
	return document.ID, nil
}

func (s *fakeStore) Update(_ context.Context, id resumes.DocumentID, update resumes.DocumentUpdate) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	block := s.blocking > 0
	if block {
		s.blocking--
	}
	s.mu.Unlock()

	select {
	case s.started <- id:
	default:
	}
	if block {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return s.failWith
	}
	document, ok := s.documents[id]
	if !ok {
		return resumes.ErrDocumentNotFound
	}
	if update.Title != nil {
		document.Title = *update.Title
	}
	if update.TemplateID != nil {
		document.TemplateID = *update.TemplateID
	}
	if update.Sections != nil {
		document.Sections = append([]resumes.Section(nil), (*update.Sections)...)
	}
	if update.Styling != nil {
		document.Styling = *update.Styling
	}
	if update.Metadata != nil {
		document.Metadata = *update.Metadata
	}
	if !update.UpdatedAt.IsZero() {
		document.UpdatedAt = update.UpdatedAt
	}
	s.documents[id] = document.Clone()
	s.written = append(s.written, document.Clone())
	return nil
}

func (s *fakeStore) Select(_ context.Context, id resumes.DocumentID) (resumes.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectErr != nil {
		return resumes.Document{}, s.selectErr
	}
	document, ok := s.documents[id]
	if !ok {
		return resumes.Document{}, resumes.ErrDocumentNotFound
	}
	return document.Clone(), nil
}

func (s *fakeStore) SelectByOwner(_ context.Context, owner resumes.OwnerID) ([]resumes.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	var documents []resumes.Document
	for _, document := range s.documents {
		if document.OwnerID == owner {
			documents = append(documents, document.Clone())
		}
	}
	return documents, nil
}

func (s *fakeStore) Delete(_ context.Context, id resumes.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return resumes.ErrDocumentNotFound
	}
	delete(s.documents, id)
	return nil
}

// failNext makes the next count writes fail; a negative count fails every write.
func (s *fakeStore) failNext(count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = count
	s.failWith = err
}

func (s *fakeStore) blockNext(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocking = count
}

func (s *fakeStore) release() {
	s.gate <- struct{}{}
}

func (s *fakeStore) writes() []resumes.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]resumes.Document(nil), s.written...)
}

func (s *fakeStore) peakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *fakeStore) stored(t *testing.T, id resumes.DocumentID) resumes.Document {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	document, ok := s.documents[id]
	if !ok {
		t.Fatalf("document %s not stored", id)
	}
	return document.Clone()
}

func (s *fakeStore) awaitWriteStart(t *testing.T) resumes.DocumentID {
	t.Helper()
	select {
	case id := <-s.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("remote write did not start")
		return ""
	}
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[resumes.DocumentID]resumes.Document
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[resumes.DocumentID]resumes.Document)}
}

func (c *fakeCache) Put(_ context.Context, document resumes.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[document.ID] = document.Clone()
	c.puts++
	return nil
}

func (c *fakeCache) Get(_ context.Context, id resumes.DocumentID) (resumes.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	document, ok := c.entries[id]
	return document.Clone(), ok, nil
}

func (c *fakeCache) Delete(_ context.Context, id resumes.DocumentID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *fakeCache) has(id resumes.DocumentID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

type staticProfiles struct {
	profiles map[resumes.OwnerID]Profile
}

func (p staticProfiles) Profile(_ context.Context, owner resumes.OwnerID) (Profile, error) {
	profile, ok := p.profiles[owner]
	if !ok {
		return Profile{}, ErrProfileUnavailable
	}
	return profile, nil
}

type harness struct {
	service   *Service
	store     *fakeStore
	cache     *fakeCache
	scheduler *manualScheduler
}

func newHarness(t *testing.T, mutate func(*ServiceConfig)) *harness {
	t.Helper()
	h := &harness{
		store:     newFakeStore(),
		cache:     newFakeCache(),
		scheduler: &manualScheduler{},
	}
	cfg := ServiceConfig{
		Store:            h.store,
		Cache:            h.cache,
		Scheduler:        h.scheduler,
		Clock:            func() time.Time { return time.Unix(1700000000, 0).UTC() },
		IDProvider:       &sequentialIDs{},
		QuietPeriod:      testQuietPeriod,
		StatusResetDelay: testStatusReset,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	h.service = service
	return h
}

func (h *harness) session(t *testing.T, title string) (*Session, resumes.Document) {
	t.Helper()
	session := h.service.NewSession(testOwner)
	document, err := session.Create(context.Background(), title, false)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return session, document
}

func waitSettled(t *testing.T, session *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := session.Wait(ctx); err != nil {
		t.Fatalf("writes did not settle: %v", err)
	}
}

func mustDocument(t *testing.T, session *Session) resumes.Document {
	t.Helper()
	document, ok := session.Document()
	if !ok {
		t.Fatalf("expected an active document")
	}
	return document
}

func sectionIDOfType(t *testing.T, document resumes.Document, sectionType resumes.SectionType) resumes.SectionID {
	t.Helper()
	for _, section := range document.Sections {
		if section.Type == sectionType {
			return section.ID
		}
	}
	t.Fatalf("no %s section", sectionType)
	return ""
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %T (%v)", err, err)
	}
	if serviceErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, serviceErr.Code())
	}
}

func awaitEvent(t *testing.T, stream <-chan Event, eventType string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-stream:
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("no %s event received", eventType)
			return Event{}
		}
	}
}

func stringPointer(value string) *string {
	return &value
}
