package editor

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

const (
	EventSaveStatus      = "status"
	EventDocumentChanged = "document-changed"
	EventSectionAdded    = "section-added"
	EventReverted        = "reverted"
)

// Event is a session notification fanned out to the owner's subscribers.
type Event struct {
	OwnerID    resumes.OwnerID    `json:"owner_id"`
	EventType  string             `json:"event_type"`
	DocumentID resumes.DocumentID `json:"document_id,omitempty"`
	SectionID  resumes.SectionID  `json:"section_id,omitempty"`
	Status     SaveStatus         `json:"status,omitempty"`
	Notice     string             `json:"notice,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Dispatcher delivers events to per-owner subscribers without blocking publishers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[resumes.OwnerID]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[resumes.OwnerID]map[int64]*subscriber),
		bufferSize:  32,
	}
}

// Subscribe registers a stream for owner until ctx ends or cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, owner resumes.OwnerID) (<-chan Event, func()) {
	if owner == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.register(owner, sub)
	cleanup := func() {
		d.unregister(owner, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish drops the event for any subscriber whose buffer is full.
func (d *Dispatcher) Publish(event Event) {
	if event.OwnerID == "" || event.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.OwnerID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(owner resumes.OwnerID, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[owner]; !ok {
		d.subscribers[owner] = make(map[int64]*subscriber)
	}
	d.subscribers[owner][sub.id] = sub
}

func (d *Dispatcher) unregister(owner resumes.OwnerID, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[owner]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, owner)
		}
	}
	d.mu.Unlock()
}
