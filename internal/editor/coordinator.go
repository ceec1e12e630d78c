package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

// SaveStatus is the user-visible persistence state of the active document.
type SaveStatus string

const (
	StatusIdle   SaveStatus = "idle"
	StatusSaving SaveStatus = "saving"
	StatusSaved  SaveStatus = "saved"
	StatusError  SaveStatus = "error"
)

// SaveMode selects how manual saves interact with the debounced path.
type SaveMode string

const (
	// SaveModeUnified routes manual saves through the debounced path's
	// single-flight guard and drops snapshots queued before the manual save.
	SaveModeUnified SaveMode = "unified"
	// SaveModeIndependent lets a manual save run concurrently with a
	// debounced write. Completion order decides the remote winner.
	SaveModeIndependent SaveMode = "independent"
)

const (
	DefaultQuietPeriod      = 2000 * time.Millisecond
	DefaultStatusResetDelay = 2000 * time.Millisecond
)

const (
	operationFlush      = "editor.flush"
	operationManualSave = "editor.save"

	reasonCacheWriteFailed  = "cache_write_failed"
	reasonCacheClearFailed  = "cache_clear_failed"
	reasonRemoteWriteFailed = "remote_write_failed"
)

// ParseSaveMode accepts "unified" or "independent"; empty means unified.
func ParseSaveMode(raw string) (SaveMode, error) {
	switch SaveMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SaveModeUnified:
		return SaveModeUnified, nil
	case SaveModeIndependent:
		return SaveModeIndependent, nil
	default:
		return "", fmt.Errorf("editor: unknown save mode %q", raw)
	}
}

// SaveTask is the pending outcome of one remote write.
type SaveTask struct {
	documentID resumes.DocumentID
	done       chan struct{}
	err        error
}

func newSaveTask(documentID resumes.DocumentID) *SaveTask {
	return &SaveTask{documentID: documentID, done: make(chan struct{})}
}

func (t *SaveTask) DocumentID() resumes.DocumentID {
	return t.documentID
}

// Done is closed once the write has finished.
func (t *SaveTask) Done() <-chan struct{} {
	return t.done
}

// Err returns the write error, or nil while the write is still running.
func (t *SaveTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx ends.
func (t *SaveTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SaveTask) finish(err error) {
	t.err = err
	close(t.done)
}

type coordinatorConfig struct {
	documentID       resumes.DocumentID
	owner            resumes.OwnerID
	store            RemoteStore
	cache            LocalCache
	scheduler        Scheduler
	clock            func() time.Time
	quietPeriod      time.Duration
	statusResetDelay time.Duration
	mode             SaveMode
	autoSave         bool
	dispatcher       *Dispatcher
	logger           *zap.Logger
	onFailure        func(*SaveCoordinator, error)
}

// SaveCoordinator debounces snapshots of one document into single-flight
// remote writes, with a write-ahead copy in the local cache.
type SaveCoordinator struct {
	cfg          coordinatorConfig
	flight       chan struct{}
	manualFlight chan struct{}

	mu          sync.Mutex
	latest      resumes.Document
	queued      int
	debounce    Timer
	debounceGen uint64
	statusReset Timer
	statusGen   uint64
	autoSave    bool
	status      SaveStatus
	lastErr     error
	active      int
	settled     chan struct{}
	lastTask    *SaveTask
	closed      bool
}

func newSaveCoordinator(cfg coordinatorConfig) *SaveCoordinator {
	if cfg.scheduler == nil {
		cfg.scheduler = NewWallScheduler()
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.quietPeriod <= 0 {
		cfg.quietPeriod = DefaultQuietPeriod
	}
	if cfg.statusResetDelay <= 0 {
		cfg.statusResetDelay = DefaultStatusResetDelay
	}
	if cfg.mode == "" {
		cfg.mode = SaveModeUnified
	}
	return &SaveCoordinator{
		cfg:          cfg,
		flight:       make(chan struct{}, 1),
		manualFlight: make(chan struct{}, 1),
		autoSave:     cfg.autoSave,
		status:       StatusIdle,
	}
}

// Status reports the current save status.
func (c *SaveCoordinator) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the error of the most recent failed write, if the status is still error.
func (c *SaveCoordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusError {
		return nil
	}
	return c.lastErr
}

// Pending reports how many snapshots have been coalesced since the last flush.
func (c *SaveCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued
}

// AutoSave reports whether the quiet-period timer is armed by changes.
func (c *SaveCoordinator) AutoSave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoSave
}

// SetAutoSave toggles debounced saving. Enabling arms the timer when
// snapshots are already queued.
func (c *SaveCoordinator) SetAutoSave(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSave = enabled
	if !enabled {
		c.stopDebounceLocked()
		return
	}
	c.armIfQueuedLocked()
}

// Wait blocks until no write is in flight or ctx ends.
func (c *SaveCoordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.active == 0 {
		c.mu.Unlock()
		return nil
	}
	settled := c.settled
	c.mu.Unlock()
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes queued snapshots when auto-save is on, waits for writes and
// stops accepting new snapshots.
func (c *SaveCoordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.stopDebounceLocked()
	pending := c.queued > 0 && c.autoSave && !c.closed
	c.mu.Unlock()
	if pending {
		c.flush()
	}
	err := c.Wait(ctx)
	c.mu.Lock()
	c.closed = true
	if c.statusReset != nil {
		c.statusReset.Stop()
		c.statusReset = nil
	}
	c.mu.Unlock()
	return err
}

func (c *SaveCoordinator) enqueue(snapshot resumes.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.latest = snapshot
	c.queued++
	if c.autoSave {
		c.stopDebounceLocked()
		c.armDebounceLocked()
	}
}

// replaceQueued swaps the newest queued snapshot, if any, for snapshot.
func (c *SaveCoordinator) replaceQueued(snapshot resumes.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queued == 0 {
		return
	}
	c.latest = snapshot
}

// cancelPending drops queued snapshots once a unified manual save holds the
// guard. Callers serialize it with enqueue.
func (c *SaveCoordinator) cancelPending() {
	if c.cfg.mode != SaveModeUnified {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDebounceLocked()
	c.queued = 0
	c.latest = resumes.Document{}
}

// pauseDebounce stops the quiet-period timer while a unified manual save
// waits for the guard. Queued snapshots stay queued.
func (c *SaveCoordinator) pauseDebounce() {
	if c.cfg.mode != SaveModeUnified {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDebounceLocked()
}

// resumeDebounce rearms the timer for snapshots still queued after a
// manual save gave up waiting.
func (c *SaveCoordinator) resumeDebounce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armIfQueuedLocked()
}

func (c *SaveCoordinator) armIfQueuedLocked() {
	if c.autoSave && c.queued > 0 && c.debounce == nil && !c.closed {
		c.armDebounceLocked()
	}
}

func (c *SaveCoordinator) armDebounceLocked() {
	c.debounceGen++
	generation := c.debounceGen
	c.debounce = c.cfg.scheduler.AfterFunc(c.cfg.quietPeriod, func() {
		c.onQuietPeriod(generation)
	})
}

func (c *SaveCoordinator) stopDebounceLocked() {
	c.debounceGen++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *SaveCoordinator) onQuietPeriod(generation uint64) {
	c.mu.Lock()
	if generation != c.debounceGen {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	c.mu.Unlock()
	c.flush()
}

// flush starts a remote write of the newest queued snapshot unless one is
// already in flight, in which case the completing write drains the queue.
func (c *SaveCoordinator) flush() *SaveTask {
	c.mu.Lock()
	if c.closed || c.queued == 0 {
		c.mu.Unlock()
		return nil
	}
	select {
	case c.flight <- struct{}{}:
	default:
		queued := c.queued
		c.mu.Unlock()
		c.loggerOrDefault().Debug("flush deferred behind in-flight write",
			zap.String("document_id", c.cfg.documentID.String()),
			zap.Int("queued", queued),
		)
		return nil
	}
	snapshot := c.latest
	coalesced := c.queued
	c.latest = resumes.Document{}
	c.queued = 0
	c.stopDebounceLocked()
	c.beginWriteLocked()
	task := newSaveTask(snapshot.ID)
	c.lastTask = task
	c.mu.Unlock()

	c.loggerOrDefault().Debug("flushing snapshot",
		zap.String("document_id", snapshot.ID.String()),
		zap.Int("coalesced", coalesced),
	)
	go func() {
		err := c.persist(context.Background(), operationFlush, snapshot)
		c.complete(c.flight, task, err, true)
	}()
	return task
}

// saveManual writes the snapshot returned by take once the guard is held, so
// the write reflects every mutation and rollback that happened while waiting.
// take reports false when the document is no longer active.
func (c *SaveCoordinator) saveManual(ctx context.Context, take func() (resumes.Document, bool)) error {
	guard := c.flight
	if c.cfg.mode == SaveModeIndependent {
		guard = c.manualFlight
	}
	c.pauseDebounce()
	select {
	case guard <- struct{}{}:
	case <-ctx.Done():
		c.resumeDebounce()
		return ctx.Err()
	}
	snapshot, ok := take()
	if !ok {
		<-guard
		return ErrNoActiveDocument
	}
	c.mu.Lock()
	c.beginWriteLocked()
	c.mu.Unlock()

	err := c.persist(ctx, operationManualSave, snapshot)
	c.complete(guard, nil, err, false)
	return err
}

func (c *SaveCoordinator) persist(ctx context.Context, operation string, snapshot resumes.Document) error {
	resumes.RecomputeMetadata(&snapshot)
	documentField := zap.String("document_id", snapshot.ID.String())
	if err := c.cfg.cache.Put(ctx, snapshot); err != nil {
		c.logError(operation, reasonCacheWriteFailed, err, documentField)
	}
	if err := c.cfg.store.Update(ctx, snapshot.ID, resumes.FullUpdate(snapshot)); err != nil {
		c.logError(operation, reasonRemoteWriteFailed, err, documentField)
		return err
	}
	if err := c.cfg.cache.Delete(ctx, snapshot.ID); err != nil {
		c.logError(operation, reasonCacheClearFailed, err, documentField)
	}
	return nil
}

func (c *SaveCoordinator) complete(guard chan struct{}, task *SaveTask, err error, rollback bool) {
	if err != nil && rollback && c.cfg.onFailure != nil {
		c.cfg.onFailure(c, err)
	}
	c.mu.Lock()
	<-guard
	if err != nil {
		c.lastErr = err
		c.setStatusLocked(StatusError)
	} else {
		c.lastErr = nil
		c.setStatusLocked(StatusSaved)
		c.armStatusResetLocked()
	}
	drain := guard == c.flight && c.queued > 0 && !c.closed
	c.mu.Unlock()

	if task != nil {
		task.finish(err)
	}
	if drain {
		c.flush()
	}
	c.endWrite()
}

func (c *SaveCoordinator) beginWriteLocked() {
	if c.active == 0 {
		c.settled = make(chan struct{})
	}
	c.active++
	c.setStatusLocked(StatusSaving)
}

func (c *SaveCoordinator) endWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active--
	if c.active == 0 {
		close(c.settled)
	}
}

func (c *SaveCoordinator) setStatusLocked(status SaveStatus) {
	c.statusGen++
	if c.statusReset != nil {
		c.statusReset.Stop()
		c.statusReset = nil
	}
	c.status = status
	if c.cfg.dispatcher != nil {
		c.cfg.dispatcher.Publish(Event{
			OwnerID:    c.cfg.owner,
			EventType:  EventSaveStatus,
			DocumentID: c.cfg.documentID,
			Status:     status,
			Timestamp:  c.cfg.clock().UTC(),
		})
	}
}

func (c *SaveCoordinator) armStatusResetLocked() {
	generation := c.statusGen
	c.statusReset = c.cfg.scheduler.AfterFunc(c.cfg.statusResetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if generation != c.statusGen || c.status != StatusSaved {
			return
		}
		c.setStatusLocked(StatusIdle)
	})
}

func (c *SaveCoordinator) loggerOrDefault() *zap.Logger {
	if c.cfg.logger == nil {
		return zap.NewNop()
	}
	return c.cfg.logger
}

func (c *SaveCoordinator) logError(operation, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	if err != nil {
		allFields = append(allFields, zap.Error(err))
	}
	c.loggerOrDefault().Error("save coordinator failure", allFields...)
}
