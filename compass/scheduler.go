package compass

import (
	"context"
	"errors"
	"sync"

	"github.com/prave/ModelCompass/event"
)

// QueueItem is a user-requested acquisition waiting its turn. The scheduler
// owns items exclusively until they become the active task or are removed.
type QueueItem struct {
	Model          ModelDescriptor `json:"model"`
	DestinationDir string          `json:"destinationDir"`
}

// DownloadScheduler drives acquisitions one at a time through a strict FIFO
// queue. At most one TransferTask is running at any instant; advance is the
// only code path that fills the active slot. Terminal outcomes (done, error,
// cancelled) automatically advance to the next queued item, so a single bad
// item never stalls the queue. Failed transfers are never retried
// automatically.
type DownloadScheduler struct {
	mu         sync.Mutex
	queue      []QueueItem
	active     *TransferTask
	activeItem *QueueItem
	runner     TransferRunner
	logger     *LogMonitor
	bridges    []ToolBridge
	workers    sync.WaitGroup
	closed     bool
}

func NewDownloadScheduler(runner TransferRunner, logger *LogMonitor) *DownloadScheduler {
	if logger == nil {
		logger = NewLogMonitor()
	}
	return &DownloadScheduler{
		runner: runner,
		logger: logger,
	}
}

// RegisterBridge adds a tool bridge invoked after each successful transfer.
func (s *DownloadScheduler) RegisterBridge(bridge ToolBridge) {
	s.mu.Lock()
	s.bridges = append(s.bridges, bridge)
	s.mu.Unlock()
}

// Enqueue appends an item to the queue and starts it immediately when the
// scheduler is idle. Never blocks. Returns false after Shutdown, when the
// scheduler no longer accepts work.
func (s *DownloadScheduler) Enqueue(item QueueItem) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, item)
	if s.active == nil {
		s.advanceLocked()
	}
	s.mu.Unlock()

	s.emitQueueChanged()
	return true
}

// CancelActive stops the running transfer, discards it without requeueing,
// and advances to the next item. Returns false when nothing is running.
func (s *DownloadScheduler) CancelActive() bool {
	s.mu.Lock()
	task := s.active
	if task == nil {
		s.mu.Unlock()
		return false
	}
	item := *s.activeItem
	s.active = nil
	s.activeItem = nil
	s.mu.Unlock()

	task.Cancel()
	s.logger.Infof("Cancelled download: %s", item.Model.Name)

	s.mu.Lock()
	s.advanceLocked()
	s.mu.Unlock()

	s.emitQueueChanged()
	return true
}

// RemoveQueued drops the not-yet-started item at the given queue position.
// The active task is unaffected.
func (s *DownloadScheduler) RemoveQueued(position int) bool {
	s.mu.Lock()
	if position < 0 || position >= len(s.queue) {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue[:position], s.queue[position+1:]...)
	s.mu.Unlock()

	s.emitQueueChanged()
	return true
}

// Queue returns a copy of the pending items in order.
func (s *DownloadScheduler) Queue() []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueueItem, len(s.queue))
	copy(out, s.queue)
	return out
}

// Active returns the item currently being transferred, or nil.
func (s *DownloadScheduler) Active() *QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeItem == nil {
		return nil
	}
	item := *s.activeItem
	return &item
}

// Count returns queued plus active items.
func (s *DownloadScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if s.active != nil {
		n++
	}
	return n
}

// Shutdown cancels the active transfer, drops the queue and waits for the
// worker goroutine to exit.
func (s *DownloadScheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	task := s.active
	s.active = nil
	s.activeItem = nil
	s.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
	s.workers.Wait()
}

// advanceLocked pops the queue head and starts its transfer. Callers must
// hold s.mu. This is the sole writer of the active slot, so two tasks can
// never start concurrently.
func (s *DownloadScheduler) advanceLocked() {
	if s.closed || len(s.queue) == 0 || s.active != nil {
		return
	}
	item := s.queue[0]
	s.queue = s.queue[1:]

	ctx, cancel := context.WithCancel(context.Background())
	task := newTransferTask(item.Model.Repo, item.Model.File, item.DestinationDir, cancel)
	s.active = task
	s.activeItem = &item

	s.workers.Add(1)
	go s.runTask(ctx, task, item)
}

func (s *DownloadScheduler) runTask(ctx context.Context, task *TransferTask, item QueueItem) {
	defer s.workers.Done()

	event.Emit(DownloadStartedEvent{Item: item})
	s.logger.Infof("Starting download: %s (%s/%s)", item.Model.Name, task.SourceRepo, task.SourceFile)

	path, err := s.runner.Run(ctx, task, func(update ProgressUpdate) {
		event.Emit(DownloadProgressEvent{
			Item:            item,
			Percent:         update.Percent,
			BytesDownloaded: update.BytesDownloaded,
			TotalBytes:      update.TotalBytes,
			SpeedBPS:        update.SpeedBPS,
		})
	})

	s.mu.Lock()
	detached := s.active != task
	if !detached {
		s.active = nil
		s.activeItem = nil
	}
	s.mu.Unlock()

	if detached {
		// CancelActive already discarded this task and advanced; a
		// cancelled task reports no terminal event.
		return
	}

	switch {
	case err == nil:
		task.finish(StatusDone, path)
		event.Emit(DownloadFinishedEvent{Item: item, Path: path})
		go s.runIntegrations(item, path)
	case IsCancelled(err):
		task.finish(StatusCancelled, "")
	default:
		task.finish(StatusError, err.Error())
		s.logger.Errorf("Download failed: %s: %v", item.Model.Name, err)
		event.Emit(DownloadFailedEvent{Item: item, Error: err.Error()})
	}

	s.mu.Lock()
	s.advanceLocked()
	s.mu.Unlock()
	s.emitQueueChanged()
}

// runIntegrations dispatches the post-download tool hooks. Hooks are
// best-effort: a failed integration is logged and reported as an event but
// never rolls back or fails the completed transfer.
func (s *DownloadScheduler) runIntegrations(item QueueItem, path string) {
	s.mu.Lock()
	bridges := make([]ToolBridge, len(s.bridges))
	copy(bridges, s.bridges)
	s.mu.Unlock()

	for _, bridge := range bridges {
		if !bridge.Installed() {
			continue
		}
		ops := []struct {
			name string
			run  func() (bool, string)
		}{
			{"register", func() (bool, string) { return bridge.RegisterWithLocalRuntime(path, item.Model.Name) }},
			{"copy", func() (bool, string) { return bridge.CopyIntoToolModelDirectory(path) }},
		}
		for _, op := range ops {
			ok, msg := op.run()
			if msg == "" {
				// op not applicable for this tool
				continue
			}
			if !ok {
				ierr := &IntegrationError{Tool: bridge.Name(), Err: errors.New(msg)}
				s.logger.Warnf("%v", ierr)
			}
			event.Emit(ToolIntegrationEvent{
				Tool:    bridge.Name(),
				Op:      op.name,
				Model:   item.Model.Name,
				OK:      ok,
				Message: msg,
			})
		}
	}
}

func (s *DownloadScheduler) emitQueueChanged() {
	s.mu.Lock()
	length := len(s.queue)
	activeModel := ""
	if s.activeItem != nil {
		activeModel = s.activeItem.Model.Name
	}
	s.mu.Unlock()

	event.Emit(QueueChangedEvent{QueueLength: length, ActiveModel: activeModel})
}
