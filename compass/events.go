package compass

// Event type IDs. Each event struct implements event.Event with its own ID
// so subscribers register per concrete type.
const (
	DownloadStartedEventID uint32 = iota + 0x3000
	DownloadProgressEventID
	DownloadFinishedEventID
	DownloadFailedEventID
	QueueChangedEventID
	HardwareRefreshedEventID
	ToolIntegrationEventID
	ConfigFileChangedEventID
)

// DownloadStartedEvent fires when a queued item becomes the active transfer.
type DownloadStartedEvent struct {
	Item QueueItem
}

func (e DownloadStartedEvent) Type() uint32 {
	return DownloadStartedEventID
}

// DownloadProgressEvent reports transfer progress. Percent is 0-100, or -1
// when the remote does not report a content length.
type DownloadProgressEvent struct {
	Item            QueueItem
	Percent         float64
	BytesDownloaded int64
	TotalBytes      int64
	SpeedBPS        int64
}

func (e DownloadProgressEvent) Type() uint32 {
	return DownloadProgressEventID
}

// DownloadFinishedEvent fires once per successful transfer.
type DownloadFinishedEvent struct {
	Item QueueItem
	Path string
}

func (e DownloadFinishedEvent) Type() uint32 {
	return DownloadFinishedEventID
}

// DownloadFailedEvent fires once per failed transfer. Cancelled transfers
// emit neither a finished nor a failed event.
type DownloadFailedEvent struct {
	Item  QueueItem
	Error string
}

func (e DownloadFailedEvent) Type() uint32 {
	return DownloadFailedEventID
}

// QueueChangedEvent fires after every mutation of the scheduler's queue or
// active slot.
type QueueChangedEvent struct {
	QueueLength int
	ActiveModel string
}

func (e QueueChangedEvent) Type() uint32 {
	return QueueChangedEventID
}

// HardwareRefreshedEvent fires after an explicit hardware re-probe replaces
// the profile snapshot.
type HardwareRefreshedEvent struct{}

func (e HardwareRefreshedEvent) Type() uint32 {
	return HardwareRefreshedEventID
}

// ToolIntegrationEvent reports the outcome of a post-download tool hook.
// Op is "register" or "copy".
type ToolIntegrationEvent struct {
	Tool    string
	Op      string
	Model   string
	OK      bool
	Message string
}

func (e ToolIntegrationEvent) Type() uint32 {
	return ToolIntegrationEventID
}

// ConfigFileChangedEvent fires when the config file on disk is rewritten.
type ConfigFileChangedEvent struct {
	Path string
}

func (e ConfigFileChangedEvent) Type() uint32 {
	return ConfigFileChangedEventID
}
