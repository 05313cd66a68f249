package compass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TransferStatus is the lifecycle state of a TransferTask.
type TransferStatus string

const (
	StatusRunning   TransferStatus = "running"
	StatusDone      TransferStatus = "done"
	StatusError     TransferStatus = "error"
	StatusCancelled TransferStatus = "cancelled"
)

// TransferTask is one in-flight acquisition of a remote model file. Tasks
// are created and owned by the DownloadScheduler; nothing else starts or
// stops one.
type TransferTask struct {
	SourceRepo     string `json:"sourceRepo"`
	SourceFile     string `json:"sourceFile"`
	DestinationDir string `json:"destinationDir"`

	mu         sync.Mutex
	status     TransferStatus
	result     string // final path on success, error text otherwise
	cancelOnce sync.Once
	cancelFn   context.CancelFunc
}

func newTransferTask(repo, file, destDir string, cancel context.CancelFunc) *TransferTask {
	return &TransferTask{
		SourceRepo:     repo,
		SourceFile:     file,
		DestinationDir: destDir,
		status:         StatusRunning,
		cancelFn:       cancel,
	}
}

// Cancel requests termination of the transfer. Safe to call more than once;
// calls after the first are no-ops.
func (t *TransferTask) Cancel() {
	t.cancelOnce.Do(func() {
		t.mu.Lock()
		if t.status == StatusRunning {
			t.status = StatusCancelled
		}
		t.mu.Unlock()
		if t.cancelFn != nil {
			t.cancelFn()
		}
	})
}

// Status returns the task's current lifecycle state.
func (t *TransferTask) Status() TransferStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Cancelled reports whether Cancel has been called.
func (t *TransferTask) Cancelled() bool {
	return t.Status() == StatusCancelled
}

func (t *TransferTask) finish(status TransferStatus, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// a cancel that raced the terminal outcome wins
	if t.status == StatusCancelled && status != StatusCancelled {
		return
	}
	t.status = status
	t.result = result
}

// ProgressUpdate is a snapshot of transfer progress. Percent is -1 when the
// remote does not report a content length.
type ProgressUpdate struct {
	Percent         float64
	BytesDownloaded int64
	TotalBytes      int64
	SpeedBPS        int64
}

// TransferRunner performs the actual network acquisition for a task. The
// scheduler uses an HTTP implementation; tests substitute their own.
type TransferRunner interface {
	Run(ctx context.Context, task *TransferTask, onProgress func(ProgressUpdate)) (string, error)
}

// HTTPTransferRunner downloads model files from the Hugging Face CDN. The
// in-progress file carries a .partial suffix and is renamed into place only
// after the body has been fully written, so an interrupted transfer never
// leaves a file that looks complete.
type HTTPTransferRunner struct {
	// BaseURL overrides the hub endpoint, used by tests.
	BaseURL string
	// APIKey is sent as a bearer token for gated repositories.
	APIKey string
	Logger *LogMonitor
}

const hubBaseURL = "https://huggingface.co"

func (r *HTTPTransferRunner) Run(ctx context.Context, task *TransferTask, onProgress func(ProgressUpdate)) (string, error) {
	base := r.BaseURL
	if base == "" {
		base = hubBaseURL
	}
	url := fmt.Sprintf("%s/%s/resolve/main/%s", base, task.SourceRepo, task.SourceFile)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: err}
	}
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	// no client timeout, large models take hours
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransferError{
			Repo: task.SourceRepo,
			File: task.SourceFile,
			Err:  fmt.Errorf("server returned %s", resp.Status),
		}
	}

	if err := os.MkdirAll(task.DestinationDir, 0755); err != nil {
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: err}
	}

	finalPath := filepath.Join(task.DestinationDir, sanitizeFilename(filepath.Base(task.SourceFile)))
	partialPath := finalPath + ".partial"

	file, err := os.Create(partialPath)
	if err != nil {
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: err}
	}

	written, err := r.copyWithProgress(ctx, file, resp.Body, resp.ContentLength, onProgress)
	closeErr := file.Close()
	if err != nil {
		os.Remove(partialPath)
		if ctx.Err() != nil || IsCancelled(err) {
			return "", ErrCancelled
		}
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: err}
	}
	if closeErr != nil {
		os.Remove(partialPath)
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: closeErr}
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(partialPath)
		return "", &TransferError{
			Repo: task.SourceRepo,
			File: task.SourceFile,
			Err:  fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength),
		}
	}

	if err := os.Rename(partialPath, finalPath); err != nil {
		os.Remove(partialPath)
		return "", &TransferError{Repo: task.SourceRepo, File: task.SourceFile, Err: err}
	}
	if r.Logger != nil {
		r.Logger.Infof("Download completed: %s", finalPath)
	}
	return finalPath, nil
}

func (r *HTTPTransferRunner) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, onProgress func(ProgressUpdate)) (int64, error) {
	buffer := make([]byte, 64*1024)
	var written int64
	lastUpdate := time.Now()
	lastBytes := int64(0)

	for {
		select {
		case <-ctx.Done():
			return written, ErrCancelled
		default:
		}

		n, err := src.Read(buffer)
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)

			now := time.Now()
			if now.Sub(lastUpdate) >= time.Second {
				update := ProgressUpdate{
					BytesDownloaded: written,
					TotalBytes:      total,
					Percent:         -1,
				}
				elapsed := now.Sub(lastUpdate).Seconds()
				if elapsed > 0 {
					update.SpeedBPS = int64(float64(written-lastBytes) / elapsed)
				}
				if total > 0 {
					update.Percent = float64(written) / float64(total) * 100
				}
				if onProgress != nil {
					onProgress(update)
				}
				lastUpdate = now
				lastBytes = written
			}
		}

		if err != nil {
			if err == io.EOF {
				if onProgress != nil {
					pct := float64(100)
					if total <= 0 {
						pct = -1
					}
					onProgress(ProgressUpdate{
						Percent:         pct,
						BytesDownloaded: written,
						TotalBytes:      total,
					})
				}
				return written, nil
			}
			return written, err
		}
	}
}

// sanitizeFilename removes characters that are invalid on common filesystems.
func sanitizeFilename(filename string) string {
	invalid := []string{"<", ">", ":", "\"", "|", "?", "*"}
	clean := filename
	for _, char := range invalid {
		clean = strings.ReplaceAll(clean, char, "_")
	}
	return clean
}
