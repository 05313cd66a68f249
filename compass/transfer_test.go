package compass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransferRunnerSuccess(t *testing.T) {
	payload := strings.Repeat("gguf-bytes-", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test/repo/resolve/main/model.gguf", r.URL.Path)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	dir := t.TempDir()
	runner := &HTTPTransferRunner{BaseURL: server.URL, Logger: NewLogMonitor()}
	task := newTransferTask("test/repo", "model.gguf", dir, func() {})

	var lastUpdate ProgressUpdate
	path, err := runner.Run(context.Background(), task, func(u ProgressUpdate) {
		lastUpdate = u
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "model.gguf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	// the working file must be gone after the rename
	_, err = os.Stat(path + ".partial")
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, float64(100), lastUpdate.Percent)
	assert.Equal(t, int64(len(payload)), lastUpdate.BytesDownloaded)
}

func TestHTTPTransferRunnerSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf_secret", r.Header.Get("Authorization"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	runner := &HTTPTransferRunner{BaseURL: server.URL, APIKey: "hf_secret"}
	task := newTransferTask("test/repo", "model.gguf", t.TempDir(), func() {})
	_, err := runner.Run(context.Background(), task, nil)
	require.NoError(t, err)
}

func TestHTTPTransferRunnerNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	runner := &HTTPTransferRunner{BaseURL: server.URL}
	task := newTransferTask("test/repo", "missing.gguf", dir, func() {})

	_, err := runner.Run(context.Background(), task, nil)
	require.Error(t, err)

	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "test/repo", terr.Repo)
	assert.Contains(t, terr.Error(), "404")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed transfer left files behind")
}

func TestHTTPTransferRunnerCancelRemovesPartial(t *testing.T) {
	release := make(chan struct{})
	served := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write(make([]byte, 64*1024))
		w.(http.Flusher).Flush()
		close(served)
		<-release
	}))
	defer server.Close()
	defer close(release)

	dir := t.TempDir()
	runner := &HTTPTransferRunner{BaseURL: server.URL}
	ctx, cancel := context.WithCancel(context.Background())
	task := newTransferTask("test/repo", "model.gguf", dir, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, task, nil)
		done <- err
	}()

	<-served
	task.Cancel()

	select {
	case err := <-done:
		assert.True(t, IsCancelled(err))
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not stop after cancel")
	}

	assert.Equal(t, StatusCancelled, task.Status())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "cancelled transfer left a partial file behind")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "model_q4.gguf", sanitizeFilename("model:q4.gguf"))
	assert.Equal(t, "a_b_c_d.gguf", sanitizeFilename("a<b>c|d.gguf"))
	assert.Equal(t, "plain.gguf", sanitizeFilename("plain.gguf"))
}
