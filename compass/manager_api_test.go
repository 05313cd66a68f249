package compass

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestManager(t *testing.T) *CompassManager {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := DefaultConfig()
	config.DataDir = t.TempDir()
	config.DownloadDir = t.TempDir()
	config.IntegrateOllama = false
	config.IntegrateLMStudio = false

	cm := New(config)
	t.Cleanup(cm.Shutdown)
	return cm
}

func TestEnqueueDownloadLooksUpFileSize(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models/Qwen/Qwen3-8B-GGUF", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("files_metadata"))
		w.Write([]byte(`{"siblings":[{"rfilename":"Qwen3-8B-Q4_K_M.gguf","size":5583457280}]}`))
	}))
	defer hub.Close()

	cm := newTestManager(t)
	cm.hub.BaseURL = hub.URL

	// swap in a runner that blocks so the item stays observable as active
	runner := newStubRunner()
	cm.scheduler.runner = runner

	body := `{"repo":"Qwen/Qwen3-8B-GGUF","file":"Qwen3-8B-Q4_K_M.gguf"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	cm.ginEngine.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "Qwen3 8B Q4 K M", gjson.Get(w.Body.String(), "queued").String())

	active := cm.scheduler.Active()
	require.NotNil(t, active)
	assert.Equal(t, "Q4_K_M", active.Model.Quant)
	assert.InDelta(t, 5.2, active.Model.SizeGB, 0.01)

	runner.release("Qwen3-8B-Q4_K_M.gguf")
}

func TestEnqueueDownloadSizeLookupFailureStillQueues(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer hub.Close()

	cm := newTestManager(t)
	cm.hub.BaseURL = hub.URL

	runner := newStubRunner()
	cm.scheduler.runner = runner

	body := `{"repo":"test/repo","file":"model-Q5_K_M.gguf"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	cm.ginEngine.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	active := cm.scheduler.Active()
	require.NotNil(t, active)
	assert.Zero(t, active.Model.SizeGB)

	runner.release("model-Q5_K_M.gguf")
}
