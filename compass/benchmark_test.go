package compass

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/prave/ModelCompass/hardware"
)

func TestBenchmarkRunnerRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "llama3:8b", gjson.GetBytes(body, "model").String())
		assert.False(t, gjson.GetBytes(body, "stream").Bool())
		assert.NotEmpty(t, gjson.GetBytes(body, "prompt").String())

		// 120 tokens over 2.5s of eval time, 300ms prompt eval
		w.Write([]byte(`{"eval_count":120,"eval_duration":2500000000,"prompt_eval_duration":300000000,"response":"..."}`))
	}))
	defer server.Close()

	runner := &BenchmarkRunner{BaseURL: server.URL}
	result, err := runner.Run("llama3:8b", "")
	require.NoError(t, err)

	assert.Equal(t, "llama3:8b", result.Model)
	assert.Equal(t, 120, result.Tokens)
	assert.Equal(t, 48.0, result.TokensPerSecond)
	assert.Equal(t, 0.3, result.TTFTSeconds)
	assert.Equal(t, "ollama", result.Method)
	assert.Equal(t, "Blazing fast", result.MeasuredLabel)
}

func TestBenchmarkRunnerZeroEvalDuration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"eval_count":0,"eval_duration":0,"response":""}`))
	}))
	defer server.Close()

	runner := &BenchmarkRunner{BaseURL: server.URL}
	result, err := runner.Run("empty", "prompt")
	require.NoError(t, err)
	assert.Zero(t, result.TokensPerSecond)
	assert.Equal(t, "Slow", result.MeasuredLabel)
}

func TestBenchmarkRunnerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	runner := &BenchmarkRunner{BaseURL: server.URL}
	_, err := runner.Run("absent", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestBenchmarkCompareAttachesEstimate(t *testing.T) {
	p := hardware.Profile{
		GPUVendor:          hardware.VendorNvidia,
		VRAMGB:             24,
		RAMGB:              64,
		MemoryBandwidthGBs: 1008,
	}

	result := &BenchmarkResult{Model: "llama3:8b", TokensPerSecond: 95}
	runner := &BenchmarkRunner{}
	require.NoError(t, runner.Compare(result, p, 5.2))

	// 1008 / (5.2 * 1.15) = 168.5 -> 169, no RAM clamp on a 24GB card
	assert.Equal(t, 169, result.EstimatedTPS)
	assert.Equal(t, "Blazing fast", result.EstimatedLabel)
}
