package compass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/prave/ModelCompass/hardware"
)

// BenchmarkResult is one measured generation run against a local inference
// server, paired with the estimator's prediction for comparison.
type BenchmarkResult struct {
	Model           string  `json:"model"`
	TokensPerSecond float64 `json:"tokensPerSecond"`
	Tokens          int     `json:"tokens"`
	TTFTSeconds     float64 `json:"ttftSeconds"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
	Method          string  `json:"method"`

	EstimatedTPS   int    `json:"estimatedTPS,omitempty"`
	EstimatedLabel string `json:"estimatedLabel,omitempty"`
	MeasuredLabel  string `json:"measuredLabel"`
}

// BenchmarkRunner measures real generation speed through a local inference
// server's generate endpoint.
type BenchmarkRunner struct {
	// BaseURL is the server root, e.g. http://localhost:11434.
	BaseURL string
	Client  *http.Client
	Logger  *LogMonitor
}

const defaultBenchPrompt = "Write a haiku about mountains."

func (b *BenchmarkRunner) httpClient() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return &http.Client{Timeout: 120 * time.Second}
}

// Run generates a short completion and derives tokens/second from the
// server's eval counters. A zero or negative eval duration yields zero
// throughput rather than a division error.
func (b *BenchmarkRunner) Run(model, prompt string) (*BenchmarkResult, error) {
	if prompt == "" {
		prompt = defaultBenchPrompt
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := b.httpClient().Post(b.BaseURL+"/api/generate", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to inference server at %s: %w", b.BaseURL, err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start).Seconds()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference server returned status %d", resp.StatusCode)
	}

	evalCount := gjson.GetBytes(body, "eval_count").Int()
	evalDuration := float64(gjson.GetBytes(body, "eval_duration").Int()) / 1e9
	promptEval := float64(gjson.GetBytes(body, "prompt_eval_duration").Int()) / 1e9

	result := &BenchmarkResult{
		Model:          model,
		Tokens:         int(evalCount),
		TTFTSeconds:    round2(promptEval),
		ElapsedSeconds: round2(elapsed),
		Method:         "ollama",
	}
	if evalDuration > 0 {
		result.TokensPerSecond = round1(float64(evalCount) / evalDuration)
	}
	label, _ := hardware.SpeedLabel(int(result.TokensPerSecond))
	result.MeasuredLabel = label
	return result, nil
}

// Compare attaches the estimator's prediction for the given profile and
// model size to a measured result.
func (b *BenchmarkRunner) Compare(result *BenchmarkResult, p hardware.Profile, modelSizeGB float64) error {
	estimated, err := hardware.EstimateThroughput(p, modelSizeGB)
	if err != nil {
		return err
	}
	label, _ := hardware.SpeedLabel(estimated)
	result.EstimatedTPS = estimated
	result.EstimatedLabel = label
	return nil
}

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }
func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }
