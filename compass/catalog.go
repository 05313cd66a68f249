package compass

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/prave/ModelCompass/hardware"
)

// ModelDescriptor describes one known quantized model file. SizeGB and Name
// drive the capacity math; the remaining fields are catalog metadata passed
// through to clients. Models without a repo/file pair are sharded releases
// that must be pulled through a runtime instead of downloaded directly.
type ModelDescriptor struct {
	Name     string   `json:"name" yaml:"name"`
	Params   string   `json:"params" yaml:"params"`
	Quant    string   `json:"quant" yaml:"quant"`
	SizeGB   float64  `json:"sizeGB" yaml:"sizeGB"`
	Context  string   `json:"context" yaml:"context"`
	Score    int      `json:"score" yaml:"score"`
	Category string   `json:"category" yaml:"category"`
	License  string   `json:"license" yaml:"license"`
	Summary  string   `json:"summary" yaml:"summary"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Repo     string   `json:"repo,omitempty" yaml:"repo,omitempty"`
	File     string   `json:"file,omitempty" yaml:"file,omitempty"`
}

// Downloadable reports whether the model can be fetched as a single file.
func (m ModelDescriptor) Downloadable() bool {
	return m.Repo != "" && m.File != ""
}

var builtinCatalog = []ModelDescriptor{
	{Name: "Qwen3-32B", Params: "32B", Quant: "Q4_K_M", SizeGB: 20.5, Context: "128K", Score: 95, Category: "General Purpose", License: "Apache 2.0",
		Summary: "Top-tier open model with thinking modes, tool use and strong multilingual coverage.",
		Tags:    []string{"Thinking", "Multilingual", "Tool Use"},
		Repo:    "unsloth/Qwen3-32B-GGUF", File: "Qwen3-32B-Q4_K_M.gguf"},
	{Name: "Qwen3-8B", Params: "8B", Quant: "Q4_K_M", SizeGB: 5.2, Context: "128K", Score: 89, Category: "General Purpose", License: "Apache 2.0",
		Summary: "Best 8B all-rounder. Thinking mode and 128K context.",
		Tags:    []string{"Thinking", "Multilingual", "Efficient"},
		Repo:    "Qwen/Qwen3-8B-GGUF", File: "Qwen3-8B-Q4_K_M.gguf"},
	{Name: "Qwen3-4B", Params: "4B", Quant: "Q4_K_M", SizeGB: 2.9, Context: "128K", Score: 82, Category: "Small / Efficient", License: "Apache 2.0",
		Summary: "Tiny but capable, ideal for low VRAM or fast responses.",
		Tags:    []string{"Thinking", "Tiny", "Fast"},
		Repo:    "Qwen/Qwen3-4B-GGUF", File: "Qwen3-4B-Q4_K_M.gguf"},
	{Name: "Qwen3-30B-A3B", Params: "30B (3B active)", Quant: "Q4_K_M", SizeGB: 18.4, Context: "128K", Score: 91, Category: "General Purpose", License: "Apache 2.0",
		Summary: "MoE with 3B active parameters per token. Near-32B quality at a fraction of the compute.",
		Tags:    []string{"MoE", "Thinking", "Efficient"},
		Repo:    "unsloth/Qwen3-30B-A3B-GGUF", File: "Qwen3-30B-A3B-Q4_K_M.gguf"},
	{Name: "Qwen3-235B-A22B", Params: "235B (22B active)", Quant: "Q4_K_M", SizeGB: 130, Context: "128K", Score: 97, Category: "General Purpose", License: "Apache 2.0",
		Summary: "Largest open model, sharded GGUF pulled through a runtime.",
		Tags:    []string{"MoE", "Frontier", "Thinking"}},
	{Name: "DeepSeek-R1-14B", Params: "14B", Quant: "Q4_K_M", SizeGB: 8.9, Context: "64K", Score: 88, Category: "General Purpose", License: "MIT",
		Summary: "Distilled reasoning model, strong chain-of-thought and math.",
		Tags:    []string{"Reasoning", "CoT", "Math"},
		Repo:    "bartowski/DeepSeek-R1-Distill-Qwen-14B-GGUF", File: "DeepSeek-R1-Distill-Qwen-14B-Q4_K_M.gguf"},
	{Name: "Gemma-3-27B", Params: "27B", Quant: "Q4_K_M", SizeGB: 17.3, Context: "128K", Score: 90, Category: "General Purpose", License: "Gemma",
		Summary: "Excellent instruction following and multilingual output.",
		Tags:    []string{"Multilingual", "Instruct"},
		Repo:    "unsloth/gemma-3-27b-it-GGUF", File: "gemma-3-27b-it-Q4_K_M.gguf"},
	{Name: "Mistral-Small-24B", Params: "24B", Quant: "Q4_K_M", SizeGB: 14.5, Context: "32K", Score: 87, Category: "General Purpose", License: "Apache 2.0",
		Summary: "Compact powerhouse with function calling and structured output.",
		Tags:    []string{"Function Calling", "JSON", "Instruct"},
		Repo:    "bartowski/Mistral-Small-24B-Instruct-2501-GGUF", File: "Mistral-Small-24B-Instruct-2501-Q4_K_M.gguf"},
	{Name: "Llama-4-Scout", Params: "109B (17B active)", Quant: "Q4_K_M", SizeGB: 63.8, Context: "512K", Score: 89, Category: "Long Context", License: "Llama 4",
		Summary: "MoE with an extreme context window, sharded GGUF pulled through a runtime.",
		Tags:    []string{"MoE", "Long Context"}},
	{Name: "Qwen2.5-Coder-32B", Params: "32B", Quant: "Q4_K_M", SizeGB: 20.3, Context: "128K", Score: 93, Category: "Coding", License: "Apache 2.0",
		Summary: "Top open coding model across full-stack benchmarks.",
		Tags:    []string{"Coding", "Full-Stack"},
		Repo:    "bartowski/Qwen2.5-Coder-32B-Instruct-GGUF", File: "Qwen2.5-Coder-32B-Instruct-Q4_K_M.gguf"},
	{Name: "Qwen3-Coder-30B-A3B", Params: "30B (3B active)", Quant: "Q4_K_M", SizeGB: 18.4, Context: "128K", Score: 91, Category: "Coding", License: "Apache 2.0",
		Summary: "MoE coding specialist with agentic tool use.",
		Tags:    []string{"Coding", "MoE", "Agentic"},
		Repo:    "unsloth/Qwen3-Coder-30B-A3B-Instruct-GGUF", File: "Qwen3-Coder-30B-A3B-Instruct-Q4_K_M.gguf"},
	{Name: "Devstral-Small-24B", Params: "24B", Quant: "Q4_K_M", SizeGB: 14.5, Context: "128K", Score: 88, Category: "Coding", License: "Apache 2.0",
		Summary: "Agentic coding model tuned for software-engineering tasks.",
		Tags:    []string{"Coding", "Agentic"},
		Repo:    "unsloth/Devstral-Small-2-24B-Instruct-2512-GGUF", File: "Devstral-Small-2-24B-Instruct-2512-Q4_K_M.gguf"},
	{Name: "Phi-4-Mini", Params: "3.8B", Quant: "Q4_K_M", SizeGB: 2.5, Context: "128K", Score: 83, Category: "Small / Efficient", License: "MIT",
		Summary: "Strong reasoning for its size with a STEM focus.",
		Tags:    []string{"Tiny", "STEM"},
		Repo:    "MaziyarPanahi/Phi-4-mini-instruct-GGUF", File: "Phi-4-mini-instruct.Q4_K_M.gguf"},
	{Name: "SmolLM3-3B", Params: "3B", Quant: "Q4_K_M", SizeGB: 2.0, Context: "128K", Score: 79, Category: "Small / Efficient", License: "Apache 2.0",
		Summary: "Smallest capable model, excellent for constrained hardware.",
		Tags:    []string{"Tiny", "Fast"},
		Repo:    "ggml-org/SmolLM3-3B-GGUF", File: "SmolLM3-Q4_K_M.gguf"},
	{Name: "Qwen3-VL-8B", Params: "8B", Quant: "Q4_K_M", SizeGB: 5.6, Context: "128K", Score: 86, Category: "Vision", License: "Apache 2.0",
		Summary: "Image + text understanding: OCR, diagrams, screenshots.",
		Tags:    []string{"Vision", "OCR", "Multimodal"},
		Repo:    "Qwen/Qwen3-VL-8B-Instruct-GGUF", File: "Qwen3VL-8B-Instruct-Q4_K_M.gguf"},
	{Name: "Functionary-v3.2-8B", Params: "8B", Quant: "Q4_K_M", SizeGB: 4.9, Context: "8K", Score: 84, Category: "Agents", License: "MIT",
		Summary: "Purpose-built for function calling and tool use.",
		Tags:    []string{"Function Calling", "Tools", "JSON"},
		Repo:    "bartowski/functionary-small-v3.2-GGUF", File: "functionary-small-v3.2-Q4_K_M.gguf"},
	{Name: "Dolphin3.0-8B", Params: "8B", Quant: "Q4_K_M", SizeGB: 4.9, Context: "128K", Score: 85, Category: "Uncensored", License: "Llama 3.1",
		Summary: "Uncensored Llama 3.1 fine-tune.",
		Tags:    []string{"Uncensored"},
		Repo:    "bartowski/Dolphin3.0-Llama3.1-8B-GGUF", File: "Dolphin3.0-Llama3.1-8B-Q4_K_M.gguf"},
	{Name: "Nous-Hermes-3-8B", Params: "8B", Quant: "Q4_K_M", SizeGB: 4.9, Context: "128K", Score: 84, Category: "Uncensored", License: "Llama 3.1",
		Summary: "Structured output and function calling without refusals.",
		Tags:    []string{"Uncensored", "Structured"},
		Repo:    "bartowski/Hermes-3-Llama-3.1-8B-GGUF", File: "Hermes-3-Llama-3.1-8B-Q4_K_M.gguf"},
	{Name: "MN-Violet-Lotus-12B", Params: "12B", Quant: "Q4_K_M", SizeGB: 7.7, Context: "32K", Score: 87, Category: "Roleplay", License: "CC BY-NC",
		Summary: "Rich prose and character consistency.",
		Tags:    []string{"Roleplay", "Creative"},
		Repo:    "mradermacher/MN-Violet-Lotus-12B-GGUF", File: "MN-Violet-Lotus-12B.Q4_K_M.gguf"},
	{Name: "MythoMax-L2-13B", Params: "13B", Quant: "Q4_K_M", SizeGB: 7.9, Context: "4K", Score: 84, Category: "Roleplay", License: "Llama 2",
		Summary: "Classic community favorite for roleplay.",
		Tags:    []string{"Roleplay", "Classic"},
		Repo:    "TheBloke/MythoMax-L2-13B-GGUF", File: "mythomax-l2-13b.Q4_K_M.gguf"},
	{Name: "Fimbulvetr-11B-v2", Params: "11B", Quant: "Q4_K_M", SizeGB: 6.8, Context: "8K", Score: 85, Category: "Roleplay", License: "Llama 2",
		Summary: "Dark fantasy and adventure writing.",
		Tags:    []string{"Roleplay", "Fantasy"},
		Repo:    "mradermacher/Fimbulvetr-11B-v2-GGUF", File: "Fimbulvetr-11B-v2.Q4_K_M.gguf"},
}

// Catalog is the set of known model descriptors, either built in or loaded
// from a user override file. Read-only after construction.
type Catalog struct {
	models []ModelDescriptor
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	return &Catalog{models: builtinCatalog}
}

// LoadCatalog reads a YAML override file. An empty path or a missing file
// yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCatalog(), nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var override struct {
		Models []ModelDescriptor `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(override.Models) == 0 {
		return NewCatalog(), nil
	}
	return &Catalog{models: override.Models}, nil
}

// Models returns all descriptors in catalog order.
func (c *Catalog) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

// Find returns the descriptor with the given name.
func (c *Catalog) Find(name string) (ModelDescriptor, bool) {
	for _, m := range c.models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// Recommendation joins a descriptor with the capacity model's predictions
// for a specific hardware profile.
type Recommendation struct {
	Model           ModelDescriptor   `json:"model"`
	Fits            bool              `json:"fits"`
	TokensPerSecond int               `json:"tokensPerSecond"`
	SpeedLabel      string            `json:"speedLabel"`
	Severity        hardware.Severity `json:"severity"`
	VRAMNeededGB    float64           `json:"vramNeededGB"`
}

// Recommend evaluates every catalog model against the profile, best score
// first. Models that do not fit are included with Fits=false so clients can
// show them greyed out.
func (c *Catalog) Recommend(p hardware.Profile) ([]Recommendation, error) {
	maxGB, err := hardware.MaxModelGB(p)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, len(c.models))
	for _, m := range c.models {
		toks, err := hardware.EstimateThroughput(p, m.SizeGB)
		if err != nil {
			return nil, err
		}
		vram, err := hardware.EstimateVRAMUsage(m.SizeGB, hardware.DefaultContextKiloTokens)
		if err != nil {
			return nil, err
		}
		label, severity := hardware.SpeedLabel(toks)
		out = append(out, Recommendation{
			Model:           m,
			Fits:            m.SizeGB <= maxGB,
			TokensPerSecond: toks,
			SpeedLabel:      label,
			Severity:        severity,
			VRAMNeededGB:    vram,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fits != out[j].Fits {
			return out[i].Fits
		}
		return out[i].Model.Score > out[j].Model.Score
	})
	return out, nil
}
