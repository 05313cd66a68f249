package compass

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// ToolBridge registers a downloaded model file with a locally installed
// inference tool. Both operations are idempotent: a second call with the
// same artifact detects "already present" and reports success. An operation
// that does not apply to a tool returns (true, "") and is skipped.
type ToolBridge interface {
	Name() string
	Installed() bool
	RegisterWithLocalRuntime(path, modelName string) (bool, string)
	CopyIntoToolModelDirectory(path string) (bool, string)
}

// OllamaBridge registers models with a local Ollama install by writing a
// Modelfile next to the artifact and running "ollama create".
type OllamaBridge struct {
	// Bin overrides the ollama binary path, used by tests.
	Bin    string
	Logger *LogMonitor
}

func (b *OllamaBridge) Name() string { return "ollama" }

func (b *OllamaBridge) bin() string {
	if b.Bin != "" {
		return b.Bin
	}
	return "ollama"
}

func (b *OllamaBridge) Installed() bool {
	if b.Bin != "" {
		_, err := os.Stat(b.Bin)
		return err == nil
	}
	if _, err := exec.LookPath("ollama"); err == nil {
		return true
	}
	if runtime.GOOS == "windows" {
		home, _ := os.UserHomeDir()
		for _, p := range []string{
			filepath.Join(home, `AppData\Local\Programs\Ollama\ollama.exe`),
			`C:\Program Files\Ollama\ollama.exe`,
		} {
			if _, err := os.Stat(p); err == nil {
				return true
			}
		}
	}
	return false
}

func (b *OllamaBridge) RegisterWithLocalRuntime(path, modelName string) (bool, string) {
	if b.alreadyRegistered(modelName) {
		return true, fmt.Sprintf("Already registered as 'ollama run %s'", modelName)
	}

	modelfile := filepath.Join(filepath.Dir(path), modelName+".Modelfile")
	content := fmt.Sprintf("FROM %q\n", path)
	if err := os.WriteFile(modelfile, []byte(content), 0644); err != nil {
		return false, fmt.Sprintf("failed to write Modelfile: %v", err)
	}

	cmd := exec.Command(b.bin(), "create", modelName, "-f", modelfile)
	if err := cmd.Start(); err != nil {
		return false, fmt.Sprintf("failed to run ollama create: %v", err)
	}
	// registration runs in the background, ollama imports the weights
	go cmd.Wait()

	return true, fmt.Sprintf("Registered as 'ollama run %s'", modelName)
}

func (b *OllamaBridge) alreadyRegistered(modelName string) bool {
	output, err := exec.Command(b.bin(), "list").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.TrimSuffix(fields[0], ":latest") == modelName {
			return true
		}
	}
	return false
}

// CopyIntoToolModelDirectory does not apply: ollama keeps its own blob
// store and imports weights through "create".
func (b *OllamaBridge) CopyIntoToolModelDirectory(path string) (bool, string) {
	return true, ""
}

// LMStudioBridge drops model files into LM Studio's models directory, where
// the app picks them up on its next scan.
type LMStudioBridge struct {
	// ModelDir overrides the LM Studio models directory, used by tests.
	ModelDir string
	Logger   *LogMonitor
}

func (b *LMStudioBridge) Name() string { return "lmstudio" }

func (b *LMStudioBridge) modelDir() string {
	if b.ModelDir != "" {
		return b.ModelDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "lm-studio", "models")
}

func (b *LMStudioBridge) Installed() bool {
	if b.ModelDir != "" {
		return true
	}
	dir := b.modelDir()
	if dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Dir(dir))
	return err == nil
}

// RegisterWithLocalRuntime does not apply: LM Studio discovers models from
// its directory scan, there is no registration command.
func (b *LMStudioBridge) RegisterWithLocalRuntime(path, modelName string) (bool, string) {
	return true, ""
}

func (b *LMStudioBridge) CopyIntoToolModelDirectory(path string) (bool, string) {
	dir := b.modelDir()
	if dir == "" {
		return false, "LM Studio models directory not found"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Sprintf("failed to create %s: %v", dir, err)
	}

	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		return true, fmt.Sprintf("Already in LM Studio: %s", dest)
	}

	if err := copyFile(path, dest); err != nil {
		return false, fmt.Sprintf("copy failed: %v", err)
	}
	return true, fmt.Sprintf("Copied to %s", dest)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// ToolInfo describes a known local inference tool for the API surface.
type ToolInfo struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Homepage  string `json:"homepage"`
}

type knownTool struct {
	key        string
	name       string
	versionCmd string
	homepage   string
	winPaths   []string
}

var knownTools = []knownTool{
	{
		key: "ollama", name: "Ollama", versionCmd: "ollama",
		homepage: "https://ollama.com",
		winPaths: []string{
			`AppData\Local\Programs\Ollama\ollama.exe`,
			`C:\Program Files\Ollama\ollama.exe`,
		},
	},
	{
		key: "lmstudio", name: "LM Studio",
		homepage: "https://lmstudio.ai",
		winPaths: []string{
			`AppData\Local\Programs\LM Studio\LM Studio.exe`,
			`C:\Program Files\LM Studio\LM Studio.exe`,
			`.cache\lm-studio\bin\lms.exe`,
		},
	},
	{
		key: "koboldcpp", name: "KoboldCpp",
		homepage: "https://github.com/LostRuins/koboldcpp",
		winPaths: []string{`C:\KoboldCpp\koboldcpp.exe`},
	},
	{
		key: "gpt4all", name: "GPT4All",
		homepage: "https://gpt4all.io",
		winPaths: []string{`C:\Program Files\nomic.ai\GPT4All\bin\chat.exe`},
	},
	{
		key: "jan", name: "Jan",
		homepage: "https://jan.ai",
		winPaths: []string{`AppData\Local\Jan\Jan.exe`},
	},
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+[\.\d]*)`)

// DetectTools probes for the known local inference tools and their versions.
func DetectTools() []ToolInfo {
	home, _ := os.UserHomeDir()
	out := make([]ToolInfo, 0, len(knownTools))

	for _, tool := range knownTools {
		info := ToolInfo{Key: tool.key, Name: tool.name, Homepage: tool.homepage}

		if tool.versionCmd != "" {
			if path, err := exec.LookPath(tool.versionCmd); err == nil {
				info.Installed = true
				info.Path = path
				if output, err := exec.Command(tool.versionCmd, "--version").Output(); err == nil {
					if m := versionPattern.FindString(string(output)); m != "" {
						info.Version = m
					}
				}
			}
		}
		if !info.Installed && runtime.GOOS == "windows" {
			for _, p := range tool.winPaths {
				candidate := p
				if !filepath.IsAbs(candidate) {
					candidate = filepath.Join(home, candidate)
				}
				if _, err := os.Stat(candidate); err == nil {
					info.Installed = true
					info.Path = candidate
					break
				}
			}
		}
		out = append(out, info)
	}
	return out
}
