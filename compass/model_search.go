package compass

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ModelSearchResult is one downloadable GGUF file found on the hub.
type ModelSearchResult struct {
	ID           string   `json:"id"` // repo:filename
	Name         string   `json:"name"`
	Quantization string   `json:"quantization"`
	SizeGB       float64  `json:"sizeGB"`
	RequiresAuth bool     `json:"requiresAuth"`
	Repo         string   `json:"repo"`
	File         string   `json:"file"`
	Downloads    int      `json:"downloads,omitempty"`
	Likes        int      `json:"likes,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// HubClient queries the Hugging Face hub API for GGUF models.
type HubClient struct {
	// BaseURL overrides the hub endpoint, used by tests.
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (h *HubClient) baseURL() string {
	if h.BaseURL != "" {
		return h.BaseURL
	}
	return hubBaseURL
}

func (h *HubClient) httpClient() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (h *HubClient) get(rawURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	resp, err := h.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub API returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Search returns one result per GGUF file in repositories matching the
// query, most downloaded first.
func (h *HubClient) Search(query string, limit int) ([]ModelSearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{
		"search": {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"filter": {"gguf"},
		"full":   {"true"},
		"sort":   {"downloads"},
	}

	body, err := h.get(h.baseURL() + "/api/models?" + params.Encode())
	if err != nil {
		return nil, err
	}

	results := make([]ModelSearchResult, 0)
	gjson.ParseBytes(body).ForEach(func(_, model gjson.Result) bool {
		repo := model.Get("id").String()
		requiresAuth := model.Get("gated").Bool() || model.Get("private").Bool()
		downloads := int(model.Get("downloads").Int())
		likes := int(model.Get("likes").Int())
		var tags []string
		for _, t := range model.Get("tags").Array() {
			tags = append(tags, t.String())
			if len(tags) >= 6 {
				break
			}
		}

		model.Get("siblings").ForEach(func(_, sibling gjson.Result) bool {
			filename := sibling.Get("rfilename").String()
			if !strings.HasSuffix(strings.ToLower(filename), ".gguf") {
				return true
			}
			results = append(results, ModelSearchResult{
				ID:           fmt.Sprintf("%s:%s", repo, filename),
				Name:         formatModelName(repo, filename),
				Quantization: extractQuantization(filename),
				SizeGB:       float64(sibling.Get("size").Int()) / (1024 * 1024 * 1024),
				RequiresAuth: requiresAuth,
				Repo:         repo,
				File:         filename,
				Downloads:    downloads,
				Likes:        likes,
				Tags:         tags,
			})
			return true
		})
		return true
	})
	return results, nil
}

// FileSizeGB looks up the exact size of one repo file before a download is
// queued. Returns 0 when the hub does not report a size.
func (h *HubClient) FileSizeGB(repo, file string) (float64, error) {
	body, err := h.get(h.baseURL() + "/api/models/" + repo + "?files_metadata=true")
	if err != nil {
		return 0, err
	}
	size := gjson.GetBytes(body, fmt.Sprintf(`siblings.#(rfilename==%q).size`, file)).Int()
	return float64(size) / (1024 * 1024 * 1024), nil
}

// extractQuantization pulls the quantization token out of a GGUF filename.
func extractQuantization(filename string) string {
	filename = strings.ToUpper(filename)

	quantizations := []string{
		"Q2_K", "Q3_K_S", "Q3_K_M", "Q3_K_L",
		"Q4_0", "Q4_1", "Q4_K_S", "Q4_K_M",
		"Q5_0", "Q5_1", "Q5_K_S", "Q5_K_M",
		"Q6_K", "Q8_0", "BF16", "F16", "F32",
		"IQ1_S", "IQ2_XXS", "IQ2_XS", "IQ2_S", "IQ2_M",
		"IQ3_XXS", "IQ3_XS", "IQ3_S", "IQ3_M",
		"IQ4_XS", "IQ4_NL",
	}

	for _, q := range quantizations {
		if strings.Contains(filename, q) {
			return q
		}
	}
	return "Unknown"
}

// formatModelName creates a readable name from repo and filename.
func formatModelName(repo, filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	parts := strings.Split(repo, "/")
	if len(parts) > 1 {
		modelName := strings.TrimSuffix(parts[1], "-GGUF")
		modelName = strings.TrimSuffix(modelName, "-gguf")
		if !strings.Contains(strings.ToLower(name), strings.ToLower(modelName)) {
			name = modelName + " " + name
		}
	}

	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	return strings.TrimSpace(name)
}
