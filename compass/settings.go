package compass

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Settings are user preferences persisted as JSON in the data directory.
type Settings struct {
	Theme              string `json:"theme"`
	DefaultDownloadDir string `json:"defaultDownloadDir"`
	PreferredContextK  int    `json:"preferredContextK"`
	HuggingFaceApiKey  string `json:"huggingFaceApiKey"`
	AutoIntegrate      bool   `json:"autoIntegrate"`
}

func defaultSettings() Settings {
	return Settings{
		Theme:             "Obsidian",
		PreferredContextK: 8,
		AutoIntegrate:     true,
	}
}

// Favorite is a per-model flag plus free-form note.
type Favorite struct {
	Fav  bool   `json:"fav,omitempty"`
	Note string `json:"note,omitempty"`
}

// HistoryEntry records one finished or failed transfer.
type HistoryEntry struct {
	Model     string    `json:"model"`
	Repo      string    `json:"repo,omitempty"`
	Path      string    `json:"path,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SettingsStore owns the JSON state files (settings.json, favorites.json,
// history.json) under one data directory.
type SettingsStore struct {
	mu  sync.Mutex
	dir string
}

func NewSettingsStore(dir string) *SettingsStore {
	return &SettingsStore{dir: dir}
}

func (s *SettingsStore) settingsPath() string  { return filepath.Join(s.dir, "settings.json") }
func (s *SettingsStore) favoritesPath() string { return filepath.Join(s.dir, "favorites.json") }
func (s *SettingsStore) historyPath() string   { return filepath.Join(s.dir, "history.json") }

// Load reads settings.json, returning defaults when the file is absent.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *SettingsStore) loadLocked() (Settings, error) {
	settings := defaultSettings()
	data, err := os.ReadFile(s.settingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return defaultSettings(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// Save writes settings.json atomically enough for a single-writer store.
func (s *SettingsStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(settings)
}

func (s *SettingsStore) saveLocked(settings Settings) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath(), data, 0644)
}

// Patch applies a partial JSON document to the stored settings. Unknown
// keys are rejected so typos do not silently vanish into the file.
func (s *SettingsStore) Patch(raw []byte) (Settings, error) {
	if !gjson.ValidBytes(raw) {
		return Settings{}, fmt.Errorf("invalid JSON body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return Settings{}, err
	}
	data, err := json.Marshal(current)
	if err != nil {
		return Settings{}, err
	}

	var patchErr error
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		if !gjson.GetBytes(data, key.String()).Exists() {
			patchErr = fmt.Errorf("unknown setting: %s", key.String())
			return false
		}
		data, patchErr = sjson.SetBytes(data, key.String(), value.Value())
		return patchErr == nil
	})
	if patchErr != nil {
		return Settings{}, patchErr
	}

	var updated Settings
	if err := json.Unmarshal(data, &updated); err != nil {
		return Settings{}, err
	}
	if err := s.saveLocked(updated); err != nil {
		return Settings{}, err
	}
	return updated, nil
}

// Favorites returns the favorite/note map keyed by model name.
func (s *SettingsStore) Favorites() (map[string]Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFavoritesLocked()
}

func (s *SettingsStore) loadFavoritesLocked() (map[string]Favorite, error) {
	favorites := make(map[string]Favorite)
	data, err := os.ReadFile(s.favoritesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return favorites, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &favorites); err != nil {
		return nil, fmt.Errorf("failed to parse favorites: %w", err)
	}
	return favorites, nil
}

func (s *SettingsStore) saveFavoritesLocked(favorites map[string]Favorite) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(favorites, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.favoritesPath(), data, 0644)
}

// ToggleFavorite flips the favorite flag for a model and returns the new
// value.
func (s *SettingsStore) ToggleFavorite(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadFavoritesLocked()
	if err != nil {
		return false, err
	}
	entry := favorites[name]
	entry.Fav = !entry.Fav
	favorites[name] = entry
	if err := s.saveFavoritesLocked(favorites); err != nil {
		return false, err
	}
	return entry.Fav, nil
}

// SetNote stores a free-form note for a model.
func (s *SettingsStore) SetNote(name, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadFavoritesLocked()
	if err != nil {
		return err
	}
	entry := favorites[name]
	entry.Note = note
	favorites[name] = entry
	return s.saveFavoritesLocked(favorites)
}

// AppendHistory appends one transfer record to history.json.
func (s *SettingsStore) AppendHistory(entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	data, err := os.ReadFile(s.historyPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		data = []byte(`{"entries":[]}`)
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	updated, err := sjson.SetRawBytes(data, "entries.-1", encoded)
	if err != nil {
		return err
	}
	return os.WriteFile(s.historyPath(), updated, 0644)
}

// History returns all recorded transfers, oldest first.
func (s *SettingsStore) History() ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []HistoryEntry
	for _, raw := range gjson.GetBytes(data, "entries").Array() {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(raw.Raw), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
