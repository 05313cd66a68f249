package compass

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSettingsStoreDefaults(t *testing.T) {
	store := NewSettingsStore(t.TempDir())
	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "Obsidian", settings.Theme)
	assert.Equal(t, 8, settings.PreferredContextK)
	assert.True(t, settings.AutoIntegrate)
	assert.Empty(t, settings.HuggingFaceApiKey)
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	store := NewSettingsStore(t.TempDir())

	want := Settings{
		Theme:              "Light",
		DefaultDownloadDir: "/data/models",
		PreferredContextK:  16,
		HuggingFaceApiKey:  "hf_abc",
		AutoIntegrate:      false,
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSettingsStorePatch(t *testing.T) {
	store := NewSettingsStore(t.TempDir())

	updated, err := store.Patch([]byte(`{"theme":"Light","preferredContextK":32}`))
	require.NoError(t, err)
	assert.Equal(t, "Light", updated.Theme)
	assert.Equal(t, 32, updated.PreferredContextK)
	// untouched fields keep their defaults
	assert.True(t, updated.AutoIntegrate)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, updated, persisted)
}

func TestSettingsStorePatchRejectsUnknownKey(t *testing.T) {
	store := NewSettingsStore(t.TempDir())

	_, err := store.Patch([]byte(`{"them":"Light"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")

	// a rejected patch must not leave a partially written file
	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, defaultSettings(), settings)
}

func TestSettingsStorePatchRejectsInvalidJSON(t *testing.T) {
	store := NewSettingsStore(t.TempDir())
	_, err := store.Patch([]byte(`{theme:`))
	require.Error(t, err)
}

func TestFavoritesToggleAndNote(t *testing.T) {
	store := NewSettingsStore(t.TempDir())

	fav, err := store.ToggleFavorite("Qwen3-8B")
	require.NoError(t, err)
	assert.True(t, fav)

	require.NoError(t, store.SetNote("Qwen3-8B", "great on 12GB"))

	favorites, err := store.Favorites()
	require.NoError(t, err)
	assert.Equal(t, Favorite{Fav: true, Note: "great on 12GB"}, favorites["Qwen3-8B"])

	// toggling off keeps the note
	fav, err = store.ToggleFavorite("Qwen3-8B")
	require.NoError(t, err)
	assert.False(t, fav)

	favorites, err = store.Favorites()
	require.NoError(t, err)
	assert.Equal(t, Favorite{Note: "great on 12GB"}, favorites["Qwen3-8B"])
}

func TestHistoryAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	store := NewSettingsStore(dir)

	first := HistoryEntry{
		Model:     "Qwen3-8B",
		Repo:      "Qwen/Qwen3-8B-GGUF",
		Path:      "/models/qwen3-8b.gguf",
		Status:    "done",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	second := HistoryEntry{
		Model:     "Phi-4-Mini",
		Status:    "error",
		Error:     "server returned 404 Not Found",
		Timestamp: time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendHistory(first))
	require.NoError(t, store.AppendHistory(second))

	entries, err := store.History()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second, entries[1])

	// the file keeps the entries array shape across appends
	data, err := os.ReadFile(dir + "/history.json")
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(data, "entries").IsArray())
	assert.Equal(t, int64(2), gjson.GetBytes(data, "entries.#").Int())
}

func TestHistoryEmpty(t *testing.T) {
	store := NewSettingsStore(t.TempDir())
	entries, err := store.History()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
