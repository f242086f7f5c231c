package language

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/quill/internal/kv"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"ru":    Russian,
		"ru-RU": Russian,
		"RU":    Russian,
		"en":    English,
		"en-GB": English,
		"de":    English,
		"":      English,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Normalize(in))
		})
	}
}

func TestCatalog_SetsHaveSameKeys(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	en := c.Keys(English)
	ru := c.Keys(Russian)
	sort.Strings(en)
	sort.Strings(ru)
	assert.Equal(t, en, ru)
	assert.NotEmpty(t, en)
}

func TestCatalog_Text(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	t.Run("formats arguments", func(t *testing.T) {
		got := c.Text(English, "error.text_too_long", 4096, 5000)
		assert.Contains(t, got, "4096")
		assert.Contains(t, got, "5000")
	})

	t.Run("russian by prefix", func(t *testing.T) {
		assert.Equal(t, "Язык изменён на русский.", c.Text("ru-RU", "lang.changed"))
	})

	t.Run("unknown language uses english", func(t *testing.T) {
		assert.Equal(t, "Language changed to English.", c.Text("fr", "lang.changed"))
	})

	t.Run("missing key returns key", func(t *testing.T) {
		assert.Equal(t, "no.such.key", c.Text(English, "no.such.key"))
	})

	t.Run("trailing newline trimmed", func(t *testing.T) {
		assert.False(t, strings.HasSuffix(c.Text(English, "menu"), "\n"))
	})
}

func TestParseCatalog_FallsBackToEnglish(t *testing.T) {
	c, err := ParseCatalog([]byte("en:\n  hello: Hello %s\nru:\n  other: x\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann", c.Text(Russian, "hello", "Ann"))
}

func TestParseCatalog_RequiresEnglish(t *testing.T) {
	_, err := ParseCatalog([]byte("ru:\n  hello: Привет\n"))
	assert.Error(t, err)
}

func TestPreferences(t *testing.T) {
	store := kv.NewMemoryStore()
	prefs := NewPreferences(store, "en")
	ctx := context.Background()

	assert.Equal(t, English, prefs.Get(ctx, "u1"))

	require.NoError(t, prefs.Set(ctx, "u1", "ru"))
	assert.Equal(t, Russian, prefs.Get(ctx, "u1"))
	assert.Equal(t, English, prefs.Get(ctx, "u2"))

	raw, err := store.Get(ctx, "lang:u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"language_code":"ru"}`, string(raw))

	assert.Error(t, prefs.Set(ctx, "u1", "klingon"))
	assert.Equal(t, Russian, prefs.Get(ctx, "u1"))
}

func TestPreferences_CorruptRecordUsesFallback(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "lang:u1", []byte("nope")))
	prefs := NewPreferences(store, "ru")
	assert.Equal(t, Russian, prefs.Get(context.Background(), "u1"))
}

func TestPreferences_ResolveUsesHintUntilChosen(t *testing.T) {
	prefs := NewPreferences(kv.NewMemoryStore(), "en")
	ctx := context.Background()

	assert.Equal(t, Russian, prefs.Resolve(ctx, "u1", "ru-RU"))
	assert.Equal(t, English, prefs.Resolve(ctx, "u1", ""))

	require.NoError(t, prefs.Set(ctx, "u1", "en"))
	assert.Equal(t, English, prefs.Resolve(ctx, "u1", "ru"))
}
