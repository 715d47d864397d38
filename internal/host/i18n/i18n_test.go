package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateKnownMessage(t *testing.T) {
	dict := New(map[string]string{
		"Caption": "Bildunterschrift",
		"Link":    "Verweis",
	})

	assert.Equal(t, "Bildunterschrift", dict.Translate("Caption"))
	assert.Equal(t, "Verweis", dict.Translate("Link"))
}

func TestTranslateFallsBackToIdentity(t *testing.T) {
	dict := New(map[string]string{"Caption": "Bildunterschrift"})

	assert.Equal(t, "Select an Image", dict.Translate("Select an Image"))
}

func TestTranslateNilDictionary(t *testing.T) {
	var dict *Dictionary

	assert.Equal(t, "Caption", dict.Translate("Caption"))
	assert.Zero(t, dict.Len())
}

func TestTranslateIgnoresEmptyEntries(t *testing.T) {
	dict := New(map[string]string{"Caption": ""})

	assert.Equal(t, "Caption", dict.Translate("Caption"))
}

func TestParse(t *testing.T) {
	dict, err := Parse([]byte("Caption: Légende\n\"With border\": Avec bordure\n"))

	require.NoError(t, err)
	assert.Equal(t, "Légende", dict.Translate("Caption"))
	assert.Equal(t, "Avec bordure", dict.Translate("With border"))
	assert.Equal(t, 2, dict.Len())
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("caption: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Caption: Légende\n"), 0o644))

	dict, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "Légende", dict.Translate("Caption"))
}

func TestLoadMissingFileYieldsEmptyDictionary(t *testing.T) {
	dict, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Zero(t, dict.Len())
	assert.Equal(t, "Caption", dict.Translate("Caption"))
}

func TestLoadEmptyPath(t *testing.T) {
	dict, err := Load("  ")

	require.NoError(t, err)
	assert.Zero(t, dict.Len())
}
