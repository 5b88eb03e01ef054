package audiotag

import (
	"os"
	"path/filepath"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.mp3")
	// Synthesized artifacts start as bare MP3 frames with no tag header.
	require.NoError(t, os.WriteFile(path, []byte("\xff\xfbMP3DATA"), 0o600))
	return path
}

func TestApply_WritesTitleAndArtist(t *testing.T) {
	path := writeArtifact(t)

	tagger := NewTagger()
	require.NoError(t, tagger.Apply(path, "Why Gardens Matter", "Medium"))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer func() { _ = tag.Close() }()
	require.Equal(t, "Why Gardens Matter", tag.Title())
	require.Equal(t, "Medium", tag.Artist())
}

func TestApply_OverwritesExistingTags(t *testing.T) {
	path := writeArtifact(t)

	tagger := NewTagger()
	require.NoError(t, tagger.Apply(path, "First", "One"))
	require.NoError(t, tagger.Apply(path, "Second", "Two"))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer func() { _ = tag.Close() }()
	require.Equal(t, "Second", tag.Title())
	require.Equal(t, "Two", tag.Artist())
}

func TestApply_KeepsAudioBytes(t *testing.T) {
	path := writeArtifact(t)

	tagger := NewTagger()
	require.NoError(t, tagger.Apply(path, "T", "A"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "MP3DATA")
}

func TestApply_EmptyPath(t *testing.T) {
	tagger := NewTagger()
	require.Error(t, tagger.Apply("  ", "T", "A"))
}

func TestApply_MissingFile(t *testing.T) {
	tagger := NewTagger()
	err := tagger.Apply(filepath.Join(t.TempDir(), "nope.mp3"), "T", "A")
	require.Error(t, err)
}
