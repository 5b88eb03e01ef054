// Package audiotag applies ID3v2 title and artist frames to synthesized
// audio artifacts.
package audiotag

import (
	"errors"
	"fmt"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
)

// Tagger writes ID3v2 frames to MP3 files on local disk.
type Tagger struct{}

// NewTagger creates a Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// Apply writes title and artist tags to the MP3 at path. A file with no
// existing tag header gets a new one; that is the normal first write for a
// freshly synthesized artifact, not an error.
func (t *Tagger) Apply(path, title, artist string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("audiotag: path is empty")
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("audiotag: open %s: %w", path, err)
	}
	defer func() { _ = tag.Close() }()

	tag.SetTitle(title)
	tag.SetArtist(artist)
	if err := tag.Save(); err != nil {
		return fmt.Errorf("audiotag: save tags to %s: %w", path, err)
	}
	return nil
}
