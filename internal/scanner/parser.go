package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedName holds the metadata extracted from one archive filename.
// Pointer fields are nil when the pattern that matched did not capture
// them. VolumeNumber and VolumeRange are mutually exclusive.
type ParsedName struct {
	Title          string
	OriginalAuthor *string
	Artist         *string
	AuthorReading  *string
	VolumeNumber   *int
	VolumeRange    *string
}

// The canonical release naming is
//
//	[tag] [reading] [authorXartist] title 第N巻.ext
//
// with the leading tag bracket carrying distribution noise that is not
// catalog metadata. The patterns cascade from strict to permissive; the
// first match wins and the bare filename is the terminal fallback.
var (
	// Strict: the reading bracket is limited to kana, ASCII letters,
	// digits, the long vowel mark and spaces.
	reStrict = regexp.MustCompile(`^\[([^\]]+)\]\s*\[([\p{Hiragana}\p{Katakana}ーA-Za-z0-9 ]+)\]\s*\[([^\]]+)\]\s*(.+?)\s*第(\d+(?:-\d+)?)巻\s*$`)

	// Same structure, reading unrestricted.
	reLoose = regexp.MustCompile(`^\[([^\]]+)\]\s*\[([^\]]+)\]\s*\[([^\]]+)\]\s*(.+?)\s*第(\d+(?:-\d+)?)巻\s*$`)

	// No trailing volume marker; a marker embedded in the title is
	// extracted and stripped afterwards.
	reNoVolume = regexp.MustCompile(`^\[([^\]]+)\]\s*\[([^\]]+)\]\s*\[([^\]]+)\]\s*(.+)$`)

	// Volume marker inside free text.
	reEmbeddedVolume = regexp.MustCompile(`第(\d+(?:-\d+)?)巻`)

	// Author bracket separator between original author and artist.
	reAuthorSplit = regexp.MustCompile(`\s*[xX×]\s*`)
)

// ParseFilename extracts structured metadata from an archive filename
// (with or without extension). It never fails: when no pattern matches,
// the extension-stripped filename becomes the title and everything else
// stays unset.
func ParseFilename(name string) ParsedName {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	if m := reStrict.FindStringSubmatch(base); m != nil {
		return fromBrackets(m[2], m[3], m[4], m[5])
	}

	if m := reLoose.FindStringSubmatch(base); m != nil {
		return fromBrackets(m[2], m[3], m[4], m[5])
	}

	if m := reNoVolume.FindStringSubmatch(base); m != nil {
		p := fromBrackets(m[2], m[3], m[4], "")
		if vm := reEmbeddedVolume.FindStringSubmatch(p.Title); vm != nil {
			p.Title = strings.TrimSpace(strings.Replace(p.Title, vm[0], "", 1))
			p.setVolume(vm[1])
		}
		return p
	}

	return ParsedName{Title: base}
}

func fromBrackets(reading, authors, title, volume string) ParsedName {
	p := ParsedName{Title: strings.TrimSpace(title)}

	if r := strings.TrimSpace(reading); r != "" {
		p.AuthorReading = &r
	}

	// First name is the original author, second the artist. A lone name is
	// the artist.
	parts := reAuthorSplit.Split(strings.TrimSpace(authors), 2)
	switch len(parts) {
	case 2:
		orig := strings.TrimSpace(parts[0])
		art := strings.TrimSpace(parts[1])
		if orig != "" {
			p.OriginalAuthor = &orig
		}
		if art != "" {
			p.Artist = &art
		}
	case 1:
		if art := strings.TrimSpace(parts[0]); art != "" {
			p.Artist = &art
		}
	}

	if volume != "" {
		p.setVolume(volume)
	}

	return p
}

// setVolume stores a hyphenated marker as a range and a single number
// (zero-padding tolerated) as an integer.
func (p *ParsedName) setVolume(marker string) {
	if strings.Contains(marker, "-") {
		r := marker
		p.VolumeRange = &r
		p.VolumeNumber = nil
		return
	}
	if n, err := strconv.Atoi(marker); err == nil {
		p.VolumeNumber = &n
		p.VolumeRange = nil
	}
}
