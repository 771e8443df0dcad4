package identify

import (
	"path/filepath"
	"strings"
)

// FilenameIdentifier is the no-capability fallback: it derives the identity
// purely from the file name.
type FilenameIdentifier struct{}

func (FilenameIdentifier) Identify(path string) SongIdentity {
	return FromFilename(path)
}

// FromFilename parses "Artist - Title" style names, optionally prefixed by a
// track number like "03 " or "03-". Without a separator the whole stem
// becomes the title and the artist falls back to the sentinel.
func FromFilename(path string) SongIdentity {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if strings.Contains(stem, " - ") {
		candidate := stripTrackPrefix(stem)
		parts := strings.SplitN(candidate, " - ", 2)
		if len(parts) == 2 {
			return SongIdentity{
				Artist:   strings.TrimSpace(parts[0]),
				Title:    strings.TrimSpace(parts[1]),
				Filename: base,
			}
		}
	}

	return SongIdentity{
		Artist:   UnknownArtist,
		Title:    strings.ReplaceAll(stem, "_", " "),
		Filename: base,
	}
}

// stripTrackPrefix removes a leading two-digit track number followed by a
// space or dash.
func stripTrackPrefix(stem string) string {
	if len(stem) > 3 &&
		stem[0] >= '0' && stem[0] <= '9' &&
		stem[1] >= '0' && stem[1] <= '9' &&
		(stem[2] == ' ' || stem[2] == '-') {
		return strings.TrimSpace(stem[3:])
	}
	return stem
}
