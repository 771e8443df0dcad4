// Package identify resolves an audio file to its artist and title. The
// acoustic variant fingerprints the file against a local index; when that is
// unavailable or fails, deterministic filename heuristics take over.
// Identification never errors outward.
package identify

// UnknownArtist is the sentinel used when no artist can be determined.
const UnknownArtist = "Unknown Artist"

// SongIdentity is the persisted metadata record consumed by the catalog and
// the organize stage. It is produced once and treated as immutable, except
// for Rebrand.
type SongIdentity struct {
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
}

// Rebrand overwrites the artist, used to mark curated tracks owned by the
// house catalog.
func (s *SongIdentity) Rebrand(artist string) {
	s.Artist = artist
}
