package fingerprint

import (
	"math"
	"sort"
)

// Hash packing layout: [anchorFreq (9 bits) | targetFreq (9 bits) | deltaMs (14 bits)].
const (
	maxFreqBits  = 9
	maxDeltaBits = 14

	// how many forward targets each anchor pairs with
	fanOut = 6

	minDeltaMs = 10
	maxDeltaMs = 15000
)

// Couple is the stored value for a hash bucket entry: which song and where in
// it the anchor peak sits.
type Couple struct {
	SongID       string
	AnchorTimeMs uint32
}

// Match is a candidate produced by offset voting.
type Match struct {
	SongID   string
	OffsetMs int32
	Count    int
}

func packAddress(anchor, target Peak) (uint32, bool) {
	deltaMs := uint32(math.Round((target.Time - anchor.Time) * 1000.0))
	if deltaMs < minDeltaMs || deltaMs > maxDeltaMs {
		return 0, false
	}

	freqMask := uint32(1<<maxFreqBits) - 1
	deltaMask := uint32(1<<maxDeltaBits) - 1
	af, tf := uint32(anchor.FreqIdx), uint32(target.FreqIdx)
	if af > freqMask || tf > freqMask || deltaMs > deltaMask {
		return 0, false
	}

	return af<<(maxDeltaBits+maxFreqBits) | tf<<maxDeltaBits | deltaMs, true
}

// Hash pairs each anchor peak with up to fanOut forward peaks and returns the
// packed hashes bucketed with their anchor couples.
func Hash(peaks []Peak, songID string) map[uint32][]Couple {
	out := make(map[uint32][]Couple)
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < fanOut; j++ {
			addr, ok := packAddress(anchor, peaks[j])
			if !ok {
				continue
			}
			out[addr] = append(out[addr], Couple{
				SongID:       songID,
				AnchorTimeMs: uint32(math.Round(anchor.Time * 1000.0)),
			})
			paired++
		}
	}
	return out
}

// VoteMatches aligns query hashes against database couples by voting on the
// (song, time offset) pairs. A genuine match accumulates many votes at one
// consistent offset.
func VoteMatches(queryHashes map[uint32][]Couple, dbCouples map[uint32][]Couple) []Match {
	type key struct {
		songID string
		offset int32
	}
	votes := make(map[key]int)

	for hash, qCouples := range queryHashes {
		dCouples, ok := dbCouples[hash]
		if !ok {
			continue
		}
		for _, q := range qCouples {
			for _, d := range dCouples {
				k := key{d.SongID, int32(d.AnchorTimeMs) - int32(q.AnchorTimeMs)}
				votes[k]++
			}
		}
	}

	// Vote maps iterate in random order, so every tie is broken explicitly:
	// per song the lowest offset wins among equal counts, and across songs
	// the comparator falls back to SongID. The same input always produces
	// the same ranking.
	best := make(map[string]Match)
	for k, count := range votes {
		m, ok := best[k.songID]
		if !ok || count > m.Count || (count == m.Count && k.offset < m.OffsetMs) {
			best[k.songID] = Match{SongID: k.songID, OffsetMs: k.offset, Count: count}
		}
	}

	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Count != matches[j].Count {
			return matches[i].Count > matches[j].Count
		}
		return matches[i].SongID < matches[j].SongID
	})
	return matches
}
