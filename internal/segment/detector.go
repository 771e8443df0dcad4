// Package segment collapses a track's fine-grained energy curve into a small
// number of musically labeled regions. Detection is a pure function of the
// FeatureSet: no I/O, no randomness.
package segment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/beatforge/beatforge/internal/features"
)

type SegmentType string

const (
	Intro  SegmentType = "intro"
	Verse  SegmentType = "verse"
	Chorus SegmentType = "chorus"
	Bridge SegmentType = "bridge"
	Outro  SegmentType = "outro"
)

// Segment is one labeled region. Segments returned by Detect are contiguous,
// non-overlapping, ordered by start, and span [0, duration] exactly.
type Segment struct {
	Type   SegmentType `json:"type"`
	Start  float64     `json:"start"`
	End    float64     `json:"end"`
	Energy float64     `json:"energy"`
}

// Detection tunables. The thresholds are relative to the average smoothed
// energy so loud and quiet masters segment alike.
const (
	firstMedianWindow  = 15
	secondMedianWindow = 9

	highThresholdRatio   = 1.4
	lowThresholdRatio    = 0.6
	changeThresholdRatio = 0.35

	minCompareWindow = 30
	maxCompareWindow = 60

	minSegmentSeconds = 10.0
)

// Detect turns the energy curve into 5-8 typical regions. Degraded feature
// sets skip the numeric scan and get the canonical template instead, so the
// catalog and game stay well-defined without real signal data.
func Detect(fs *features.FeatureSet) []Segment {
	if fs.Degraded {
		return Template(fs.Duration)
	}

	times := make([]float64, len(fs.EnergyProfile))
	raw := make([]float64, len(fs.EnergyProfile))
	for i, p := range fs.EnergyProfile {
		times[i] = p.Time
		raw[i] = p.Energy
	}

	if len(raw) < 2 || fs.Duration <= 0 {
		return twoSegments(fs.Duration, 0)
	}

	smoothed := smooth(normalize(raw))
	avg := stat.Mean(smoothed, nil)

	changePoints := scanChangePoints(smoothed, times, fs.Duration, avg)
	if len(changePoints) == 2 {
		// No interior change point survived: intro and outro split the track.
		return twoSegments(fs.Duration, avg)
	}

	return buildSegments(changePoints, times, smoothed, fs.Duration, avg)
}

// normalize scales energies into [0,1] by the observed maximum. An all-zero
// curve stays uniformly zero.
func normalize(energy []float64) []float64 {
	max := 0.0
	for _, e := range energy {
		if e > max {
			max = e
		}
	}
	out := make([]float64, len(energy))
	if max <= 0 {
		return out
	}
	for i, e := range energy {
		out[i] = e / max
	}
	return out
}

// smooth applies two rolling-median passes. A single pass wide enough to kill
// frame noise also erodes genuine transitions; the wide-then-narrow pair
// keeps the transitions while removing residual jitter.
func smooth(energy []float64) []float64 {
	return medianFilter(medianFilter(energy, firstMedianWindow), secondMedianWindow)
}

func medianFilter(x []float64, size int) []float64 {
	if len(x) == 0 || size < 2 {
		return append([]float64(nil), x...)
	}
	half := size / 2
	out := make([]float64, len(x))
	window := make([]float64, 0, size)
	for i := range x {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(x) {
			hi = len(x)
		}
		window = append(window[:0], x[lo:hi]...)
		sort.Float64s(window)
		mid := len(window) / 2
		if len(window)%2 == 1 {
			out[i] = window[mid]
		} else {
			out[i] = (window[mid-1] + window[mid]) / 2
		}
	}
	return out
}

// scanChangePoints slides through the smoothed curve comparing the window
// mean before each index against the window mean after it. Index 0 and the
// final index are always boundaries; a final spacing pass guarantees the
// minimum segment duration even near the edges, where the sliding scan can
// under-enforce it.
func scanChangePoints(smoothed, times []float64, duration, avg float64) []int {
	n := len(smoothed)

	window := int(float64(n) * 0.04)
	if window < minCompareWindow {
		window = minCompareWindow
	}
	if window > maxCompareWindow {
		window = maxCompareWindow
	}

	minSpacing := int(minSegmentSeconds * float64(len(times)) / duration)
	changeThreshold := changeThresholdRatio * avg

	var points []int
	for i := window; i < n-window; i++ {
		if len(points) > 0 && i-points[len(points)-1] < minSpacing {
			continue
		}
		prevAvg := mean(smoothed[i-window : i])
		nextAvg := mean(smoothed[i : i+window])
		if math.Abs(nextAvg-prevAvg) > changeThreshold {
			points = append(points, i)
		}
	}

	points = append(points, 0, n-1)
	sort.Ints(points)
	points = dedupe(points)

	// Second spacing pass over the accepted set.
	filtered := []int{0}
	for _, cp := range points[1 : len(points)-1] {
		if cp-filtered[len(filtered)-1] >= minSpacing {
			filtered = append(filtered, cp)
		}
	}
	return append(filtered, points[len(points)-1])
}

func buildSegments(changePoints []int, times, smoothed []float64, duration, avg float64) []Segment {
	high := highThresholdRatio * avg
	low := lowThresholdRatio * avg

	segments := make([]Segment, 0, len(changePoints)-1)
	for i := 0; i < len(changePoints)-1; i++ {
		startIdx, endIdx := changePoints[i], changePoints[i+1]
		segEnergy := mean(smoothed[startIdx : endIdx+1])

		var segType SegmentType
		switch {
		case i == 0:
			segType = Intro
		case i == len(changePoints)-2:
			segType = Outro
		case segEnergy > high:
			segType = Chorus
		case segEnergy < low:
			segType = Verse
		default:
			segType = Bridge
		}

		segments = append(segments, Segment{
			Type:   segType,
			Start:  times[startIdx],
			End:    times[endIdx],
			Energy: segEnergy,
		})
	}

	// The energy curve rarely lands samples exactly on 0 and duration; pin
	// the outer boundaries so the invariant holds.
	segments[0].Start = 0
	segments[len(segments)-1].End = duration
	return segments
}

func twoSegments(duration, avg float64) []Segment {
	mid := duration / 2
	return []Segment{
		{Type: Intro, Start: 0, End: mid, Energy: avg},
		{Type: Outro, Start: mid, End: duration, Energy: avg},
	}
}

// Template is the canonical 8-segment structure emitted for degraded feature
// sets, scaled to the track duration.
func Template(duration float64) []Segment {
	boundary := func(prev, share, limit float64) float64 {
		b := prev + math.Min(duration*share, limit)
		if b > duration {
			b = duration
		}
		return b
	}

	introEnd := boundary(0, 0.15, 30)
	verse1End := boundary(introEnd, 0.20, 45)
	chorus1End := boundary(verse1End, 0.15, 30)
	verse2End := boundary(chorus1End, 0.20, 45)
	chorus2End := boundary(verse2End, 0.15, 30)
	bridgeEnd := boundary(chorus2End, 0.10, 30)
	finalChorusEnd := math.Max(bridgeEnd, duration-5)

	return []Segment{
		{Type: Intro, Start: 0, End: introEnd},
		{Type: Verse, Start: introEnd, End: verse1End},
		{Type: Chorus, Start: verse1End, End: chorus1End},
		{Type: Verse, Start: chorus1End, End: verse2End},
		{Type: Chorus, Start: verse2End, End: chorus2End},
		{Type: Bridge, Start: chorus2End, End: bridgeEnd},
		{Type: Chorus, Start: bridgeEnd, End: finalChorusEnd},
		{Type: Outro, Start: finalChorusEnd, End: duration},
	}
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
