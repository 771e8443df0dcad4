package fingerprint

import (
	"math"
	"sort"
)

// Peak is a spectral landmark used for fingerprinting. Index and physical
// units are both kept for convenience.
type Peak struct {
	TimeIdx int
	FreqIdx int
	Time    float64 // seconds
	Freq    float64 // Hz
	MagDB   float64
}

const (
	// minimum dB above the band average for a bin to count as a peak
	minDBAboveAvg = 3.0
	eps           = 1e-10
)

// logBands builds rough log-spaced frequency band boundaries clamped to
// nBins. Peaks are picked per band so the low end does not drown out the
// highs.
func logBands(nBins int) [][2]int {
	bands := [][2]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		bands = append(bands, [2]int{start, min(start*2, nBins)})
	}
	return bands
}

// ExtractPeaks finds robust spectral peaks (constellation points) from a
// time-major magnitude spectrogram. Per frame, the strongest bin of each
// log band is kept when it clears the band average by minDBAboveAvg.
// The result is sorted by time, then frequency.
func ExtractPeaks(spectrogram [][]float64, sampleRate int) []Peak {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return nil
	}

	nBins := len(spectrogram[0])
	freqRes := float64(sampleRate) / float64(WindowSize)
	frameTime := float64(HopSize) / float64(sampleRate)
	bands := logBands(nBins)

	var peaks []Peak
	for t, frame := range spectrogram {
		for _, band := range bands {
			lo, hi := band[0], band[1]
			if lo >= hi {
				continue
			}

			sum := 0.0
			bestIdx, bestMag := lo, frame[lo]
			for k := lo; k < hi; k++ {
				sum += frame[k]
				if frame[k] > bestMag {
					bestIdx, bestMag = k, frame[k]
				}
			}
			avg := sum / float64(hi-lo)

			bestDB := 20 * math.Log10(bestMag+eps)
			avgDB := 20 * math.Log10(avg+eps)
			if bestDB-avgDB < minDBAboveAvg {
				continue
			}

			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: bestIdx,
				Time:    float64(t) * frameTime,
				Freq:    float64(bestIdx) * freqRes,
				MagDB:   bestDB,
			})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx != peaks[j].TimeIdx {
			return peaks[i].TimeIdx < peaks[j].TimeIdx
		}
		return peaks[i].FreqIdx < peaks[j].FreqIdx
	})
	return peaks
}
