package features

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/beatforge/beatforge/internal/audio"
	"github.com/beatforge/beatforge/internal/fingerprint"
	"github.com/beatforge/beatforge/pkg/logger"
)

// RMS framing for the energy curve.
const (
	energyFrame = 2048
	energyHop   = 512
)

// Analyzer measures a FeatureSet from the audio signal. Any failure along the
// way hands the file to the synthetic fallback instead of surfacing an error.
type Analyzer struct {
	cfg      *Config
	log      *logger.Logger
	fallback *Synthetic
}

func (a *Analyzer) Extract(path string) (*FeatureSet, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	fs, err := a.analyze(path)
	if err != nil {
		a.log.Warnf("Analysis failed for %s, degrading to synthetic features: %v", filepath.Base(path), err)
		return a.fallback.Extract(path)
	}
	return fs, nil
}

func (a *Analyzer) analyze(path string) (*FeatureSet, error) {
	samples, sr, err := audio.LoadSamples(context.Background(), path, a.cfg.TempDir, a.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 || sr <= 0 {
		return nil, fmt.Errorf("no samples decoded from %s", path)
	}
	duration := float64(len(samples)) / float64(sr)
	a.log.Infof("Loaded %s: %.2f sec at %d Hz", filepath.Base(path), duration, sr)

	energy := rmsEnergy(samples, sr)

	spec, err := fingerprint.ComputeSpectrogram(samples)
	if err != nil {
		return nil, fmt.Errorf("spectrogram: %w", err)
	}
	frameTime := float64(fingerprint.HopSize) / float64(sr)

	onsets := detectOnsets(spec, frameTime, duration)
	a.log.Infof("Detected %d onsets", len(onsets))

	tempo := estimateTempo(onsets)
	beats := beatGrid(tempo, onsets, duration)
	a.log.Infof("Estimated tempo %.1f BPM (%d beats)", tempo, len(beats))

	notes := detectNotes(spec, frameTime, sr, duration)
	a.log.Infof("Extracted %d filtered notes", len(notes))

	return &FeatureSet{
		Filename:      filepath.Base(path),
		Duration:      duration,
		Tempo:         tempo,
		SampleRate:    sr,
		BeatTimes:     beats,
		OnsetTimes:    onsets,
		EnergyProfile: energy,
		Notes:         notes,
	}, nil
}

// rmsEnergy computes the framed RMS curve sampled every energyHop samples.
func rmsEnergy(samples []float64, sr int) []EnergyPoint {
	if len(samples) < energyFrame {
		return []EnergyPoint{{Time: 0, Energy: 0}}
	}
	n := (len(samples)-energyFrame)/energyHop + 1
	out := make([]EnergyPoint, 0, n)
	for i := 0; i < n; i++ {
		start := i * energyHop
		sum := 0.0
		for _, s := range samples[start : start+energyFrame] {
			sum += s * s
		}
		out = append(out, EnergyPoint{
			Time:   float64(start) / float64(sr),
			Energy: math.Sqrt(sum / energyFrame),
		})
	}
	return out
}

// detectOnsets picks local maxima of the spectral flux that clear the
// mean + 1.5 sigma threshold, with a 50 ms refractory gap.
func detectOnsets(spec [][]float64, frameTime, duration float64) []float64 {
	if len(spec) < 3 {
		return nil
	}

	flux := make([]float64, len(spec))
	for i := 1; i < len(spec); i++ {
		sum := 0.0
		for k := range spec[i] {
			if d := spec[i][k] - spec[i-1][k]; d > 0 {
				sum += d
			}
		}
		flux[i] = sum
	}

	mean := stat.Mean(flux, nil)
	sigma := stat.StdDev(flux, nil)
	threshold := mean + 1.5*sigma

	var onsets []float64
	last := math.Inf(-1)
	for i := 1; i < len(flux)-1; i++ {
		if flux[i] < threshold || flux[i] < flux[i-1] || flux[i] < flux[i+1] {
			continue
		}
		t := float64(i) * frameTime
		if t-last < 0.05 || t > duration {
			continue
		}
		onsets = append(onsets, t)
		last = t
	}
	return onsets
}

// estimateTempo derives BPM from the median inter-onset interval, folded by
// octave into a plausible musical range.
func estimateTempo(onsets []float64) float64 {
	const fallbackBPM = 100.0
	if len(onsets) < 2 {
		return fallbackBPM
	}

	iois := make([]float64, 0, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		if d := onsets[i] - onsets[i-1]; d > 0 {
			iois = append(iois, d)
		}
	}
	if len(iois) == 0 {
		return fallbackBPM
	}
	sort.Float64s(iois)
	bpm := 60 / iois[len(iois)/2]

	for bpm < 70 {
		bpm *= 2
	}
	for bpm > 180 {
		bpm /= 2
	}
	return bpm
}

// beatGrid lays a fixed grid at the estimated tempo, phased to the first
// onset when one exists.
func beatGrid(tempo float64, onsets []float64, duration float64) []float64 {
	interval := 60 / tempo
	phase := 0.0
	if len(onsets) > 0 {
		phase = math.Mod(onsets[0], interval)
	}
	beats := make([]float64, 0, int(duration/interval)+1)
	for t := phase; t < duration; t += interval {
		beats = append(beats, t)
	}
	return beats
}

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func hzToNote(freq float64) string {
	if freq <= 0 {
		return ""
	}
	midi := int(math.Round(69 + 12*math.Log2(freq/440)))
	if midi < 0 || midi > 127 {
		return ""
	}
	return fmt.Sprintf("%s%d", pitchNames[midi%12], midi/12-1)
}

// detectNotes tracks the dominant spectral bin per frame and keeps a note
// only when it has not been seen within the last 50 ms, mirroring how the
// pitch events are consumed downstream.
func detectNotes(spec [][]float64, frameTime float64, sr int, duration float64) []NoteEvent {
	if len(spec) == 0 {
		return nil
	}
	freqRes := float64(sr) / float64(fingerprint.WindowSize)

	// Ignore frames whose dominant bin is below the global median magnitude;
	// near-silence produces garbage pitches.
	maxes := make([]float64, len(spec))
	for i, frame := range spec {
		for _, m := range frame {
			if m > maxes[i] {
				maxes[i] = m
			}
		}
	}
	sorted := append([]float64(nil), maxes...)
	sort.Float64s(sorted)
	floor := sorted[len(sorted)/2]

	var notes []NoteEvent
	lastSeen := make(map[string]float64)
	for i, frame := range spec {
		if maxes[i] <= floor {
			continue
		}
		bestIdx := 0
		for k := range frame {
			if frame[k] > frame[bestIdx] {
				bestIdx = k
			}
		}
		note := hzToNote(float64(bestIdx) * freqRes)
		if note == "" {
			continue
		}
		t := float64(i) * frameTime
		if t > duration {
			break
		}
		if prev, ok := lastSeen[note]; ok && t-prev <= 0.05 {
			lastSeen[note] = t
			continue
		}
		notes = append(notes, NoteEvent{Time: math.Round(t*100) / 100, Note: note})
		lastSeen[note] = t
	}
	return notes
}
