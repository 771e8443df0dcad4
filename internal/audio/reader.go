package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ReadMonoFloat64 decodes a PCM WAV file and returns mono samples normalized
// to [-1, 1] together with the sample rate. Stereo input is downmixed by
// averaging channels.
func ReadMonoFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding PCM data: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("empty PCM buffer")
	}

	channels := buf.Format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, 0, errors.New("unsupported channel count: only mono/stereo supported")
	}

	scale := 1.0 / float64(int(1)<<(dec.BitDepth-1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	if channels == 1 {
		for i := 0; i < frames; i++ {
			out[i] = float64(buf.Data[i]) * scale
		}
	} else {
		for i := 0; i < frames; i++ {
			l := float64(buf.Data[2*i]) * scale
			r := float64(buf.Data[2*i+1]) * scale
			out[i] = (l + r) * 0.5
		}
	}

	return out, buf.Format.SampleRate, nil
}
