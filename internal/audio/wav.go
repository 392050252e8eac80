package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Target PCM format required by the speech models.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetBitDepth   = 16
)

// WAVInfo describes the header of a RIFF/WAVE file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Format     int // 1 for PCM
}

// IsTarget reports whether the header matches mono 16 kHz 16-bit PCM.
func (i WAVInfo) IsTarget() bool {
	return i.Format == 1 &&
		i.SampleRate == TargetSampleRate &&
		i.Channels == TargetChannels &&
		i.BitDepth == TargetBitDepth
}

func (i WAVInfo) String() string {
	return fmt.Sprintf("format=%d rate=%d channels=%d depth=%d", i.Format, i.SampleRate, i.Channels, i.BitDepth)
}

// InspectWAV reads the WAV header at path.
func InspectWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("%w: open wav: %v", ErrIO, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("not a valid wav file: %s", path)
	}
	return WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Format:     int(d.WavAudioFormat),
	}, nil
}
