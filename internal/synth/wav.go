package synth

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writePCMClip(path string, pcm []byte, sampleRate, channels int) (Clip, error) {
	if len(pcm)%2 != 0 {
		return Clip{}, fmt.Errorf("pcm payload not aligned")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Clip{}, fmt.Errorf("create clip dir: %w", err)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	file, err := os.Create(path)
	if err != nil {
		return Clip{}, fmt.Errorf("create clip: %w", err)
	}
	defer file.Close()

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return Clip{}, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Clip{}, fmt.Errorf("close wav encoder: %w", err)
	}

	frames := int64(len(samples) / channels)
	return Clip{
		Path:       path,
		DurationMS: frames * 1000 / int64(sampleRate),
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

func readClipInfo(path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("not a valid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}
	channels := int(dec.NumChans)
	if channels < 1 || dec.SampleRate == 0 {
		return Clip{}, fmt.Errorf("wav file reports %dch/%dHz: %s", channels, dec.SampleRate, path)
	}
	// Same frame arithmetic as writePCMClip so a rediscovered clip reports
	// the exact duration the writing run recorded.
	frames := int64(len(buf.Data) / channels)
	return Clip{
		Path:       path,
		DurationMS: frames * 1000 / int64(dec.SampleRate),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
	}, nil
}
