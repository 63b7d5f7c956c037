package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// Normalized format every downstream analysis tool expects.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
)

// Info describes a decoded WAV header.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Format     int
	DataBytes  int
}

// Duration returns the PCM payload length in seconds.
func (i Info) Duration() float64 {
	frameBytes := i.Channels * i.BitDepth / 8
	if i.SampleRate <= 0 || frameBytes <= 0 {
		return 0
	}
	return float64(i.DataBytes) / float64(frameBytes*i.SampleRate)
}

// Normalized reports whether the file is mono 16 kHz 16-bit PCM.
func (i Info) Normalized() bool {
	return i.Format == 1 && i.Channels == Channels && i.SampleRate == SampleRate && i.BitDepth == BitDepth
}

// Probe reads the WAV header of path and locates its PCM chunk.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err = dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("read wav header: %w", err)
	}

	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Format:     int(dec.WavAudioFormat),
		DataBytes:  dec.PCMSize,
	}, nil
}

// SamplesToWAV encodes float32 PCM samples as a WAV byte slice.
func SamplesToWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		clamped := max(-1.0, min(1.0, s))
		val := int16(clamped * math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(val))
	}

	return buf
}
