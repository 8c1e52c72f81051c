// Package audio decodes the 16-bit PCM speech returned by the speech
// providers into normalized float samples and re-encodes it for playback.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"mime"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSampleRate is the rate every speech provider is asked for.
	DefaultSampleRate = 24000
	// DefaultChannels is mono.
	DefaultChannels = 1

	bytesPerSample = 2
	scale          = 32768.0
)

var (
	ErrInvalidBase64 = errors.New("audio: invalid base64 data")
	ErrInvalidFormat = errors.New("audio: invalid format")
	ErrMisaligned    = errors.New("audio: buffer is not a whole number of frames")
)

// Format describes the layout of a PCM stream.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// DefaultFormat is 24 kHz mono.
var DefaultFormat = Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidFormat, f.Channels)
	}
	return nil
}

// Buffer holds decoded samples, one slice per channel. Every channel
// slice has the same length.
type Buffer struct {
	Format   Format      `json:"format"`
	Channels [][]float32 `json:"channels"`
	// Discarded is the number of trailing bytes that did not form a
	// whole frame and were dropped.
	Discarded int `json:"discarded_bytes"`
}

// Frames returns the number of frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Format.SampleRate)
}

// Decoder turns int16 little-endian PCM into a Buffer.
type Decoder struct {
	Format Format
	// Strict rejects buffers with a partial trailing frame instead of
	// dropping the tail.
	Strict bool
}

// NewDecoder returns a lenient decoder for the given format.
func NewDecoder(format Format) *Decoder {
	return &Decoder{Format: format}
}

// DecodeBase64 decodes standard base64 text and then the PCM inside it.
func (d *Decoder) DecodeBase64(encoded string) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return d.Decode(raw)
}

// Decode reinterprets data as interleaved int16 LE samples and splits it
// per channel, normalizing each sample to [-1, 1).
func (d *Decoder) Decode(data []byte) (*Buffer, error) {
	if err := d.Format.validate(); err != nil {
		return nil, err
	}

	frameSize := bytesPerSample * d.Format.Channels
	frames := len(data) / frameSize
	discarded := len(data) - frames*frameSize
	if discarded > 0 && d.Strict {
		return nil, fmt.Errorf("%w: %d bytes with frame size %d", ErrMisaligned, len(data), frameSize)
	}

	channels := make([][]float32, d.Format.Channels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < d.Format.Channels; c++ {
			off := (i*d.Format.Channels + c) * bytesPerSample
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			channels[c][i] = float32(s) / scale
		}
	}

	return &Buffer{
		Format:    d.Format,
		Channels:  channels,
		Discarded: discarded,
	}, nil
}

// DecodeBase64 decodes with a lenient decoder.
func DecodeBase64(encoded string, sampleRate, channels int) (*Buffer, error) {
	return NewDecoder(Format{SampleRate: sampleRate, Channels: channels}).DecodeBase64(encoded)
}

// Decode decodes raw PCM with a lenient decoder.
func Decode(data []byte, sampleRate, channels int) (*Buffer, error) {
	return NewDecoder(Format{SampleRate: sampleRate, Channels: channels}).Decode(data)
}

// Encode interleaves the buffer back into int16 LE PCM. Samples outside
// [-1, 1] are clamped.
func Encode(b *Buffer) []byte {
	frames := b.Frames()
	n := len(b.Channels)
	out := make([]byte, frames*n*bytesPerSample)
	for i := 0; i < frames; i++ {
		for c := 0; c < n; c++ {
			binary.LittleEndian.PutUint16(out[(i*n+c)*bytesPerSample:], uint16(quantize(b.Channels[c][i])))
		}
	}
	return out
}

func quantize(v float32) int16 {
	f := math.Round(float64(v) * scale)
	if f > math.MaxInt16 {
		return math.MaxInt16
	}
	if f < math.MinInt16 {
		return math.MinInt16
	}
	return int16(f)
}

// SampleRateFromMIME reads the rate parameter of an L16 MIME type such
// as "audio/L16;codec=pcm;rate=24000". It returns fallback when the
// parameter is absent or unparsable.
func SampleRateFromMIME(mimeType string, fallback int) int {
	if mimeType == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		// Some providers separate parameters without the leading media type rules.
		for _, part := range strings.Split(mimeType, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && strings.EqualFold(k, "rate") {
				if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
					return rate
				}
			}
		}
		return fallback
	}
	if rate, err := strconv.Atoi(params["rate"]); err == nil && rate > 0 {
		return rate
	}
	return fallback
}
