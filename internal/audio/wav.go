package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// wavPrecision is 16-bit output, matching the provider PCM.
const wavPrecision = 2

// Streamer adapts a Buffer to beep. Mono buffers play on both sides.
type Streamer struct {
	buf *Buffer
	pos int
}

// NewStreamer returns a streamer positioned at the first frame.
func NewStreamer(b *Buffer) *Streamer {
	return &Streamer{buf: b}
}

// Stream implements beep.Streamer.
func (s *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := s.buf.Frames()
	if s.pos >= frames {
		return 0, false
	}
	for n < len(samples) && s.pos < frames {
		left := float64(s.buf.Channels[0][s.pos])
		right := left
		if len(s.buf.Channels) > 1 {
			right = float64(s.buf.Channels[1][s.pos])
		}
		samples[n][0] = left
		samples[n][1] = right
		n++
		s.pos++
	}
	return n, true
}

// Err implements beep.Streamer.
func (s *Streamer) Err() error {
	return nil
}

// EncodeWAV writes the buffer as a 16-bit RIFF/WAV file.
func EncodeWAV(w io.Writer, b *Buffer) error {
	if b == nil || len(b.Channels) == 0 {
		return fmt.Errorf("%w: empty buffer", ErrInvalidFormat)
	}
	if len(b.Channels) > 2 {
		return fmt.Errorf("%w: wav output supports at most 2 channels, got %d", ErrInvalidFormat, len(b.Channels))
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(b.Format.SampleRate),
		NumChannels: len(b.Channels),
		Precision:   wavPrecision,
	}

	// wav.Encode patches the header after streaming, so it needs to seek.
	ws := &seekBuffer{}
	if err := wav.Encode(ws, NewStreamer(b), format); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	_, err := w.Write(ws.buf)
	return err
}

// seekBuffer is an in-memory io.WriteSeeker.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	s.pos = int(abs)
	return abs, nil
}
