package http

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/audio"
	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/internal/validate"
	"github.com/windfall/poplingo_service/pkg/response"
)

// Speech output formats.
const (
	FormatWAV  = "wav"
	FormatJSON = "json"
	FormatPCM  = "pcm"
)

// SpeechHandler handles speech synthesis and raw audio decoding.
type SpeechHandler struct {
	log      zerolog.Logger
	validate *validate.Validator
	speech   *service.SpeechService
}

// NewSpeechHandler creates a new SpeechHandler.
func NewSpeechHandler(log zerolog.Logger, v *validate.Validator, speech *service.SpeechService) *SpeechHandler {
	return &SpeechHandler{
		log:      log,
		validate: v,
		speech:   speech,
	}
}

// SpeechRequest is the body of POST /api/v1/speech.
type SpeechRequest struct {
	Text   string `json:"text" validate:"required"`
	Voice  string `json:"voice" validate:"omitempty,voice"`
	Format string `json:"format" validate:"omitempty,oneof=wav json pcm"`
}

// DecodeRequest is the body of POST /api/v1/audio/decode.
type DecodeRequest struct {
	Data       string `json:"data"`
	SampleRate int    `json:"sample_rate" validate:"omitempty,min=1,max=192000"`
	Channels   int    `json:"channels" validate:"omitempty,min=1,max=8"`
	Strict     bool   `json:"strict"`
}

// DecodeResponse describes a decoded buffer.
type DecodeResponse struct {
	SampleRate int         `json:"sample_rate"`
	Channels   int         `json:"channels"`
	Frames     int         `json:"frames"`
	DurationMs int64       `json:"duration_ms"`
	Discarded  int         `json:"discarded_bytes"`
	Samples    [][]float32 `json:"samples"`
}

// Speak handles POST /api/v1/speech. The format may also be given as a
// query parameter.
func (h *SpeechHandler) Speak(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		handleError(h.log, w, err)
		return
	}
	if q := r.URL.Query().Get("format"); q != "" {
		req.Format = q
	}

	voice, err := service.ParseVoice(req.Voice)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	buf, err := h.speech.Speak(r.Context(), req.Text, voice)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	switch req.Format {
	case "", FormatWAV:
		var out bytes.Buffer
		if err := audio.EncodeWAV(&out, buf); err != nil {
			handleError(h.log, w, errors.InternalWrap("failed to encode wav", err))
			return
		}
		response.Binary(w, http.StatusOK, "audio/wav", out.Bytes())
	case FormatPCM:
		contentType := "audio/L16;rate=" + strconv.Itoa(buf.Format.SampleRate) +
			";channels=" + strconv.Itoa(buf.Format.Channels)
		response.Binary(w, http.StatusOK, contentType, audio.Encode(buf))
	case FormatJSON:
		response.JSON(w, http.StatusOK, describe(buf))
	default:
		handleError(h.log, w, errors.Validation("unsupported format: "+req.Format))
	}
}

// Decode handles POST /api/v1/audio/decode
func (h *SpeechHandler) Decode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		handleError(h.log, w, err)
		return
	}

	format := audio.DefaultFormat
	if req.SampleRate > 0 {
		format.SampleRate = req.SampleRate
	}
	if req.Channels > 0 {
		format.Channels = req.Channels
	}

	dec := audio.NewDecoder(format)
	dec.Strict = req.Strict
	buf, err := dec.DecodeBase64(req.Data)
	if err != nil {
		handleError(h.log, w, errors.Wrap(errors.ErrValidation, "invalid audio data", err))
		return
	}

	response.JSON(w, http.StatusOK, describe(buf))
}

func describe(buf *audio.Buffer) DecodeResponse {
	return DecodeResponse{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.Channels,
		Frames:     buf.Frames(),
		DurationMs: buf.Duration().Milliseconds(),
		Discarded:  buf.Discarded,
		Samples:    buf.Channels,
	}
}

