package client

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Generated media is never rewritten under the same key.
const mediaCacheControl = "public, max-age=31536000, immutable"

// publicObjectURL joins base and an object key, escaping each key segment.
func publicObjectURL(base, key string) (string, error) {
	u, err := url.JoinPath(base, strings.Split(key, "/")...)
	if err != nil {
		return "", fmt.Errorf("invalid public url %q: %w", base, err)
	}
	return u, nil
}

// Image is a generated picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL returns the image as an inline data URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Extension returns a file extension matching MIMEType.
func (i *Image) Extension() string {
	switch i.MIMEType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Speech is synthesized 16-bit little-endian PCM. MIMEType carries the
// provider's declared format, e.g. "audio/L16;codec=pcm;rate=24000".
type Speech struct {
	Data       []byte
	MIMEType   string
	SampleRate int
}

// cleanJSONBlock strips markdown code fences that models sometimes wrap
// around JSON output.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
