package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/logger"
)

type fakeText struct {
	mu      sync.Mutex
	calls   int
	text    string
	json    string
	chunks  []string
	errs    []error
	prompts []string
}

func (f *fakeText) Name() string { return "fake-text" }

func (f *fakeText) nextErr(prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeText) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := f.nextErr(prompt); err != nil {
		return "", err
	}
	return f.text, nil
}

func (f *fakeText) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	if err := f.nextErr(prompt); err != nil {
		return err
	}
	return json.Unmarshal([]byte(f.json), target)
}

func (f *fakeText) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	if err := f.nextErr(prompt); err != nil {
		return err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeText) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImage struct {
	mu    sync.Mutex
	calls int
	image *client.Image
	err   error
}

func (f *fakeImage) Name() string { return "fake-image" }

func (f *fakeImage) GenerateImage(ctx context.Context, prompt string) (*client.Image, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.image, f.err
}

type fakeSpeech struct {
	calls  int
	speech *client.Speech
	err    error
	voice  string
}

func (f *fakeSpeech) Name() string { return "fake-speech" }

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voice string) (*client.Speech, error) {
	f.calls++
	f.voice = voice
	return f.speech, f.err
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	c.ttls[key] = ttl
	return nil
}

type fakeMedia struct {
	keys []string
	err  error
}

func (m *fakeMedia) UploadObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "https://media.example.com/" + key, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []NotebookEvent
	attrs  []map[string]string
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, data any, attrs map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := data.(NotebookEvent); ok {
		p.events = append(p.events, ev)
	}
	p.attrs = append(p.attrs, attrs)
	return p.err
}

func newTestAI(text TextGenerator, image ImageGenerator, speech SpeechSynthesizer) *AIService {
	return NewAIService(text, image, speech, logger.NewNop()).WithRetry(0, time.Millisecond)
}
