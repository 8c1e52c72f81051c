package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/logger"
	"github.com/windfall/poplingo_service/internal/middleware"
	"github.com/windfall/poplingo_service/internal/repository"
	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/internal/validate"
)

type stubText struct {
	json string
	text string
}

func (s *stubText) Name() string { return "stub" }

func (s *stubText) GenerateText(ctx context.Context, prompt string) (string, error) {
	return s.text, nil
}

func (s *stubText) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	return json.Unmarshal([]byte(s.json), target)
}

func (s *stubText) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	return onChunk(s.text)
}

type stubImage struct{}

func (stubImage) Name() string { return "stub" }

func (stubImage) GenerateImage(ctx context.Context, prompt string) (*client.Image, error) {
	return &client.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}, nil
}

type stubSpeech struct{}

func (stubSpeech) Name() string { return "stub" }

func (stubSpeech) Synthesize(ctx context.Context, text, voice string) (*client.Speech, error) {
	return &client.Speech{
		Data:       []byte{0x00, 0x40, 0x00, 0xC0},
		MIMEType:   "audio/L16;codec=pcm;rate=24000",
		SampleRate: 24000,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int `json:"total"`
	} `json:"meta"`
}

const testUser = "user-1"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewNop()
	v, err := validate.New()
	require.NoError(t, err)

	text := &stubText{
		json: `{"definition":"a cat","examples":[{"text":"el gato","translation":"the cat"}],"usageNote":"meow"}`,
		text: "Un *gato* grande.",
	}
	ai := service.NewAIService(text, stubImage{}, stubSpeech{}, log).WithRetry(0, time.Millisecond)
	notebook := service.NewNotebookService(repository.NewMemoryNotebookRepository(), log)
	dictionary := service.NewDictionaryService(ai, log)
	study := service.NewStudyService(notebook, log)
	story := service.NewStoryService(ai, notebook, log)
	speech := service.NewSpeechService(ai, log)

	lookupH := NewLookupHandler(log, v, dictionary, notebook)
	notebookH := NewNotebookHandler(log, notebook)
	studyH := NewStudyHandler(log, study)
	storyH := NewStoryHandler(log, v, story)
	speechH := NewSpeechHandler(log, v, speech)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := r.Header.Get("X-Test-User"); u != "" {
				r = r.WithContext(middleware.WithUserID(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/languages", Languages)
	r.Post("/lookup", lookupH.Lookup)
	r.Get("/notebook", notebookH.List)
	r.Post("/notebook", notebookH.Save)
	r.Post("/notebook/toggle", notebookH.Toggle)
	r.Get("/notebook/{id}", notebookH.Get)
	r.Delete("/notebook/{id}", notebookH.Delete)
	r.Post("/study/sessions", studyH.Start)
	r.Get("/study/sessions/{id}", studyH.Current)
	r.Post("/study/sessions/{id}/next", studyH.Next)
	r.Post("/study/sessions/{id}/flip", studyH.Flip)
	r.Delete("/study/sessions/{id}", studyH.End)
	r.Post("/story", storyH.Generate)
	r.Post("/speech", speechH.Speak)
	r.Post("/audio/decode", speechH.Decode)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body, user string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func entryJSON(id, term string) string {
	return `{"id":"` + id + `","term":"` + term + `","definition":"def","examples":[],"usage_note":"note","timestamp":1}`
}

func TestLookup(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name       string
		body       string
		user       string
		wantStatus int
		wantCode   string
	}{
		{name: "unauthenticated", body: `{}`, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "missing term", body: `{"native_lang":"English","target_lang":"Spanish"}`, user: testUser, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "bad language", body: `{"term":"gato","native_lang":"Klingon","target_lang":"Spanish"}`, user: testUser, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "malformed body", body: `{`, user: testUser, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "ok", body: `{"term":"gato","native_lang":"English","target_lang":"Spanish"}`, user: testUser, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/lookup", tt.body, tt.user)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}

			var got LookupResponse
			require.NoError(t, json.Unmarshal(env.Data, &got))
			require.NotNil(t, got.Entry)
			entry := got.Entry
			assert.Equal(t, "gato", entry.Term)
			assert.Equal(t, "a cat", entry.Definition)
			assert.True(t, strings.HasPrefix(entry.ImageURL, "data:image/png;base64,"))
			assert.False(t, got.Saved)
		})
	}
}

func TestNotebookFlow(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/notebook", entryJSON("e1", "gato"), testUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/notebook", entryJSON("e2", "gato"), testUser)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	rec, env = do(t, h, http.MethodPost, "/notebook/toggle", entryJSON("e3", " perro "), testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled ToggleResponse
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	assert.True(t, toggled.Saved)
	require.NotNil(t, toggled.Entry)
	assert.Equal(t, "perro", toggled.Entry.Term)

	rec, env = do(t, h, http.MethodPost, "/notebook", entryJSON("e3", "pájaro"), testUser)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, env.Error.Message, "entry id already in use")

	rec, env = do(t, h, http.MethodGet, "/notebook", "", testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Total)
	var entries []repository.Entry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Equal(t, "perro", entries[0].Term)

	rec, _ = do(t, h, http.MethodGet, "/notebook", "", "someone-else")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/notebook/e1", "", testUser)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/notebook/e1", "", testUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodDelete, "/notebook/e1", "", testUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestStudyFlow(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodPost, "/study/sessions", "", testUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	do(t, h, http.MethodPost, "/notebook", entryJSON("e1", "uno"), testUser)
	do(t, h, http.MethodPost, "/notebook", entryJSON("e2", "dos"), testUser)

	rec, env = do(t, h, http.MethodPost, "/study/sessions", "", testUser)
	require.Equal(t, http.StatusCreated, rec.Code)
	var card service.StudyCard
	require.NoError(t, json.Unmarshal(env.Data, &card))
	assert.Equal(t, 1, card.Position)
	assert.Equal(t, 2, card.Total)
	assert.Nil(t, card.Back)

	path := "/study/sessions/" + card.SessionID
	_, env = do(t, h, http.MethodPost, path+"/flip", "", testUser)
	require.NoError(t, json.Unmarshal(env.Data, &card))
	assert.True(t, card.Flipped)
	require.NotNil(t, card.Back)

	_, env = do(t, h, http.MethodPost, path+"/next", "", testUser)
	card = service.StudyCard{}
	require.NoError(t, json.Unmarshal(env.Data, &card))
	assert.Equal(t, 2, card.Position)
	assert.False(t, card.Flipped)

	rec, _ = do(t, h, http.MethodGet, path, "", "someone-else")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, path, "", testUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, h, http.MethodGet, path, "", testUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStory(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodPost, "/story", `{"native_lang":"English","target_lang":"Spanish"}`, testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var story service.Story
	require.NoError(t, json.Unmarshal(env.Data, &story))
	assert.Equal(t, service.NoTermsMessage, story.Text)

	rec, env = do(t, h, http.MethodPost, "/story", `{"native_lang":"English","target_lang":"Spanish","terms":["gato"]}`, testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &story))
	assert.Equal(t, []string{"gato"}, story.Highlights)
}

func TestSpeechFormats(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantType    string
		wantBodyLen int
	}{
		{name: "wav default", body: `{"text":"hola"}`, wantStatus: http.StatusOK, wantType: "audio/wav"},
		{name: "pcm", body: `{"text":"hola","format":"pcm"}`, wantStatus: http.StatusOK, wantType: "audio/L16;rate=24000;channels=1", wantBodyLen: 4},
		{name: "json", body: `{"text":"hola","voice":"Kore","format":"json"}`, wantStatus: http.StatusOK, wantType: "application/json"},
		{name: "bad voice", body: `{"text":"hola","voice":"Nobody"}`, wantStatus: http.StatusBadRequest, wantType: "application/json"},
		{name: "bad format", body: `{"text":"hola","format":"mp3"}`, wantStatus: http.StatusBadRequest, wantType: "application/json"},
		{name: "empty text", body: `{"text":""}`, wantStatus: http.StatusBadRequest, wantType: "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, "/speech", tt.body, testUser)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.wantType))
			if tt.wantBodyLen > 0 {
				assert.Len(t, rec.Body.Bytes(), tt.wantBodyLen)
			}
		})
	}

	rec, _ := do(t, h, http.MethodPost, "/speech", `{"text":"hola"}`, testUser)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")))
}

func TestAudioDecode(t *testing.T) {
	h := newTestRouter(t)
	data := base64.StdEncoding.EncodeToString([]byte{0x00, 0x40, 0x00, 0xC0, 0x01})

	rec, env := do(t, h, http.MethodPost, "/audio/decode", `{"data":"`+data+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got DecodeResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 24000, got.SampleRate)
	assert.Equal(t, 2, got.Frames)
	assert.Equal(t, 1, got.Discarded)
	require.Len(t, got.Samples, 1)
	assert.InDelta(t, 0.5, got.Samples[0][0], 1e-6)
	assert.InDelta(t, -0.5, got.Samples[0][1], 1e-6)

	rec, _ = do(t, h, http.MethodPost, "/audio/decode", `{"data":"`+data+`","strict":true}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/audio/decode", `{"data":"!!!"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLanguages(t *testing.T) {
	rec, env := do(t, newTestRouter(t), http.MethodGet, "/languages", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Mandarin Chinese")
	assert.Contains(t, string(env.Data), `"default_voice":"Puck"`)
}
