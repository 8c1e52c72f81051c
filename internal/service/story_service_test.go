package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/poplingo_service/internal/logger"
)

func TestStoryService_NoTerms(t *testing.T) {
	text := &fakeText{text: "should not be used"}
	notebook, _ := newTestNotebook()
	svc := NewStoryService(newTestAI(text, nil, nil), notebook, logger.NewNop())

	story, err := svc.Generate(context.Background(), "u1", English, Spanish, nil)
	require.NoError(t, err)
	assert.Equal(t, NoTermsMessage, story.Text)
	assert.Equal(t, 0, text.callCount())
}

func TestStoryService_UsesNotebookTerms(t *testing.T) {
	ctx := context.Background()
	text := &fakeText{text: "El *gato* dijo *hola*. Summary: a cat said hi."}
	notebook, _ := newTestNotebook()
	_, err := notebook.Save(ctx, "u1", testEntry("1", "hola"))
	require.NoError(t, err)
	_, err = notebook.Save(ctx, "u1", testEntry("2", "gato"))
	require.NoError(t, err)
	svc := NewStoryService(newTestAI(text, nil, nil), notebook, logger.NewNop())

	story, err := svc.Generate(ctx, "u1", English, Spanish, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"gato", "hola"}, story.Terms)
	assert.Equal(t, []string{"gato", "hola"}, story.Highlights)
	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], "story in Spanish")
	assert.Contains(t, text.prompts[0], "gato, hola")
	assert.Contains(t, text.prompts[0], "summary in English")
}

func TestStoryService_ExplicitTermsAndEmptyReply(t *testing.T) {
	text := &fakeText{text: "   "}
	notebook, _ := newTestNotebook()
	svc := NewStoryService(newTestAI(text, nil, nil), notebook, logger.NewNop())

	story, err := svc.Generate(context.Background(), "u1", English, French, []string{" chat ", ""})
	require.NoError(t, err)
	assert.Equal(t, EmptyStoryMessage, story.Text)
	assert.Equal(t, []string{"chat"}, story.Terms)
}

func TestStoryService_Stream(t *testing.T) {
	text := &fakeText{chunks: []string{"Un *chat* ", "mange."}}
	notebook, _ := newTestNotebook()
	svc := NewStoryService(newTestAI(text, nil, nil), notebook, logger.NewNop())

	var chunks []string
	story, err := svc.Stream(context.Background(), "u1", English, French, []string{"chat"}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Un *chat* ", "mange."}, chunks)
	assert.Equal(t, "Un *chat* mange.", story.Text)
	assert.Equal(t, []string{"chat"}, story.Highlights)
}

func TestStoryService_StreamNoTerms(t *testing.T) {
	notebook, _ := newTestNotebook()
	svc := NewStoryService(newTestAI(&fakeText{}, nil, nil), notebook, logger.NewNop())

	var chunks []string
	_, err := svc.Stream(context.Background(), "u1", English, French, nil, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{NoTermsMessage}, chunks)
}

func TestHighlights(t *testing.T) {
	tests := []struct {
		name  string
		story string
		want  []string
	}{
		{name: "none", story: "plain text", want: []string{}},
		{name: "dedup", story: "*a* and *b* and *a*", want: []string{"a", "b"}},
		{name: "phrase", story: "say *buenos días* now", want: []string{"buenos días"}},
		{name: "unclosed", story: "*open and *closed*", want: []string{"open and"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlights(tt.story))
		})
	}
}
