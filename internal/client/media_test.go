package client

import (
	"context"
	"testing"

	litegenai "github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "whitespace", in: "  \n{\"a\":1}\n ", want: `{"a":1}`},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONBlock(tt.in))
		})
	}
}

func TestImage(t *testing.T) {
	img := &Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}
	assert.Equal(t, "data:image/png;base64,AQID", img.DataURL())
	assert.Equal(t, ".png", img.Extension())
	assert.Equal(t, ".jpg", (&Image{MIMEType: "image/jpeg"}).Extension())
	assert.Equal(t, ".webp", (&Image{MIMEType: "image/webp"}).Extension())
}

func TestToLiteSchema(t *testing.T) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"definition": {Type: genai.TypeString},
			"examples": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"definition"},
	}

	got := toLiteSchema(schema)
	require.NotNil(t, got)
	assert.Equal(t, litegenai.TypeObject, got.Type)
	assert.Equal(t, []string{"definition"}, got.Required)
	assert.Equal(t, litegenai.TypeString, got.Properties["definition"].Type)
	assert.Equal(t, litegenai.TypeArray, got.Properties["examples"].Type)
	assert.Equal(t, litegenai.TypeString, got.Properties["examples"].Items.Type)

	assert.Nil(t, toLiteSchema(nil))
}

func TestPublicObjectURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{name: "plain", base: "https://media.example.com", key: "lookups/abc/image.png", want: "https://media.example.com/lookups/abc/image.png"},
		{name: "trailing slash", base: "https://media.example.com/", key: "lookups/abc/image.png", want: "https://media.example.com/lookups/abc/image.png"},
		{name: "bucket path", base: "https://storage.googleapis.com/bucket", key: "a b.png", want: "https://storage.googleapis.com/bucket/a%20b.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := publicObjectURL(tt.base, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCloudflareClientRequiresSettings(t *testing.T) {
	_, err := NewCloudflareClient(context.Background(), "key", "secret", "https://r2.example.com", "", "https://media.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
