package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageContent_JSON(t *testing.T) {
	t.Run("text encodes as string", func(t *testing.T) {
		b, err := json.Marshal(ChatMessage{Role: "user", Content: TextContent("hi")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(b))
	})

	t.Run("parts encode as array", func(t *testing.T) {
		msg := ChatMessage{Role: "user", Content: PartsContent([]ContentPart{
			TextPart("look"),
			ImageURLPart("https://example.com/a.png", nil),
		})}
		b, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","url":"https://example.com/a.png"}]}`, string(b))

		var decoded ChatMessage
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, msg, decoded)
	})

	t.Run("rejects other JSON values", func(t *testing.T) {
		var c ChatMessageContent
		assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &c))
	})
}

func TestParseInstrumentationContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
		ok    bool
	}{
		{"plain text", "hello", 0, false},
		{"json object", `{"type":"text","text":"a"}`, 0, false},
		{"text and image parts", `[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"https://x/y.png"}}]`, 2, true},
		{"unknown part type", `[{"type":"audio","data":"x"}]`, 0, false},
		{"text part without text", `[{"type":"text"}]`, 0, false},
		{"empty list", `[]`, 0, true},
		{"empty string", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, ok := ParseInstrumentationContent(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Len(t, parts, tt.count)
		})
	}
}
