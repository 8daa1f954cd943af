package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentPartType tags a chat message content fragment
type ContentPartType string

const (
	ContentPartTypeText     ContentPartType = "text"
	ContentPartTypeImageURL ContentPartType = "image_url"
	ContentPartTypeImage    ContentPartType = "image"
)

// ContentPart is one resolved fragment of a multimodal chat message
type ContentPart struct {
	Type      ContentPartType `json:"type"`
	Text      string          `json:"text,omitempty"`
	URL       string          `json:"url,omitempty"`
	Detail    *string         `json:"detail,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// TextPart creates a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartTypeText, Text: text}
}

// ImageURLPart creates an image URL content part
func ImageURLPart(url string, detail *string) ContentPart {
	return ContentPart{Type: ContentPartTypeImageURL, URL: url, Detail: detail}
}

// ChatMessageContent is either plain text or an ordered list of parts.
type ChatMessageContent struct {
	Text  string
	Parts []ContentPart
	// IsParts distinguishes an empty part list from empty text.
	IsParts bool
}

// TextContent creates plain text message content
func TextContent(text string) ChatMessageContent {
	return ChatMessageContent{Text: text}
}

// PartsContent creates multimodal message content
func PartsContent(parts []ContentPart) ChatMessageContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return ChatMessageContent{Parts: parts, IsParts: true}
}

// MarshalJSON encodes text as a JSON string and parts as an array
func (c ChatMessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of parts
func (c *ChatMessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*c = PartsContent(parts)
		return nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return fmt.Errorf("chat message content must be a string or an array: %w", err)
	}
	*c = TextContent(text)
	return nil
}

// ChatMessage is one message of a chat prompt
type ChatMessage struct {
	Role    string             `json:"role"`
	Content ChatMessageContent `json:"content"`
}

// InstrumentationImageURL is the image reference sent by instrumentation SDKs
type InstrumentationImageURL struct {
	URL    string  `json:"url"`
	Detail *string `json:"detail,omitempty"`
}

// InstrumentationContentPart is a content fragment as serialized by
// instrumentation SDKs inside gen_ai.prompt.<i>.content.
type InstrumentationContentPart struct {
	Type     ContentPartType          `json:"type"`
	Text     *string                  `json:"text,omitempty"`
	ImageURL *InstrumentationImageURL `json:"image_url,omitempty"`
}

func (p InstrumentationContentPart) valid() bool {
	switch p.Type {
	case ContentPartTypeText:
		return p.Text != nil
	case ContentPartTypeImageURL:
		return p.ImageURL != nil
	}
	return false
}

// ParseInstrumentationContent parses s as a list of instrumentation content
// parts. It reports false for anything that is not a list of well-formed parts.
func ParseInstrumentationContent(s string) ([]InstrumentationContentPart, bool) {
	var parts []InstrumentationContentPart
	if err := json.Unmarshal([]byte(s), &parts); err != nil || parts == nil {
		return nil, false
	}
	for _, p := range parts {
		if !p.valid() {
			return nil, false
		}
	}
	return parts, true
}

// Raw returns the fragment re-encoded as JSON text
func (p InstrumentationContentPart) Raw() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// Output block discriminants for LLM completions
const (
	OutputBlockText     = "text"
	OutputBlockToolCall = "tool_call"
)

// TextBlock is the completion text when it is followed by tool calls
type TextBlock struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// ToolCallBlock is one tool invocation requested by a completion
type ToolCallBlock struct {
	Name      string  `json:"name"`
	ID        *string `json:"id"`
	Arguments any     `json:"arguments"`
	Type      string  `json:"type"`
}
