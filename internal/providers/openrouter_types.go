package providers

import "encoding/json"

// Wire types for the OpenRouter chat completions API.

type openRouterRequest struct {
	Model          string                  `json:"model"`
	Messages       []openRouterMessage     `json:"messages"`
	MaxTokens      int                     `json:"max_tokens,omitempty"`
	Temperature    *float64                `json:"temperature,omitempty"`
	ResponseFormat *openRouterRespFormat   `json:"response_format,omitempty"`
	Usage          *openRouterUsageRequest `json:"usage,omitempty"`
}

type openRouterUsageRequest struct {
	Include bool `json:"include"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []openRouterPart
}

type openRouterPart struct {
	Type     string              `json:"type"` // "text", "image_url", "file"
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
	File     *openRouterFile     `json:"file,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"` // data URL
}

type openRouterRespFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type openRouterResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openRouterChoice `json:"choices"`
	Usage   *openRouterUsage   `json:"usage,omitempty"`
	Error   *openRouterError   `json:"error,omitempty"`
}

type openRouterChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openRouterUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

type openRouterError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}
