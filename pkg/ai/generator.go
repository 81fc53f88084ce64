package ai

import "context"

// Usage reports token consumption for one model call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Completion is the result of one text generation call.
type Completion struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// TextGenerator generates text from a system prompt and user prompt and
// reports token usage. All LLM providers (Gemini, Ollama, OpenAI-compatible)
// implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
}

// estimateUsage approximates token counts for providers that do not return
// usage metadata, at roughly four characters per token.
func estimateUsage(prompt, completion string) Usage {
	return Usage{
		PromptTokens:     (len(prompt) + 3) / 4,
		CompletionTokens: (len(completion) + 3) / 4,
	}
}
