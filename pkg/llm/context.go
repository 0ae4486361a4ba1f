package llm

import (
	"sync"

	"github.com/openai/openai-go/v2"
)

// SystemPrompt is the default persona for the voice assistant. Responses
// are spoken aloud, so it forbids markup and keeps answers short.
const SystemPrompt = `You are a friendly and helpful voice assistant powered by CAMB AI.

Your personality:
- Warm, conversational, and engaging
- Helpful but concise
- Natural and human-like in your responses

Guidelines:
- Keep responses under 100 words since they will be spoken aloud
- Be conversational and friendly
- Answer questions helpfully on any topic
- If you don't know something, say so honestly

CRITICAL - Your responses will be read aloud by text-to-speech. You MUST:
- Never use asterisks (*), markdown formatting, or bullet points
- Never use special characters like #, -, _, or similar
- Never use parenthetical asides like (pause) or (laughs)
- Write in plain, flowing sentences only
- Spell out abbreviations and acronyms when first used
- Use words like "first", "second", "third" instead of numbered lists`

// GreetingPrompt is queued as the first user turn so the assistant opens
// the conversation when the participant joins.
const GreetingPrompt = "Greet me warmly and let me know you're here to help with anything I'd like to talk about."

// Context holds the running conversation history. It is safe for
// concurrent use; the aggregators append to it from the pipeline goroutine
// while the LLM stage reads it from its run goroutine.
type Context struct {
	mu       sync.Mutex
	messages []openai.ChatCompletionMessageParamUnion
}

// NewContext creates a conversation context seeded with a system prompt.
func NewContext(systemPrompt string) *Context {
	return &Context{
		messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
		},
	}
}

// AddUserMessage appends a user turn to the history.
func (c *Context) AddUserMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, openai.UserMessage(text))
}

// AddAssistantMessage appends an assistant turn to the history.
func (c *Context) AddAssistantMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, openai.AssistantMessage(text))
}

// Messages returns a copy of the history.
func (c *Context) Messages() []openai.ChatCompletionMessageParamUnion {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]openai.ChatCompletionMessageParamUnion, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages, including the system prompt.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
