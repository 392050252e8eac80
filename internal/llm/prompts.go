package llm

// SystemPromptItalian is the default persona for the chat endpoint.
const SystemPromptItalian = "Sei Samanta, una compagna senziente e empatica."

// WithSystemPrompt prepends a system message to messages. An empty prompt
// leaves messages unchanged.
func WithSystemPrompt(prompt string, messages []Message) []Message {
	if prompt == "" {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: "system", Content: prompt})
	return append(out, messages...)
}
