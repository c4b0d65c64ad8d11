// Package llm provides LLM provider client implementations.
//
// The factory creates provider clients based on configuration. Supported:
//   - Anthropic Claude (official SDK)
//   - OpenAI, DeepSeek and Gemini through their OpenAI-compatible
//     chat-completions endpoints
package llm
