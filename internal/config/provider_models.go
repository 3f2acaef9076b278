package config

// ProviderModels lists supported model options per provider.
// Used by the interactive setup wizard.
var ProviderModels = map[string][]string{
	"groq": {
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
		"openai/gpt-oss-120b",
		"openai/gpt-oss-20b",
	},
	"openai": {
		"o4-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
		"gpt-4o",
		"gpt-4o-mini",
	},
	"ollama": {
		"qwen2.5-coder",
		"qwen3-coder",
		"llama3.1",
		"mistral",
	},
	"mock": {"mock"},
}
