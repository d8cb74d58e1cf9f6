package catalog

// Builtin returns the providers shipped with the application. They are
// used whenever the configuration declares no providers of its own.
func Builtin() []Provider {
	return []Provider{
		{
			ID:                "anthropic",
			Name:              "Anthropic",
			Description:       "Claude family of models for conversational AI",
			IsEnabled:         true,
			SupportsStreaming: true,
			Models: []Model{
				{
					ID:                "claude-3-5-sonnet-20241022",
					Name:              "Claude 3.5 Sonnet",
					Description:       "Most capable model for complex reasoning and analysis",
					MaxTokens:         200000,
					SupportsFunctions: true,
					IsDefault:         true,
				},
				{
					ID:                "claude-3-5-haiku-20241022",
					Name:              "Claude 3.5 Haiku",
					Description:       "Fastest model for quick responses",
					MaxTokens:         200000,
					SupportsFunctions: true,
				},
				{
					ID:                "claude-3-opus-20240229",
					Name:              "Claude 3 Opus",
					Description:       "Most powerful model for complex tasks",
					MaxTokens:         200000,
					SupportsFunctions: true,
				},
			},
		},
		{
			ID:          "openai",
			Name:        "OpenAI",
			Description: "GPT models for natural language processing",
			IsEnabled:   true,
			Models: []Model{
				{
					ID:                "gpt-4o",
					Name:              "GPT-4o",
					Description:       "Latest multimodal flagship model",
					MaxTokens:         128000,
					SupportsFunctions: true,
				},
				{
					ID:                "gpt-4o-mini",
					Name:              "GPT-4o Mini",
					Description:       "Affordable and intelligent small model",
					MaxTokens:         128000,
					SupportsFunctions: true,
				},
				{
					ID:                "gpt-4-turbo",
					Name:              "GPT-4 Turbo",
					Description:       "High-performance model with vision capabilities",
					MaxTokens:         128000,
					SupportsFunctions: true,
				},
			},
		},
		{
			ID:          "google",
			Name:        "Google",
			Description: "Gemini models for multimodal AI tasks",
			IsEnabled:   true,
			Models: []Model{
				{
					ID:                "gemini-1.5-pro",
					Name:              "Gemini 1.5 Pro",
					Description:       "Advanced reasoning and code generation",
					MaxTokens:         2097152,
					SupportsFunctions: true,
				},
				{
					ID:                "gemini-1.5-flash",
					Name:              "Gemini 1.5 Flash",
					Description:       "Fast and efficient model",
					MaxTokens:         1048576,
					SupportsFunctions: true,
				},
			},
		},
		{
			ID:          "ibm",
			Name:        "IBM",
			Description: "Granite models for enterprise applications",
			// Requires special setup, so shipped disabled.
			IsEnabled:         false,
			SupportsStreaming: true,
			Models: []Model{
				{
					ID:          "granite-3.0-8b-instruct",
					Name:        "Granite 3.0 8B Instruct",
					Description: "Enterprise-focused instruction-following model",
					MaxTokens:   4096,
				},
				{
					ID:          "granite-3.0-2b-instruct",
					Name:        "Granite 3.0 2B Instruct",
					Description: "Lightweight enterprise model",
					MaxTokens:   4096,
				},
			},
		},
	}
}

// BuiltinDefaultSelection is the selection shipped with the built-in catalog.
func BuiltinDefaultSelection() Selection {
	return Selection{
		ProviderID: "anthropic",
		ModelID:    "claude-3-5-sonnet-20241022",
	}
}
