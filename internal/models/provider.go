package models

// ModelInfo describes one model exposed by the chat provider.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContextLength int    `json:"context_length"`
}

// ProvidersConfig is the providers.json shape: the chat provider endpoint,
// its model catalog, and which models the pipeline defaults to.
type ProvidersConfig struct {
	BaseURL        string      `json:"base_url"`
	APIKeyEnv      string      `json:"api_key_env"`
	DefaultModel   string      `json:"default_model"`
	ExtractorModel string      `json:"extractor_model"`
	Models         []ModelInfo `json:"models"`
}
