package types

// Envelope is the JSON shape of every /local and /providers response.
type Envelope struct {
	// Whether the operation succeeded.
	// example: true
	Success bool `json:"success" example:"true"`
	// Operation payload on success.
	Data any `json:"data,omitempty"`
	// Error message on failure.
	// example: model not installed: mistral-medical
	Error string `json:"error,omitempty" example:"model not installed: mistral-medical"`
	// Stable error code so clients can pick a remediation.
	// example: model_not_installed
	Code string `json:"code,omitempty" example:"model_not_installed"`
}

// InstallRequest is the body of POST /local/install.
type InstallRequest struct {
	// Catalog name of the model to install.
	// example: mistral-medical
	ModelName string `json:"modelName" example:"mistral-medical"`
}

// ProcessRequest is the body of POST /local/process.
type ProcessRequest struct {
	// Installed model to run.
	// example: mistral-medical
	ModelName string `json:"modelName" example:"mistral-medical"`
	// Prompt text.
	// example: Summarize: BP 150/95, HR 88
	Prompt string `json:"prompt" example:"Summarize: BP 150/95, HR 88"`
	// text (default) or vision.
	// example: text
	Type string `json:"type,omitempty" example:"text"`
	// Base64 image or data URL, required for vision.
	ImageData string `json:"imageData,omitempty"`
	// Optional sampling overrides.
	Options *ProcessOptions `json:"options,omitempty"`
}

// ProcessOptions override the model's sampling profile for one request.
type ProcessOptions struct {
	// example: 0.3
	Temperature *float64 `json:"temperature,omitempty" example:"0.3"`
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// example: 1.1
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Maximum tokens to generate.
	// example: 512
	MaxTokens *int `json:"max_tokens,omitempty" example:"512"`
}

// InstallStreamLine is one NDJSON line of a streamed install.
type InstallStreamLine struct {
	// progress, result or error.
	// example: progress
	Type string `json:"type" example:"progress"`
	// Progress notification for type=progress.
	Progress any `json:"progress,omitempty"`
	// Install result for type=result.
	Data any `json:"data,omitempty"`
	// Error message for type=error.
	Error string `json:"error,omitempty"`
	// Error code for type=error.
	Code string `json:"code,omitempty"`
}

// ErrorResponse is a consistent JSON error payload for non-enveloped routes.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
