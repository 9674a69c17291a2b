package domain

// Wire types for the HTTP surface shared by the server and the remote client.

type AnalyzeRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
}

type AnalyzeResponse struct {
	Success  bool            `json:"success"`
	Analysis *EnrichedPrompt `json:"analysis"`
}

type GenerateRequest struct {
	EnhancedPrompt string `json:"enhancedPrompt"`
	OutputType     string `json:"outputType,omitempty"`
}

type GenerateResponse struct {
	Success    bool       `json:"success"`
	OutputType OutputKind `json:"outputType"`
	ResultURL  string     `json:"resultUrl"`
	Model      string     `json:"model"`
	CreditCost int        `json:"creditCost"`
}

type RunRequest struct {
	Prompt     string `json:"prompt"`
	Mode       string `json:"mode"`
	OutputType string `json:"outputType,omitempty"`
}

type RunResponse struct {
	Success bool              `json:"success"`
	Result  *GenerationResult `json:"result"`
	Credits int               `json:"credits"`
}

type AdminRequest struct {
	Password string `json:"password"`
}

// ErrorResponse is the body of every non-2xx answer. Kind lets remote callers
// rebuild the typed error.
type ErrorResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
	RateLimit  bool      `json:"rateLimit,omitempty"`
	RetryAfter int       `json:"retryAfter,omitempty"`
}
