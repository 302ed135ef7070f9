package dto

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// TransferFailureDetails tells the caller which reference to retry with and
// whether the saga already undid its writes.
type TransferFailureDetails struct {
	Reference   string `json:"reference"`
	Step        string `json:"step"`
	Compensated bool   `json:"compensated"`
	Cause       string `json:"cause,omitempty"`
}
