package model

// Response is the envelope every API endpoint responds with.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token string    `json:"token"`
	Admin AdminInfo `json:"admin"`
}
