package types

// SuccessEnvelope is the body of every 2xx response.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error shape. Message carries the public
// message for the error's code; Details only appears for codes that allow
// structured detail.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps APIError for non-2xx responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
