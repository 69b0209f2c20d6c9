// Package types holds the JSON envelopes shared by the HTTP surface.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Ack is the webhook acknowledgement body.
type Ack struct {
	OK bool `json:"ok"`
}
