package gateway

import "fmt"

// GatewayError carries the gateway's own error body. It is logged server-side
// and never serialized to end users.
type GatewayError struct {
	Result     int
	Message    string
	StatusCode int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (http %d, result %d): %s", e.StatusCode, e.Result, e.Message)
}

type gatewayErrorResponse struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
}
