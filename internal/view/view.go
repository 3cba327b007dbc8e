package view

// Response is the envelope every API endpoint answers with.
type Response[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Request any    `json:"request,omitempty"`
}

type MessageResponse struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateResponse builds the envelope. The request is echoed back only on errors.
func CreateResponse[T any](data T, err error, req any, message string) Response[T] {
	res := Response[T]{
		Data:    data,
		Message: message,
	}
	if err != nil {
		res.Error = err.Error()
		res.Request = req
	}
	return res
}
