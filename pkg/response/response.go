package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	// ErrorKind is the machine-readable classification of the error
	// (validation, guard, conflict, not_found, external), set alongside
	// Error so clients can branch without matching message text.
	ErrorKind string `json:"error_kind,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorWithKind returns an error response carrying the classified kind.
func ErrorWithKind(statusCode int, err, kind string) Response {
	r := Error(statusCode, err)
	r.ErrorKind = kind
	return r
}
