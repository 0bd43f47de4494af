package responses

// Envelope is the body of every 2xx response: {"data": ...}.
type Envelope struct {
	Data any `json:"data"`
}

// Problem carries an error code from pkg/errors, the client-safe message and,
// for codes that allow it, structured details such as field errors or the
// offending sheet row.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error Problem `json:"error"`
}
