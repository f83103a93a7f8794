package api

import "github.com/civitas-labs/dispatch-api/store"

var (
	errorMessageMap = map[int64]string{
		999:  "internal server error",
		1000: "invalid signature",
		1001: "invalid authorization format",
		1002: "difference between the request time and the current time is too large",
		1003: "invalid token",

		1007: "this action is not permitted for your role",

		1010: "invalid parameters",
		1011: "cannot parse request",
		1012: "invalid mobile number",
		1013: "unknown user role",
		1014: "invalid location",

		1100: "this principal has been registered",
		1101: store.ErrAccountNotFound.Error(),

		1200: store.ErrRequestNotFound.Error(),
		1201: store.ErrRequestNotPending.Error(),
		1202: store.ErrRequestNotAccepted.Error(),
	}

	errorInternalServer             = errorJSON(999)
	errorInvalidSignature           = errorJSON(1000)
	errorInvalidAuthorizationFormat = errorJSON(1001)
	errorRequestTimeTooSkewed       = errorJSON(1002)
	errorInvalidToken               = errorJSON(1003)

	errorNotPermitted = errorJSON(1007)

	errorInvalidParameters  = errorJSON(1010)
	errorCannotParseRequest = errorJSON(1011)
	errorInvalidMobile      = errorJSON(1012)
	errorUnknownRole        = errorJSON(1013)
	errorInvalidLocation    = errorJSON(1014)

	errorAccountTaken    = errorJSON(1100)
	errorAccountNotFound = errorJSON(1101)

	errorRequestNotFound    = errorJSON(1200)
	errorRequestNotPending  = errorJSON(1201)
	errorRequestNotAccepted = errorJSON(1202)
)

type ErrorResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// errorJSON converts an error code to a standardized error object
func errorJSON(code int64) ErrorResponse {
	var message string
	if msg, ok := errorMessageMap[code]; ok {
		message = msg
	} else {
		message = "unknown"
	}

	return ErrorResponse{
		Code:    code,
		Message: message,
	}
}
