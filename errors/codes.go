package errors

// ErrorCode identifies an error category in API responses.
type ErrorCode int32

const (
	ErrorCode_UNKNOWN          ErrorCode = 0
	ErrorCode_INTERNAL         ErrorCode = 1
	ErrorCode_INVALID_ARGUMENT ErrorCode = 2
	ErrorCode_NOT_FOUND        ErrorCode = 3
	ErrorCode_UNAVAILABLE      ErrorCode = 4
	ErrorCode_UNAUTHENTICATED  ErrorCode = 5
	ErrorCode_HTTP_OK          ErrorCode = 200

	// Sessions
	ErrorCode_SESSION_NOT_FOUND ErrorCode = 1100

	// Integrations
	ErrorCode_INTEGRATION_STORAGE_FAILED ErrorCode = 1202

	// Database
	ErrorCode_DB_QUERY_FAILED ErrorCode = 1301
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_UNKNOWN:                    "UNKNOWN",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_UNAVAILABLE:                "UNAVAILABLE",
	ErrorCode_UNAUTHENTICATED:            "UNAUTHENTICATED",
	ErrorCode_HTTP_OK:                    "OK",
	ErrorCode_SESSION_NOT_FOUND:          "SESSION_NOT_FOUND",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
	ErrorCode_DB_QUERY_FAILED:            "DB_QUERY_FAILED",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return errorCodeNames[ErrorCode_UNKNOWN]
}
