package apierror

// Error type URIs following the urn:datapeek:error:* pattern.
// These are used as the "type" field in RFC 9457 Problem Details.
const (
	// TypeValidation indicates request validation failed (400)
	TypeValidation = "urn:datapeek:error:validation"

	// TypeNotFound indicates the requested resource was not found (404)
	TypeNotFound = "urn:datapeek:error:not_found"

	// TypeNotReady indicates the dataset's analysis has not finished (409)
	TypeNotReady = "urn:datapeek:error:not_ready"

	// TypeAnalysisFailed indicates the dataset could not be analyzed (422)
	TypeAnalysisFailed = "urn:datapeek:error:analysis_failed"

	// TypeBadRequest indicates a malformed or invalid request (400)
	TypeBadRequest = "urn:datapeek:error:bad_request"

	// TypePayloadTooLarge indicates the uploaded file exceeds the size limit (413)
	TypePayloadTooLarge = "urn:datapeek:error:payload_too_large"

	// TypeInternal indicates an unexpected server error (500)
	TypeInternal = "urn:datapeek:error:internal"
)

// Titles for each error type - human-readable summaries
const (
	TitleValidation      = "Validation Error"
	TitleNotFound        = "Resource Not Found"
	TitleNotReady        = "Dataset Not Ready"
	TitleAnalysisFailed  = "Analysis Failed"
	TitleBadRequest      = "Bad Request"
	TitlePayloadTooLarge = "Payload Too Large"
	TitleInternal        = "Internal Server Error"
)
