package errors

import (
	"net/http"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeValidation         ErrorCode = "COMMON_005"
	ErrCodeSerialization      ErrorCode = "COMMON_006"
	ErrCodeDatabaseError      ErrorCode = "COMMON_007"
	ErrCodeCacheError         ErrorCode = "COMMON_008"
	ErrCodeExternalService    ErrorCode = "COMMON_009"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_010"
	ErrCodeTimeout            ErrorCode = "COMMON_011"
)

// Ingestion error codes
const (
	// ErrCodeMalformedMention marks a mention rejected at the ingestion
	// boundary (missing or empty raw name). Rejected mentions never enter
	// blocking but must appear in the rejection log.
	ErrCodeMalformedMention ErrorCode = "ING_001"

	// ErrCodeNormalizationDegraded marks a mention whose normalization fell
	// back to the minimal case-fold path (for example an unmapped script).
	// The mention proceeds with a confidence penalty; it is never dropped.
	ErrCodeNormalizationDegraded ErrorCode = "ING_002"

	ErrCodeIngestDecode ErrorCode = "ING_003"
)

// Resolution error codes
const (
	// ErrCodeMergeConflict is produced when attaching a mention would
	// violate the complete-linkage invariant. The engine never forces such
	// a merge; the mention is left conflicted and a mismatch report is filed.
	ErrCodeMergeConflict ErrorCode = "RES_001"

	ErrCodeEntityNotFound  ErrorCode = "RES_002"
	ErrCodeMentionNotFound ErrorCode = "RES_003"

	// ErrCodeRegistryCorrupted is the single fatal condition: the persisted
	// registry violated a structural invariant on load (for example a
	// duplicate entity ID). Processing halts until the store is repaired.
	ErrCodeRegistryCorrupted ErrorCode = "RES_004"

	ErrCodeCheckpointError ErrorCode = "RES_005"
)

// Provenance error codes
const (
	// ErrCodeInsufficientEvidence is returned by provenance-pack assembly
	// when fewer than the required number of distinct sources carry active
	// evidence for the entity. Recoverable: callers wait for more sources.
	ErrCodeInsufficientEvidence ErrorCode = "PRV_001"

	// ErrCodeTimelineInconsistency marks two timeline events for the same
	// entity that disagree beyond the configured window. Both events are
	// retained; the conflict is surfaced as a mismatch report.
	ErrCodeTimelineInconsistency ErrorCode = "PRV_002"

	ErrCodePackArchiveFailed ErrorCode = "PRV_003"
)

// Metrics error codes
const (
	// ErrCodeUnlabeledSample is returned when precision/recall computation
	// is requested without a labeled validation sample. The metrics module
	// refuses to fabricate these numbers from unlabeled data.
	ErrCodeUnlabeledSample ErrorCode = "MET_001"
)

// Short aliases used at call sites throughout the codebase.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")

	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the read API.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,

	ErrCodeMalformedMention:      http.StatusUnprocessableEntity,
	ErrCodeNormalizationDegraded: http.StatusUnprocessableEntity,
	ErrCodeIngestDecode:          http.StatusBadRequest,

	ErrCodeMergeConflict:     http.StatusConflict,
	ErrCodeEntityNotFound:    http.StatusNotFound,
	ErrCodeMentionNotFound:   http.StatusNotFound,
	ErrCodeRegistryCorrupted: http.StatusInternalServerError,
	ErrCodeCheckpointError:   http.StatusInternalServerError,

	ErrCodeInsufficientEvidence:  http.StatusPreconditionFailed,
	ErrCodeTimelineInconsistency: http.StatusConflict,
	ErrCodePackArchiveFailed:     http.StatusInternalServerError,

	ErrCodeUnlabeledSample: http.StatusPreconditionFailed,
}

// HTTPStatus returns the HTTP status code for c, defaulting to 500 for
// unmapped codes.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
