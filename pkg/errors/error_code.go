package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidVersion       ErrorCode = 110
	ErrCodeInvalidPeriod        ErrorCode = 111
	ErrCodeInvalidIdentifier    ErrorCode = 112

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoDataFound           ErrorCode = 204
	ErrCodeLoadFailed            ErrorCode = 205

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 704

	// Sync errors (800-899)
	ErrCodePlanningFailed    ErrorCode = 800
	ErrCodeEntityListFailed  ErrorCode = 801
	ErrCodeRunCancelled      ErrorCode = 802
	ErrCodeIllegalTransition ErrorCode = 803

	// Artifact errors (900-999)
	ErrCodeArtifactWriteFailed  ErrorCode = 900
	ErrCodeArtifactEncodeFailed ErrorCode = 901
	ErrCodeStagingFailed        ErrorCode = 902
	ErrCodeArtifactNotFound     ErrorCode = 903
	ErrCodeArtifactInvalid      ErrorCode = 904
	ErrCodeVersionMismatch      ErrorCode = 905
)
