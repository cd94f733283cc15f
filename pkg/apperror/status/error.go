package status

// ErrorCode is a numeric code to classify API errors in a stable way
type ErrorCode int

// Reserved ranges by domain:
//   0-999:     client/validation errors
//   1000-1999: Documents
//   2000-2999: Search / RAG

const (
	BadRequestBase    ErrorCode = 0
	InternalErrorBase ErrorCode = 1000
	SearchErrorBase   ErrorCode = 2000
)

// Client/validation errors start at 0
const (
	InvalidRequestBody ErrorCode = BadRequestBase + iota // 0
	MissingParams                                        // 1
	UnsupportedFile                                      // 2
	NotFound                                             // 3
)

// Document internal errors start at 1000
const (
	DocumentInternal      ErrorCode = InternalErrorBase + iota // 1000
	DocumentStoreFailed                                        // 1001
	DocumentIngestFailed                                       // 1002
	DocumentDeleteFailed                                       // 1003
)

// Search/RAG internal errors start at 2000
const (
	SearchInternal     ErrorCode = SearchErrorBase + iota // 2000
	SearchIndexFailed                                     // 2001
	AnswerFailed                                          // 2002
)

// CodedError represents an error with an associated ErrorCode
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

type codedError struct {
	code ErrorCode
	err  error
}

func (e codedError) Error() string        { return e.err.Error() }
func (e codedError) Unwrap() error        { return e.err }
func (e codedError) ErrorCode() ErrorCode { return e.code }

// New creates a new CodedError with the given code and underlying error
func New(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return codedError{code: code, err: err}
}
