package casequery

import "github.com/kailas-cloud/casequery/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEngine                  = domain.ErrEngine
	ErrDecode                  = domain.ErrDecode
	ErrGenerationQuotaExceeded = domain.ErrGenerationQuotaExceeded
	ErrGeneratorProviderError  = domain.ErrGeneratorProviderError
	ErrIndexNotSupported       = errIndexNotSupported
)
