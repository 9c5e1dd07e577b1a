package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnknownTier            = errors.New("unknown tier")
	ErrDurationExceedsTier    = errors.New("duration exceeds tier limit")
	ErrProviderNotAllowed     = errors.New("provider not allowed for tier")
	ErrQuotaExhausted         = errors.New("monthly quota exhausted")
	ErrNoEligibleProvider     = errors.New("no eligible provider")
	ErrUnsupportedCombination = errors.New("unsupported mode and model combination")
)
