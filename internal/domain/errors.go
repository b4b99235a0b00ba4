package domain

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductIncomplete    = errors.New("product record missing name or ingredients")
	ErrInvalidAPIKey        = errors.New("invalid API key")
	ErrGeneratorUnavailable = errors.New("no generation backend available")
	ErrCircuitBreakerOpen   = errors.New("circuit breaker open")
	ErrBudgetExceeded       = errors.New("daily generation budget exceeded")
)
