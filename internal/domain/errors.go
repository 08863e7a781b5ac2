package domain

import "errors"

// Отказы — значения: вызывающая сторона ветвится по errors.Is,
// квотные отказы дополнительно несут QuotaDecision
var (
	ErrNotFound           = errors.New("record not found")
	ErrExpired            = errors.New("record expired")
	ErrUnauthorized       = errors.New("operation not permitted")
	ErrCodeTaken          = errors.New("access code already taken")
	ErrCodeSpaceExhausted = errors.New("access code space exhausted")
	ErrBlobMissing        = errors.New("blob missing for live record")
)
