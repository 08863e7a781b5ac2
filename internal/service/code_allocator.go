package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"codeferry/internal/domain"
)

const (
	// codeSpace — мощность пространства кодов "000000"-"999999"
	codeSpace = 1000000

	defaultMaxAttempts = 20
)

// RandSource абстрагирует источник случайности, чтобы выдача кодов была
// детерминирована в тестах
type RandSource interface {
	Intn(n int) int
}

type systemRand struct{}

func (systemRand) Intn(n int) int { return rand.Intn(n) }

// SystemRand возвращает потокобезопасный источник на глобальном генераторе
func SystemRand() RandSource { return systemRand{} }

// ReserveFunc резервирует код; возвращает domain.ErrCodeTaken, если код
// уже занят живой записью
type ReserveFunc func(ctx context.Context, code string) error

// CodeAllocator выдает шестизначные коды доступа с ведущими нулями.
// Коллизии редки (пространство в миллион кодов), но цикл ограничен:
// после maxAttempts занятых кодов возвращается ErrCodeSpaceExhausted,
// и вызывающая сторона отдает ошибку "повторите позже"
type CodeAllocator struct {
	rand        RandSource
	maxAttempts int
}

func NewCodeAllocator(rand RandSource, maxAttempts int) *CodeAllocator {
	if rand == nil {
		rand = SystemRand()
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &CodeAllocator{
		rand:        rand,
		maxAttempts: maxAttempts,
	}
}

// Allocate подбирает свободный код. Проверка занятости и резервирование —
// одна атомарная операция reserve, поэтому два конкурентных вызова не
// получат один код
func (a *CodeAllocator) Allocate(ctx context.Context, reserve ReserveFunc) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code := fmt.Sprintf("%06d", a.rand.Intn(codeSpace))

		err := reserve(ctx, code)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		return "", err
	}

	return "", domain.ErrCodeSpaceExhausted
}
