package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeferry/internal/domain"
)

func TestAllocateFormatsLeadingZeros(t *testing.T) {
	allocator := NewCodeAllocator(&stubRand{values: []int{7}}, 0)

	code, err := allocator.Allocate(context.Background(), func(ctx context.Context, code string) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "000007", code)
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	allocator := NewCodeAllocator(&stubRand{values: []int{111111, 111111, 222222}}, 0)

	taken := map[string]bool{"111111": true}
	var attempts []string

	code, err := allocator.Allocate(context.Background(), func(ctx context.Context, code string) error {
		attempts = append(attempts, code)
		if taken[code] {
			return domain.ErrCodeTaken
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "222222", code)
	assert.Equal(t, []string{"111111", "111111", "222222"}, attempts)
}

func TestAllocateExhaustsAttempts(t *testing.T) {
	allocator := NewCodeAllocator(&stubRand{}, 20)

	calls := 0
	_, err := allocator.Allocate(context.Background(), func(ctx context.Context, code string) error {
		calls++
		return domain.ErrCodeTaken
	})

	assert.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
	assert.Equal(t, 20, calls)
}

func TestAllocatePassesThroughOtherErrors(t *testing.T) {
	allocator := NewCodeAllocator(&stubRand{}, 0)

	_, err := allocator.Allocate(context.Background(), func(ctx context.Context, code string) error {
		return domain.ErrNotFound
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAllocateSystemRandProducesValidCodes(t *testing.T) {
	allocator := NewCodeAllocator(SystemRand(), 0)

	for i := 0; i < 50; i++ {
		code, err := allocator.Allocate(context.Background(), func(ctx context.Context, code string) error {
			return nil
		})
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}
