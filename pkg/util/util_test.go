package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateTpl(t *testing.T) {
	ts := time.Date(2023, 11, 10, 7, 5, 9, 0, time.UTC)

	assert.Equal(t, "2023.11.10", FormatDateTpl(ts, "YYYY.MM.DD"))
	assert.Equal(t, "10/11/23", FormatDateTpl(ts, "DD/MM/YY"))
	assert.Equal(t, "2023-11-10 07:05:09", FormatDateTpl(ts, "YYYY-MM-DD hh:mm:ss"))
	assert.Equal(t, "", FormatDateTpl(time.Time{}, "YYYY"))
}

func TestParallelRunsEveryInput(t *testing.T) {
	var sum atomic.Int64

	err := Parallel(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})

	assert.NoError(t, err)
	assert.EqualValues(t, 15, sum.Load())
}

func TestParallelReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")

	err := Parallel(context.Background(), []string{"a", "b", "c"}, 0, func(_ context.Context, s string) error {
		if s == "b" {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, Parallel[int](context.Background(), nil, 4, nil))
}
