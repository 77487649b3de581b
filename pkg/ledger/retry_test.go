package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPolicy 返回一个不真正睡眠的策略，并记录退避序列
func testPolicy(slept *[]time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = func(d time.Duration) {
		*slept = append(*slept, d)
	}
	return p
}

func TestRetryPolicy_RecoverableThenSuccess(t *testing.T) {
	// 前两次提交因可恢复错误失败，第三次成功 -> 整体成功 (边界刚好 3 次)
	var slept []time.Duration
	p := testPolicy(&slept)

	attempts := 0
	err := p.Run(context.Background(), "add_objects", func(ctx context.Context) (SubmitResult, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("rpc error: nonce too low")
		}
		return SubmitConfirmed, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// 退避: 500ms, 1000ms (只在重试前睡，第一次不睡)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}, slept)
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	attempts := 0
	err := p.Run(context.Background(), "add_refs", func(ctx context.Context) (SubmitResult, error) {
		attempts++
		return 0, errors.New("replacement transaction underpriced")
	})

	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_NonRecoverableAbortsImmediately(t *testing.T) {
	// 不可恢复错误不应烧掉剩余尝试次数
	var slept []time.Duration
	p := testPolicy(&slept)

	attempts := 0
	err := p.Run(context.Background(), "add_objects", func(ctx context.Context) (SubmitResult, error) {
		attempts++
		return 0, errors.New("execution reverted: AccessControl")
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, slept)
}

func TestRetryPolicy_RevertedReceiptRetries(t *testing.T) {
	// 提交成功但回执报失败 -> 继续重试
	var slept []time.Duration
	p := testPolicy(&slept)

	attempts := 0
	err := p.Run(context.Background(), "add_refs", func(ctx context.Context) (SubmitResult, error) {
		attempts++
		if attempts < 2 {
			return SubmitReverted, nil
		}
		return SubmitConfirmed, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicy_PendingReceiptIsOptimisticSuccess(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	err := p.Run(context.Background(), "add_objects", func(ctx context.Context) (SubmitResult, error) {
		return SubmitPending, nil
	})

	require.NoError(t, err)
	assert.Empty(t, slept)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, "add_refs", func(ctx context.Context) (SubmitResult, error) {
		t.Fatal("submit should not run after cancellation")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
