// pkg/ledger/retry.go
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy 控制账本写入的重试行为。
// 可恢复错误的判定以谓词列表的形式注入，这样重试策略不依赖
// 某个具体传输库的错误文案。
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Recoverable []func(error) bool
	// Sleep 可注入，测试时替换掉真实的 time.Sleep
	Sleep func(time.Duration)
}

// DefaultRetryPolicy: 3 次尝试，500ms * 2^(attempt-1) 退避。
// 谓词对应以太坊节点在交易排队竞争时的三种典型报错。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		Recoverable: []func(error) bool{
			errContains("nonce too low"),
			errContains("gas price too low"),
			errContains("replacement transaction underpriced"),
		},
	}
}

func errContains(substr string) func(error) bool {
	return func(err error) bool {
		return err != nil && strings.Contains(err.Error(), substr)
	}
}

// IsRecoverable 判断一次提交失败是否值得重试
func (p RetryPolicy) IsRecoverable(err error) bool {
	for _, pred := range p.Recoverable {
		if pred(err) {
			return true
		}
	}
	return false
}

// SubmitResult 是一次提交 + 回执轮询的结论
type SubmitResult int

const (
	// SubmitConfirmed: 回执确认成功
	SubmitConfirmed SubmitResult = iota
	// SubmitPending: 回执还没出来，乐观地视为成功
	SubmitPending
	// SubmitReverted: 回执判定交易失败，进入下一次尝试
	SubmitReverted
)

// Run 执行带退避的写入循环。submit 负责发交易并轮询一次回执。
//   - 提交成功且回执为 Confirmed/Pending: 立刻返回 nil
//   - 回执为 Reverted: 落入下一次尝试
//   - 提交失败且错误可恢复: 落入下一次尝试
//   - 提交失败且不可恢复: 立刻终止 (不再烧掉剩余尝试次数)
//   - 尝试耗尽: ErrWriteFailed
func (p RetryPolicy) Run(ctx context.Context, op string, submit func(ctx context.Context) (SubmitResult, error)) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := p.BaseBackoff * (1 << (attempt - 2))
			sleep(backoff)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := submit(ctx)
		if err == nil {
			switch result {
			case SubmitConfirmed, SubmitPending:
				return nil
			case SubmitReverted:
				lastErr = fmt.Errorf("%s: transaction reverted", op)
				continue
			}
		}

		lastErr = err
		if !p.IsRecoverable(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %v", ErrWriteFailed, op, p.MaxAttempts, lastErr)
}
