// Package saga 实现带补偿的多步事务编排
//
// 核心思想：
// 1. 把一个无法用单条ACID事务覆盖的长操作拆成多个本地短步骤
// 2. 每个步骤配对一个补偿操作
// 3. 某步失败时，按逆序执行已完成步骤的补偿，回到起始状态
//
// 本仓库的使用场景：批量补货跨多条库存行（每行是独立的聚合与
// 乐观锁单元），第N行失败时撤销前N-1行已补的数量。
//
// 幂等性要求：Action和Compensate都必须支持幂等（允许重试）
package saga

import (
	"context"
	"fmt"
	"time"
)

// Step 表示Saga中的一个步骤
type Step struct {
	Name       string                          // 步骤名称（用于日志和错误信息）
	Action     func(ctx context.Context) error // 正向操作
	Compensate func(ctx context.Context) error // 补偿操作
}

// Saga 表示一次多步事务
type Saga struct {
	steps    []Step
	executed []Step // 已执行的步骤（用于补偿）
	timeout  time.Duration

	// OnCompensateError 补偿失败回调（记录日志/告警），可为nil
	OnCompensateError func(stepName string, err error)
}

// NewSaga 创建Saga事务
//
// 示例：
//
//	s := saga.NewSaga(30 * time.Second)
//	s.AddStep("补货SKU12345", replenishLine, withdrawLine)
//	s.AddStep("补货SKU67890", replenishLine2, withdrawLine2)
//	err := s.Execute(ctx)
func NewSaga(timeout time.Duration) *Saga {
	return &Saga{
		steps:   make([]Step, 0),
		timeout: timeout,
	}
}

// AddStep 添加一个步骤
// 步骤按添加顺序执行，按逆序补偿。
// 补偿操作必须只依赖本步骤Action的结果，不能依赖后续步骤
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, Step{
		Name:       name,
		Action:     action,
		Compensate: compensate,
	})
}

// Execute 执行所有步骤
// 某步失败或整体超时时触发补偿流程，并返回失败原因。
// 补偿使用新的Context执行，避免补偿本身也被同一个超时打断
func (s *Saga) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		select {
		case <-ctx.Done():
			s.compensate(context.Background())
			return fmt.Errorf("saga超时: %w", ctx.Err())
		default:
		}

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				s.compensate(context.Background())
				return fmt.Errorf("步骤[%d:%s]执行失败: %w", i, step.Name, err)
			}
		}

		s.executed = append(s.executed, step)
	}

	return nil
}

// compensate 逆序执行已完成步骤的补偿
// 即使某个补偿失败也继续执行后续补偿（尽最大努力），
// 失败通过OnCompensateError上报，由调用方决定告警或人工介入
func (s *Saga) compensate(ctx context.Context) {
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]

		if step.Compensate != nil {
			if err := step.Compensate(ctx); err != nil {
				if s.OnCompensateError != nil {
					s.OnCompensateError(step.Name, err)
				}
			}
		}
	}

	s.executed = nil
}
