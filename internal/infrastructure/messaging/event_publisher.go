// Package messaging 领域事件发布（RabbitMQ）
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/retail-inventory/internal/domain/inventory"
	"github.com/xiebiao/retail-inventory/pkg/logger"
	"github.com/xiebiao/retail-inventory/pkg/metrics"
	"github.com/xiebiao/retail-inventory/pkg/mq"
)

// publishTimeout 单条消息发布的超时上限
const publishTimeout = 5 * time.Second

// EventPublisher 异步领域事件发布器
//
// 设计说明：
// 1. 至少一次投递：发布失败只记录日志与计数，绝不回滚已提交的
//    库存状态（事件是事实通知，不是事务参与者），下游按event_id去重
// 2. 顺序保证：所有事件经由单个发布goroutine串行发出，同一条库存线
//    （store_id+sku派生的路由键）的事件顺序与状态变更顺序一致
// 3. 异步交接：Publish把事件放入缓冲队列后立刻返回，不阻塞业务
//    响应路径；完成结果通过可选的OnResult回调上报
type EventPublisher struct {
	publisher *mq.Publisher
	queue     chan inventory.DomainEvent
	wg        sync.WaitGroup
	closeOnce sync.Once

	// OnResult 每条事件发布完成后的回调（err为nil表示成功），可为nil。
	// 在发布goroutine内调用，回调必须轻量
	OnResult func(event inventory.DomainEvent, err error)
}

// NewEventPublisher 创建事件发布器并启动发布goroutine
func NewEventPublisher(publisher *mq.Publisher, bufferSize int) *EventPublisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	p := &EventPublisher{
		publisher: publisher,
		queue:     make(chan inventory.DomainEvent, bufferSize),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Publish 把一批事件提交给发布器（按切片顺序入队）
// 队列满时退化为同步等待入队，保证不丢事件
func (p *EventPublisher) Publish(ctx context.Context, events []inventory.DomainEvent) {
	for _, event := range events {
		select {
		case p.queue <- event:
		case <-ctx.Done():
			// 调用方已放弃，剩余事件仍要入队（至少一次承诺），
			// 阻塞等待队列腾出空间
			p.queue <- event
		}
	}
}

// Close 关闭发布器，等待队列中剩余事件全部发出
func (p *EventPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// run 发布循环：单goroutine串行发布保证按键有序
func (p *EventPublisher) run() {
	defer p.wg.Done()

	for event := range p.queue {
		err := p.publishOne(event)

		result := "success"
		if err != nil {
			result = "failure"
			logger.L().Error("领域事件发布失败",
				zap.String("event_id", event.EventID.String()),
				zap.String("event_type", string(event.EventType)),
				zap.String("partition_key", event.PartitionKey()),
				zap.Error(err))
		}

		metrics.IncCounterVec(metrics.EventsPublishedTotal, map[string]string{
			"event_type": string(event.EventType),
			"result":     result,
		})

		if p.OnResult != nil {
			p.OnResult(event, err)
		}
	}
}

func (p *EventPublisher) publishOne(event inventory.DomainEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	start := time.Now()
	err := p.publisher.Publish(ctx, routingKey(event), event.EventID.String(), event)
	metrics.ObserveHistogram(metrics.EventPublishDuration, time.Since(start).Seconds())

	return err
}

// routingKey 事件路由键：stock.<store_id>.<sku>
// 由聚合身份派生，同一条库存线的事件走同一个路由键
func routingKey(event inventory.DomainEvent) string {
	return fmt.Sprintf("stock.%s.%s", event.StoreID.String(), event.ProductSku)
}
