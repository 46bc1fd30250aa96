package inbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/monitoring"
)

// MessageSource 是同步器需要的提供商能力子集。
type MessageSource interface {
	ListMessages(ctx context.Context, mb *domain.Mailbox) ([]domain.MessageSummary, error)
	GetMessage(ctx context.Context, mb *domain.Mailbox, id string) (*domain.MessageDetail, error)
	DeleteMessage(ctx context.Context, mb *domain.Mailbox, id string) error
}

// Event 是同步器对外广播的状态变化。
type Event struct {
	Type      string                  `json:"type"`
	MailboxID string                  `json:"mailboxId,omitempty"`
	Address   string                  `json:"address,omitempty"`
	Messages  []domain.MessageSummary `json:"messages,omitempty"`
}

const (
	EventInboxUpdate     = "inbox_update"
	EventMailboxSwitched = "mailbox_switched"
)

// Synchronizer 按固定周期轮询当前激活邮箱的收件箱。
//
// 纪元计数器在每次切换邮箱时递增，轮询结果落地前校验纪元，
// 切换前发出的请求即使晚到也不会污染新邮箱的列表。
// 选择令牌同理守护详情拉取，见 detail.go。
type Synchronizer struct {
	source   MessageSource
	metrics  *monitoring.Metrics
	log      *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	epoch    uint64
	active   *domain.Mailbox
	messages []domain.MessageSummary
	loading  bool

	selectionToken uint64
	selectedID     string
	detail         *domain.MessageDetail
	detailLoading  bool

	listeners []func(Event)
	wake      chan struct{}
}

func New(source MessageSource, interval time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *Synchronizer {
	return &Synchronizer{
		source:   source,
		metrics:  metrics,
		log:      log,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// OnEvent 注册状态变化回调，必须在 Run 之前调用。
func (s *Synchronizer) OnEvent(fn func(Event)) {
	s.listeners = append(s.listeners, fn)
}

// Run 驱动轮询循环直到 ctx 结束。启动后立即轮询一次，之后按周期轮询；
// 切换邮箱会通过 wake 通道触发一次即时轮询。
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("收件箱同步器已停止")
			return nil
		case <-ticker.C:
			s.pollOnce(ctx)
		case <-s.wake:
			s.pollOnce(ctx)
		}
	}
}

// SetActive 切换同步目标。清空消息列表和当前选择并使在途请求全部失效，
// mb 为 nil 表示暂停同步。
func (s *Synchronizer) SetActive(mb *domain.Mailbox) {
	s.mu.Lock()
	s.epoch++
	s.selectionToken++
	s.active = mb
	s.messages = nil
	s.loading = false
	s.selectedID = ""
	s.detail = nil
	s.detailLoading = false
	s.mu.Unlock()

	if mb != nil {
		s.emit(Event{Type: EventMailboxSwitched, MailboxID: mb.ID, Address: mb.Address})
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Messages 返回当前消息列表。返回的是内部切片本身，新轮询若与上次
// 结果一致会保留同一个切片对象，调用方不得修改。
func (s *Synchronizer) Messages() []domain.MessageSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages
}

// Loading 仅在列表为空且首轮拉取未完成时为真，周期刷新不置位。
func (s *Synchronizer) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Delete 本地立即移除消息并异步通知提供商删除。远端删除失败只记日志，
// 本地状态不回滚。
func (s *Synchronizer) Delete(id string) {
	s.mu.Lock()
	mb := s.active
	removed := false
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
			removed = true
			break
		}
	}
	if s.selectedID == id {
		s.selectionToken++
		s.selectedID = ""
		s.detail = nil
		s.detailLoading = false
	}
	messages := s.messages
	s.mu.Unlock()

	if !removed || mb == nil {
		return
	}
	s.emit(Event{Type: EventInboxUpdate, MailboxID: mb.ID, Messages: messages})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.source.DeleteMessage(ctx, mb, id); err != nil {
			s.log.Warn("远端删除消息失败",
				zap.String("messageId", id),
				zap.Error(err))
		}
	}()
}

// DeleteAll 清空当前邮箱的所有消息，语义同 Delete。
func (s *Synchronizer) DeleteAll() {
	s.mu.Lock()
	mb := s.active
	pending := s.messages
	s.messages = nil
	s.selectionToken++
	s.selectedID = ""
	s.detail = nil
	s.detailLoading = false
	s.mu.Unlock()

	if mb == nil || len(pending) == 0 {
		return
	}
	s.emit(Event{Type: EventInboxUpdate, MailboxID: mb.ID, Messages: nil})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, m := range pending {
			if err := s.source.DeleteMessage(ctx, mb, m.ID); err != nil {
				s.log.Warn("远端删除消息失败",
					zap.String("messageId", m.ID),
					zap.Error(err))
			}
		}
	}()
}

// Poll 立即触发一次轮询，测试和手动刷新入口使用。
func (s *Synchronizer) Poll(ctx context.Context) {
	s.pollOnce(ctx)
}

func (s *Synchronizer) pollOnce(ctx context.Context) {
	s.mu.Lock()
	mb := s.active
	epoch := s.epoch
	if mb == nil {
		s.mu.Unlock()
		return
	}
	if len(s.messages) == 0 {
		s.loading = true
	}
	s.mu.Unlock()

	fetched, err := s.source.ListMessages(ctx, mb)

	s.mu.Lock()
	if s.epoch != epoch {
		// 轮询期间邮箱已切换，结果作废
		s.mu.Unlock()
		s.metrics.RecordPollCycle("stale")
		s.metrics.RecordStaleResult("poll")
		return
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordPollCycle("error")
		s.log.Warn("拉取收件箱失败",
			zap.String("mailboxId", mb.ID),
			zap.Error(err))
		return
	}

	// 长度和头部 id 都没变视为同一份列表，保留原切片避免消费端抖动
	if len(s.messages) == len(fetched) &&
		len(fetched) > 0 && s.messages[0].ID == fetched[0].ID {
		s.mu.Unlock()
		s.metrics.RecordPollCycle("unchanged")
		return
	}
	if len(s.messages) == 0 && len(fetched) == 0 {
		s.mu.Unlock()
		s.metrics.RecordPollCycle("unchanged")
		return
	}
	s.messages = fetched
	messages := s.messages
	s.mu.Unlock()

	s.metrics.RecordPollCycle("updated")
	s.emit(Event{Type: EventInboxUpdate, MailboxID: mb.ID, Messages: messages})
}

func (s *Synchronizer) emit(event Event) {
	for _, fn := range s.listeners {
		fn(event)
	}
}
