package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/monitoring"
)

// fakeSource 可控的假提供商，block 非空时 ListMessages/GetMessage 会阻塞等待放行。
type fakeSource struct {
	mu      sync.Mutex
	list    []domain.MessageSummary
	listErr error
	details map[string]*domain.MessageDetail
	deleted []string
	block   chan struct{}
}

func (f *fakeSource) setList(list []domain.MessageSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
}

func (f *fakeSource) ListMessages(ctx context.Context, mb *domain.Mailbox) ([]domain.MessageSummary, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.MessageSummary, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeSource) GetMessage(ctx context.Context, mb *domain.Mailbox, id string) (*domain.MessageDetail, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.details[id]
	if !ok {
		return nil, errors.New("message not found")
	}
	return detail, nil
}

func (f *fakeSource) DeleteMessage(ctx context.Context, mb *domain.Mailbox, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSource) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func summaries(ids ...string) []domain.MessageSummary {
	out := make([]domain.MessageSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.MessageSummary{ID: id, Subject: "subject " + id})
	}
	return out
}

func testMailbox(id string) *domain.Mailbox {
	return &domain.Mailbox{ID: id, Address: id + "@tempdomain.test", Token: "tok"}
}

func newTestSynchronizer(source *fakeSource) *Synchronizer {
	return New(source, time.Minute, monitoring.NewMetrics(), zap.NewNop())
}

func TestSynchronizer_Poll(t *testing.T) {
	ctx := context.Background()

	t.Run("列表不变时保留原切片对象", func(t *testing.T) {
		source := &fakeSource{list: summaries("m2", "m1")}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		s.Poll(ctx)
		first := s.Messages()
		require.Len(t, first, 2)

		s.Poll(ctx)
		second := s.Messages()

		// 长度与头部 id 均未变，必须是同一个切片
		assert.Same(t, &first[0], &second[0])
	})

	t.Run("头部出现新消息时采用新列表", func(t *testing.T) {
		source := &fakeSource{list: summaries("m1")}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		s.Poll(ctx)
		source.setList(summaries("m2", "m1"))
		s.Poll(ctx)

		messages := s.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "m2", messages[0].ID)
	})

	t.Run("拉取失败时保留原列表", func(t *testing.T) {
		source := &fakeSource{list: summaries("m1")}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		s.Poll(ctx)
		source.mu.Lock()
		source.listErr = errors.New("provider down")
		source.mu.Unlock()
		s.Poll(ctx)

		assert.Len(t, s.Messages(), 1)
		assert.False(t, s.Loading())
	})

	t.Run("切换邮箱后过期的轮询结果被丢弃", func(t *testing.T) {
		block := make(chan struct{})
		source := &fakeSource{list: summaries("old-1", "old-2"), block: block}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-old"))

		done := make(chan struct{})
		go func() {
			s.Poll(ctx)
			close(done)
		}()

		// 旧邮箱的拉取还挂着，切到新邮箱
		assert.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
		s.SetActive(testMailbox("mb-new"))
		source.mu.Lock()
		source.block = nil
		source.mu.Unlock()
		close(block)
		<-done

		// wake 触发的即时轮询尚未执行，列表必须是空而不是旧邮箱的消息
		assert.Empty(t, s.Messages())
	})

	t.Run("列表为空时首轮拉取置loading", func(t *testing.T) {
		block := make(chan struct{})
		source := &fakeSource{list: summaries("m1"), block: block}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		done := make(chan struct{})
		go func() {
			s.Poll(ctx)
			close(done)
		}()

		assert.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
		close(block)
		<-done
		assert.False(t, s.Loading())

		// 列表非空后周期刷新不再置位
		source.mu.Lock()
		source.block = nil
		source.mu.Unlock()
		s.Poll(ctx)
		assert.False(t, s.Loading())
	})

	t.Run("未设置激活邮箱时轮询是空操作", func(t *testing.T) {
		source := &fakeSource{list: summaries("m1")}
		s := newTestSynchronizer(source)

		s.Poll(ctx)

		assert.Empty(t, s.Messages())
	})
}

func TestSynchronizer_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("选中消息拉取详情并标记已读", func(t *testing.T) {
		source := &fakeSource{
			list: summaries("m1"),
			details: map[string]*domain.MessageDetail{
				"m1": {MessageSummary: domain.MessageSummary{ID: "m1"}, Text: "hello"},
			},
		}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))
		s.Poll(ctx)

		detail, err := s.Select(ctx, "m1")

		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, "hello", detail.Text)

		held, selectedID := s.Detail()
		assert.Equal(t, "m1", selectedID)
		assert.Equal(t, detail, held)
		assert.True(t, s.Messages()[0].Seen)
	})

	t.Run("清除选择后详情为空", func(t *testing.T) {
		source := &fakeSource{
			details: map[string]*domain.MessageDetail{
				"m1": {MessageSummary: domain.MessageSummary{ID: "m1"}},
			},
		}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		_, err := s.Select(ctx, "m1")
		require.NoError(t, err)
		_, err = s.Select(ctx, "")
		require.NoError(t, err)

		held, selectedID := s.Detail()
		assert.Nil(t, held)
		assert.Empty(t, selectedID)
	})

	t.Run("过期的详情结果不落地", func(t *testing.T) {
		block := make(chan struct{})
		source := &fakeSource{
			details: map[string]*domain.MessageDetail{
				"m1": {MessageSummary: domain.MessageSummary{ID: "m1"}, Text: "stale"},
			},
			block: block,
		}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		done := make(chan struct{})
		go func() {
			detail, err := s.Select(ctx, "m1")
			assert.NoError(t, err)
			assert.Nil(t, detail)
			close(done)
		}()

		// 拉取还挂着就清除选择，迟到的结果必须被丢弃
		assert.Eventually(t, s.DetailLoading, time.Second, 5*time.Millisecond)
		go func() { _, _ = s.Select(ctx, "") }()
		assert.Eventually(t, func() bool {
			_, id := s.Detail()
			return id == ""
		}, time.Second, 5*time.Millisecond)

		source.mu.Lock()
		source.block = nil
		source.mu.Unlock()
		close(block)
		<-done

		held, _ := s.Detail()
		assert.Nil(t, held)
	})

	t.Run("拉取失败时保留原详情", func(t *testing.T) {
		source := &fakeSource{
			details: map[string]*domain.MessageDetail{
				"m1": {MessageSummary: domain.MessageSummary{ID: "m1"}, Text: "kept"},
			},
		}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))

		_, err := s.Select(ctx, "m1")
		require.NoError(t, err)
		_, err = s.Select(ctx, "missing")
		require.Error(t, err)

		held, _ := s.Detail()
		require.NotNil(t, held)
		assert.Equal(t, "kept", held.Text)
	})

	t.Run("无激活邮箱时选择返回错误", func(t *testing.T) {
		s := newTestSynchronizer(&fakeSource{})

		_, err := s.Select(ctx, "m1")

		assert.ErrorIs(t, err, domain.ErrNoActiveMailbox)
	})
}

func TestSynchronizer_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("本地立即移除并异步通知远端", func(t *testing.T) {
		source := &fakeSource{
			list: summaries("m1", "m2"),
			details: map[string]*domain.MessageDetail{
				"m1": {MessageSummary: domain.MessageSummary{ID: "m1"}},
			},
		}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))
		s.Poll(ctx)
		_, err := s.Select(ctx, "m1")
		require.NoError(t, err)

		s.Delete("m1")

		// 本地状态即刻生效，不等远端结果
		messages := s.Messages()
		require.Len(t, messages, 1)
		assert.Equal(t, "m2", messages[0].ID)
		held, selectedID := s.Detail()
		assert.Nil(t, held)
		assert.Empty(t, selectedID)

		assert.Eventually(t, func() bool {
			return len(source.deletedIDs()) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"m1"}, source.deletedIDs())
	})

	t.Run("清空收件箱逐条通知远端", func(t *testing.T) {
		source := &fakeSource{list: summaries("m1", "m2", "m3")}
		s := newTestSynchronizer(source)
		s.SetActive(testMailbox("mb-1"))
		s.Poll(ctx)

		s.DeleteAll()

		assert.Empty(t, s.Messages())
		assert.Eventually(t, func() bool {
			return len(source.deletedIDs()) == 3
		}, time.Second, 5*time.Millisecond)
	})
}

func TestSynchronizer_Events(t *testing.T) {
	ctx := context.Background()

	source := &fakeSource{list: summaries("m1")}
	s := newTestSynchronizer(source)

	var mu sync.Mutex
	var events []Event
	s.OnEvent(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	s.SetActive(testMailbox("mb-1"))
	s.Poll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, EventMailboxSwitched, events[0].Type)
	assert.Equal(t, "mb-1", events[0].MailboxID)
	assert.Equal(t, EventInboxUpdate, events[1].Type)
	require.Len(t, events[1].Messages, 1)
}

func TestSynchronizer_Metrics(t *testing.T) {
	ctx := context.Background()

	t.Run("轮询结果按outcome计数", func(t *testing.T) {
		source := &fakeSource{list: summaries("m1")}
		m := monitoring.NewMetrics()
		s := New(source, time.Minute, m, zap.NewNop())
		s.SetActive(testMailbox("mb-1"))

		s.Poll(ctx)
		s.Poll(ctx)
		source.mu.Lock()
		source.listErr = errors.New("provider down")
		source.mu.Unlock()
		s.Poll(ctx)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCyclesTotal.WithLabelValues("updated")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCyclesTotal.WithLabelValues("unchanged")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCyclesTotal.WithLabelValues("error")))
	})

	t.Run("过期的轮询结果计入stale", func(t *testing.T) {
		block := make(chan struct{})
		source := &fakeSource{list: summaries("old-1"), block: block}
		m := monitoring.NewMetrics()
		s := New(source, time.Minute, m, zap.NewNop())
		s.SetActive(testMailbox("mb-old"))

		done := make(chan struct{})
		go func() {
			s.Poll(ctx)
			close(done)
		}()

		assert.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
		s.SetActive(testMailbox("mb-new"))
		source.mu.Lock()
		source.block = nil
		source.mu.Unlock()
		close(block)
		<-done

		assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCyclesTotal.WithLabelValues("stale")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResultsTotal.WithLabelValues("poll")))
	})

	t.Run("过期的详情结果计入stale", func(t *testing.T) {
		block := make(chan struct{})
		source := &fakeSource{
			details: map[string]*domain.MessageDetail{
				"m1": {MessageSummary: domain.MessageSummary{ID: "m1"}},
			},
			block: block,
		}
		m := monitoring.NewMetrics()
		s := New(source, time.Minute, m, zap.NewNop())
		s.SetActive(testMailbox("mb-1"))

		done := make(chan struct{})
		go func() {
			_, _ = s.Select(ctx, "m1")
			close(done)
		}()

		assert.Eventually(t, s.DetailLoading, time.Second, 5*time.Millisecond)
		go func() { _, _ = s.Select(ctx, "") }()
		assert.Eventually(t, func() bool {
			_, id := s.Detail()
			return id == ""
		}, time.Second, 5*time.Millisecond)

		source.mu.Lock()
		source.block = nil
		source.mu.Unlock()
		close(block)
		<-done

		assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResultsTotal.WithLabelValues("detail")))
	})
}
