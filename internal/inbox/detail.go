package inbox

import (
	"context"

	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
)

// Select 选中一条消息并拉取其完整内容。
//
// 每次调用递增选择令牌，拉取结果落地前校验令牌：期间发生了新的选择、清除
// 或邮箱切换，迟到的结果直接丢弃。持有的详情因此始终对应最近一次完成的
// 选择。拉取失败保留此前的详情。id 为空表示清除选择。
func (s *Synchronizer) Select(ctx context.Context, id string) (*domain.MessageDetail, error) {
	s.mu.Lock()
	s.selectionToken++
	token := s.selectionToken
	mb := s.active

	if id == "" || mb == nil {
		s.selectedID = ""
		s.detail = nil
		s.detailLoading = false
		s.mu.Unlock()
		if id != "" {
			return nil, domain.ErrNoActiveMailbox
		}
		return nil, nil
	}

	s.selectedID = id
	s.detailLoading = true
	s.mu.Unlock()

	detail, err := s.source.GetMessage(ctx, mb, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectionToken != token {
		// 选择已被后续操作取代，迟到的结果不落地
		s.metrics.RecordStaleResult("detail")
		s.log.Debug("丢弃过期的详情结果", zap.String("messageId", id))
		return nil, nil
	}
	s.detailLoading = false
	if err != nil {
		return nil, err
	}
	s.detail = detail
	s.markSeenLocked(id)
	return detail, nil
}

// Detail 返回当前持有的消息详情和对应的消息 id。
func (s *Synchronizer) Detail() (*domain.MessageDetail, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detail, s.selectedID
}

// DetailLoading 报告是否有详情拉取在途。
func (s *Synchronizer) DetailLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detailLoading
}

// markSeenLocked 打开详情即视为已读，仅更新本地列表快照。
func (s *Synchronizer) markSeenLocked(id string) {
	for i := range s.messages {
		if s.messages[i].ID == id && !s.messages[i].Seen {
			updated := make([]domain.MessageSummary, len(s.messages))
			copy(updated, s.messages)
			updated[i].Seen = true
			s.messages = updated
			return
		}
	}
}
