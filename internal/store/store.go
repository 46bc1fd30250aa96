package store

import (
	"context"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
)

// localPartPattern 自定义前缀限制：小写字母、数字、连字符、点，长度 3-30。
var localPartPattern = regexp.MustCompile(`^[a-z0-9.-]{3,30}$`)

// Provisioner 是邮箱开通的提供商接口。
type Provisioner interface {
	Provision(ctx context.Context) (*domain.Mailbox, error)
	ProvisionCustom(ctx context.Context, localPart, domainName, baseURL string) (*domain.Mailbox, error)
}

// Persistence 是邮箱集合的持久化接口。
// Load 读到损坏或缺失的数据时返回 (nil, nil)，上层视同空集合，绝不报错。
type Persistence interface {
	Load(ctx context.Context) (*domain.MailboxCollection, error)
	Save(ctx context.Context, collection *domain.MailboxCollection) error
	Clear(ctx context.Context) error
	Health() error
}

// Store 持有邮箱身份集合和单一的激活指针。
// 内存副本是权威状态；每次成员变更后整体写入持久化层。
type Store struct {
	mu          sync.RWMutex
	provisioner Provisioner
	persistence Persistence
	log         *zap.Logger

	mailboxes []domain.Mailbox
	activeID  string

	switchListeners []func(active *domain.Mailbox)
}

// New 创建邮箱存储。
func New(provisioner Provisioner, persistence Persistence, log *zap.Logger) *Store {
	return &Store{
		provisioner: provisioner,
		persistence: persistence,
		log:         log,
	}
}

// OnActiveChange 注册激活邮箱变更回调。
// 回调在锁外执行；创建、切换、删除引起的激活变化都会触发。
func (s *Store) OnActiveChange(fn func(active *domain.Mailbox)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchListeners = append(s.switchListeners, fn)
}

// Hydrate 在进程启动时从持久化层恢复集合。
// 恢复到非空且格式正确的集合时沿用其中记录的激活身份；
// 数据缺失或损坏一律视同空集合，直接开通一个新的随机身份。
func (s *Store) Hydrate(ctx context.Context) error {
	collection, err := s.persistence.Load(ctx)
	if err != nil {
		// 持久化层读取失败与数据缺失同样处理：全新开始
		s.log.Warn("failed to load persisted mailboxes, starting fresh", zap.Error(err))
		collection = nil
	}

	if collection != nil && len(collection.Mailboxes) > 0 {
		activeID := collection.ActiveID
		if !containsID(collection.Mailboxes, activeID) {
			activeID = collection.Mailboxes[0].ID
		}

		s.mu.Lock()
		s.mailboxes = collection.Mailboxes
		s.activeID = activeID
		active := s.activeLocked()
		s.mu.Unlock()

		s.log.Info("mailboxes hydrated",
			zap.Int("count", len(collection.Mailboxes)),
			zap.String("active", active.Address),
		)
		s.notifyActiveChange(active)
		return nil
	}

	_, err = s.CreateRandom(ctx)
	return err
}

// CreateRandom 向提供商申请一个随机身份，置于集合头部并激活。
// 开通失败直接返回错误，不做自动重试。
func (s *Store) CreateRandom(ctx context.Context) (*domain.Mailbox, error) {
	mailbox, err := s.provisioner.Provision(ctx)
	if err != nil {
		return nil, err
	}

	s.adopt(ctx, mailbox)
	return mailbox, nil
}

// CreateCustom 在指定域名下开通自定义前缀的身份。
// 前缀先做本地校验，不符合字符集或长度限制时不触达提供商。
func (s *Store) CreateCustom(ctx context.Context, localPart, domainName, baseURL string) (*domain.Mailbox, error) {
	if !localPartPattern.MatchString(localPart) {
		return nil, domain.ErrLocalPartInvalid
	}

	mailbox, err := s.provisioner.ProvisionCustom(ctx, localPart, domainName, baseURL)
	if err != nil {
		return nil, err
	}

	s.adopt(ctx, mailbox)
	return mailbox, nil
}

// SwitchActive 把激活指针指向另一个身份。
// 下游状态（邮件列表、详情视图）通过激活变更回调清理。
func (s *Store) SwitchActive(ctx context.Context, id string) error {
	s.mu.Lock()
	if !containsID(s.mailboxes, id) {
		s.mu.Unlock()
		return domain.ErrMailboxNotFound
	}
	s.activeID = id
	active := s.activeLocked()
	s.mu.Unlock()

	s.persist(ctx)
	s.notifyActiveChange(active)
	return nil
}

// Delete 移除一个身份。
// 被删的是激活身份时按集合顺序激活第一个剩余身份；
// 集合被删空时先清掉持久化状态（避免重载时复活刚删除的集合），
// 再开通一个新的随机身份顶上。
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.mailboxes {
		if s.mailboxes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.ErrMailboxNotFound
	}

	s.mailboxes = append(s.mailboxes[:idx], s.mailboxes[idx+1:]...)

	becameEmpty := len(s.mailboxes) == 0
	activeChanged := false
	if s.activeID == id && !becameEmpty {
		s.activeID = s.mailboxes[0].ID
		activeChanged = true
	}
	var active *domain.Mailbox
	if activeChanged {
		active = s.activeLocked()
	}
	s.mu.Unlock()

	if becameEmpty {
		if err := s.persistence.Clear(ctx); err != nil {
			s.log.Warn("failed to clear persisted mailboxes", zap.Error(err))
		}
		_, err := s.CreateRandom(ctx)
		return err
	}

	s.persist(ctx)
	if activeChanged {
		s.notifyActiveChange(active)
	}
	return nil
}

// Active 返回当前激活身份的副本，集合为空时返回 nil。
func (s *Store) Active() *domain.Mailbox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

// List 返回集合的快照副本。
func (s *Store) List() []domain.Mailbox {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Mailbox, len(s.mailboxes))
	copy(out, s.mailboxes)
	return out
}

// Health 透传持久化层健康状态。
func (s *Store) Health() error {
	return s.persistence.Health()
}

// adopt 把新开通的身份放入集合头部并激活。
func (s *Store) adopt(ctx context.Context, mailbox *domain.Mailbox) {
	s.mu.Lock()
	s.mailboxes = append([]domain.Mailbox{*mailbox}, s.mailboxes...)
	s.activeID = mailbox.ID
	s.mu.Unlock()

	s.persist(ctx)
	s.notifyActiveChange(mailbox)
}

// persist 把当前集合整体写入持久化层。写失败只记录：
// 内存副本仍是权威状态，下一次成员变更会再尝试落盘。
func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	collection := &domain.MailboxCollection{
		Version:   domain.CollectionVersion,
		ActiveID:  s.activeID,
		Mailboxes: make([]domain.Mailbox, len(s.mailboxes)),
	}
	copy(collection.Mailboxes, s.mailboxes)
	s.mu.RUnlock()

	if err := s.persistence.Save(ctx, collection); err != nil {
		s.log.Warn("failed to persist mailboxes", zap.Error(err))
	}
}

func (s *Store) notifyActiveChange(active *domain.Mailbox) {
	s.mu.RLock()
	listeners := make([]func(*domain.Mailbox), len(s.switchListeners))
	copy(listeners, s.switchListeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(active)
	}
}

// activeLocked 在持有锁的前提下解析激活身份。
func (s *Store) activeLocked() *domain.Mailbox {
	for i := range s.mailboxes {
		if s.mailboxes[i].ID == s.activeID {
			mb := s.mailboxes[i]
			return &mb
		}
	}
	return nil
}

func containsID(mailboxes []domain.Mailbox, id string) bool {
	if id == "" {
		return false
	}
	for i := range mailboxes {
		if mailboxes[i].ID == id {
			return true
		}
	}
	return false
}
