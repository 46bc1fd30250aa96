package domain

import "time"

// Mailbox 表示一个已开通的一次性邮箱身份。
// 创建后不可变：重新创建时整体替换，删除时整体移除。
type Mailbox struct {
	ID        string    `json:"id"`                 // 邮箱唯一标识（由提供商分配）
	Address   string    `json:"address"`            // 完整邮箱地址
	Password  string    `json:"password,omitempty"` // 提供商账户密码（部分提供商需要）
	Token     string    `json:"token,omitempty"`    // Bearer 访问令牌
	APIBase   string    `json:"apiBase,omitempty"`  // 该邮箱所属的提供商 API 地址
	CreatedAt time.Time `json:"createdAt"`
}

// MailboxCollection 是持久化的邮箱集合快照。
// 整个集合作为单一带版本的载荷写入存储，读到损坏数据等同于空集合。
type MailboxCollection struct {
	Version   int       `json:"version"`
	ActiveID  string    `json:"activeId"`
	Mailboxes []Mailbox `json:"mailboxes"`
}

// CollectionVersion 当前持久化载荷的版本号。
const CollectionVersion = 2
