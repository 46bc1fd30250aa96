package domain

import "time"

// Category 邮件分类标签（由提供商侧计算，本地只透传）。
type Category string

const (
	CategoryVerification Category = "Verification"
	CategoryPromotion    Category = "Promotion"
	CategoryNewsletter   Category = "Newsletter"
	CategorySecurity     Category = "Security"
	CategoryOther        Category = "Other"
)

// Sender 发件人信息。
type Sender struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// MessageSummary 表示邮件列表中的一条摘要。
// 每轮同步产生的摘要是不可变快照，下一轮整体替换而不是原地修改。
type MessageSummary struct {
	ID        string    `json:"id"`
	From      Sender    `json:"from"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"` // 预览文本
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
	Category  Category  `json:"category,omitempty"`
}

// Attachment 表示邮件附件描述符。内容本身通过 DownloadURL 按需拉取。
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

// MessageDetail 表示一封邮件的完整内容。
// HTML 可能包含多个渲染版本，第一个为规范版本。
type MessageDetail struct {
	MessageSummary

	Text           string       `json:"text,omitempty"`
	HTML           []string     `json:"html,omitempty"`
	HasAttachments bool         `json:"hasAttachments"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// PrimaryHTML 返回规范的 HTML 正文，没有则返回空字符串。
func (d *MessageDetail) PrimaryHTML() string {
	if len(d.HTML) == 0 {
		return ""
	}
	return d.HTML[0]
}
