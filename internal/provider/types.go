package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"nexusmail/agent/internal/domain"
)

// DomainList 可用域名探测结果。
// BaseURL 记录实际应答的提供商地址，后续对该域名的开通请求发往同一提供商。
type DomainList struct {
	Domains []string `json:"domains"`
	BaseURL string   `json:"providerBase"`
}

// Error 表示提供商返回的业务错误。
type Error struct {
	StatusCode int
	Op         string
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s failed (status %d): %s", e.Op, e.StatusCode, e.Detail)
}

// ========== 提供商线格式 ==========
// 兼容 mail.tm / mail.gw 风格的 API：集合响应包一层 hydra:member，
// 部分部署直接返回裸数组，两种都要能解。

type accountResponse struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type domainEntry struct {
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

type senderPayload struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type messagePayload struct {
	ID             string          `json:"id"`
	From           senderPayload   `json:"from"`
	Subject        string          `json:"subject"`
	Intro          string          `json:"intro"`
	Seen           bool            `json:"seen"`
	CreatedAt      time.Time       `json:"createdAt"`
	Category       string          `json:"aiCategory"`
	Text           string          `json:"text"`
	HTML           []string        `json:"html"`
	HasAttachments bool            `json:"hasAttachments"`
	Attachments    []struct {
		ID          string `json:"id"`
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
		DownloadURL string `json:"downloadUrl"`
	} `json:"attachments"`
}

// collection 解码 hydra 风格或裸数组的集合响应。
func decodeCollection[T any](data []byte) ([]T, error) {
	var wrapped struct {
		Members []T `json:"hydra:member"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Members != nil {
		return wrapped.Members, nil
	}

	var bare []T
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func (m *messagePayload) summary() domain.MessageSummary {
	category := domain.Category(m.Category)
	if category == "" {
		category = domain.CategoryOther
	}

	return domain.MessageSummary{
		ID:        m.ID,
		From:      domain.Sender{Address: m.From.Address, Name: m.From.Name},
		Subject:   m.Subject,
		Intro:     m.Intro,
		Seen:      m.Seen,
		CreatedAt: m.CreatedAt,
		Category:  category,
	}
}

func (m *messagePayload) detail() *domain.MessageDetail {
	detail := &domain.MessageDetail{
		MessageSummary: m.summary(),
		Text:           m.Text,
		HTML:           m.HTML,
		HasAttachments: m.HasAttachments,
	}

	for _, att := range m.Attachments {
		detail.Attachments = append(detail.Attachments, domain.Attachment{
			ID:          att.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
			DownloadURL: att.DownloadURL,
		})
	}

	return detail
}
