package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nexusmail/agent/internal/config"
	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/monitoring"
)

// Client 封装对远端邮件提供商的全部访问。
// 所有操作都可能因网络或提供商侧原因失败，调用方决定是否呈现；
// 客户端自身不做任何自动重试。
type Client struct {
	httpClient *http.Client
	baseURLs   []string
	limiter    *rate.Limiter
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// NewClient 创建提供商客户端。
func NewClient(cfg *config.ProviderConfig, metrics *monitoring.Metrics, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURLs: cfg.BaseURLs,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics:  metrics,
		log:      log,
	}
}

// Provision 向提供商申请一个随机身份：探测可用域名，
// 生成随机前缀和密码，注册账户并换取访问令牌。
func (c *Client) Provision(ctx context.Context) (*domain.Mailbox, error) {
	domains, err := c.ListDomains(ctx)
	if err != nil {
		return nil, &domain.ProvisionError{Message: err.Error()}
	}

	localPart := randomLocalPart()
	return c.ProvisionCustom(ctx, localPart, domains.Domains[0], domains.BaseURL)
}

// ProvisionCustom 在指定提供商上注册指定地址的邮箱身份。
// 前缀的本地校验由调用方负责，这里只处理提供商侧的拒绝。
func (c *Client) ProvisionCustom(ctx context.Context, localPart, domainName, baseURL string) (*domain.Mailbox, error) {
	address := fmt.Sprintf("%s@%s", localPart, domainName)
	password := randomPassword()

	body := map[string]string{"address": address, "password": password}

	var account accountResponse
	if err := c.doJSON(ctx, http.MethodPost, baseURL, "/accounts", "", body, &account); err != nil {
		return nil, provisionError(err)
	}
	if account.ID == "" || account.Address == "" {
		return nil, &domain.ProvisionError{Message: "provider returned an invalid identity"}
	}

	var token tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, baseURL, "/token", "", body, &token); err != nil {
		return nil, provisionError(err)
	}

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	c.log.Info("mailbox provisioned",
		zap.String("address", account.Address),
		zap.String("provider", baseURL),
	)

	return &domain.Mailbox{
		ID:        account.ID,
		Address:   account.Address,
		Password:  password,
		Token:     token.Token,
		APIBase:   baseURL,
		CreatedAt: createdAt,
	}, nil
}

// ListDomains 按配置顺序探测提供商，返回第一个应答的域名列表及其地址。
func (c *Client) ListDomains(ctx context.Context) (*DomainList, error) {
	var lastErr error
	for _, baseURL := range c.baseURLs {
		raw, err := c.doRaw(ctx, http.MethodGet, baseURL, "/domains", "", nil)
		if err != nil {
			lastErr = err
			c.log.Debug("domain probe failed",
				zap.String("provider", baseURL),
				zap.Error(err),
			)
			continue
		}

		entries, err := decodeCollection[domainEntry](raw)
		if err != nil {
			lastErr = err
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Domain)
		}
		if len(names) == 0 {
			lastErr = fmt.Errorf("provider %s returned no domains", baseURL)
			continue
		}

		return &DomainList{Domains: names, BaseURL: baseURL}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider configured")
	}
	return nil, lastErr
}

// Ping 探测是否有任一提供商可达，健康检查使用。
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListDomains(ctx)
	return err
}

// ListMessages 拉取指定邮箱的邮件摘要列表，提供商保证按创建时间倒序。
func (c *Client) ListMessages(ctx context.Context, mb *domain.Mailbox) ([]domain.MessageSummary, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, mb.APIBase, "/messages", mb.Token, nil)
	if err != nil {
		return nil, err
	}

	payloads, err := decodeCollection[messagePayload](raw)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.MessageSummary, 0, len(payloads))
	for i := range payloads {
		summaries = append(summaries, payloads[i].summary())
	}
	return summaries, nil
}

// GetMessage 拉取一封邮件的完整内容。
func (c *Client) GetMessage(ctx context.Context, mb *domain.Mailbox, id string) (*domain.MessageDetail, error) {
	var payload messagePayload
	if err := c.doJSON(ctx, http.MethodGet, mb.APIBase, "/messages/"+id, mb.Token, nil, &payload); err != nil {
		return nil, err
	}
	return payload.detail(), nil
}

// DeleteMessage 删除远端邮件。调用方采用本地乐观删除，
// 这里的失败只记录，不会回滚本地状态。
func (c *Client) DeleteMessage(ctx context.Context, mb *domain.Mailbox, id string) error {
	_, err := c.doRaw(ctx, http.MethodDelete, mb.APIBase, "/messages/"+id, mb.Token, nil)
	return err
}

// ========== 请求执行 ==========

// doRaw 执行一次受限流约束的提供商请求，返回原始响应体。
func (c *Client) doRaw(ctx context.Context, method, baseURL, path, token string, body interface{}) (data []byte, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordProviderRequest(operationLabel(method, path), time.Since(start), err)
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	url := strings.TrimSuffix(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		c.warnIfTokenExpired(token, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Op:         fmt.Sprintf("%s %s", method, path),
			Detail:     errorDetail(data),
		}
	}

	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, baseURL, path, token string, body, out interface{}) error {
	data, err := c.doRaw(ctx, method, baseURL, path, token, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// operationLabel 归一化请求路径作为指标标签，消息 id 不能进标签。
func operationLabel(method, path string) string {
	if strings.HasPrefix(path, "/messages/") {
		path = "/messages/:id"
	}
	return method + " " + path
}

// errorDetail 尽量从提供商错误响应中取出可读说明。
func errorDetail(data []byte) string {
	var payload struct {
		Message     string `json:"message"`
		Detail      string `json:"detail"`
		Description string `json:"hydra:description"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Description != "":
			return payload.Description
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		}
	}

	detail := strings.TrimSpace(string(data))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// provisionError 把传输层错误统一折叠为开通失败。
func provisionError(err error) error {
	if pe, ok := err.(*Error); ok {
		return &domain.ProvisionError{StatusCode: pe.StatusCode, Message: pe.Detail}
	}
	return &domain.ProvisionError{Message: err.Error()}
}

// randomLocalPart 生成随机邮箱前缀。
func randomLocalPart() string {
	base := strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return base[:12]
}

// randomPassword 生成提供商账户密码。
func randomPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
