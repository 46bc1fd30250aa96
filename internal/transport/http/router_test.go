package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nexusmail/agent/internal/config"
	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/health"
	"nexusmail/agent/internal/inbox"
	"nexusmail/agent/internal/monitoring"
	"nexusmail/agent/internal/persona"
	"nexusmail/agent/internal/provider"
	"nexusmail/agent/internal/store"
	"nexusmail/agent/internal/websocket"
)

type fakeProvider struct {
	counter  int
	details  map[string]*domain.MessageDetail
	messages []domain.MessageSummary
}

func (f *fakeProvider) Provision(ctx context.Context) (*domain.Mailbox, error) {
	f.counter++
	return &domain.Mailbox{
		ID:        fmt.Sprintf("mb-%d", f.counter),
		Address:   fmt.Sprintf("random%d@tempdomain.test", f.counter),
		Token:     "tok",
		APIBase:   "https://api.test",
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeProvider) ProvisionCustom(ctx context.Context, localPart, domainName, baseURL string) (*domain.Mailbox, error) {
	if localPart == "taken" {
		return nil, &domain.ProvisionError{StatusCode: 422, Message: "address already used"}
	}
	f.counter++
	return &domain.Mailbox{
		ID:        fmt.Sprintf("mb-%d", f.counter),
		Address:   localPart + "@" + domainName,
		Token:     "tok",
		APIBase:   baseURL,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeProvider) ListDomains(ctx context.Context) (*provider.DomainList, error) {
	return &provider.DomainList{Domains: []string{"tempdomain.test"}, BaseURL: "https://api.test"}, nil
}

func (f *fakeProvider) Ping(ctx context.Context) error { return nil }

func (f *fakeProvider) ListMessages(ctx context.Context, mb *domain.Mailbox) ([]domain.MessageSummary, error) {
	return f.messages, nil
}

func (f *fakeProvider) GetMessage(ctx context.Context, mb *domain.Mailbox, id string) (*domain.MessageDetail, error) {
	detail, ok := f.details[id]
	if !ok {
		return nil, &provider.Error{StatusCode: 404, Op: "get message", Detail: "not found"}
	}
	return detail, nil
}

func (f *fakeProvider) DeleteMessage(ctx context.Context, mb *domain.Mailbox, id string) error {
	return nil
}

func newTestRouter(t *testing.T, fake *fakeProvider) (*gin.Engine, *store.Store, *inbox.Synchronizer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	persistence, err := store.NewFilePersistence(t.TempDir(), log)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	st := store.New(fake, persistence, log)
	sync := inbox.New(fake, time.Minute, metrics, log)
	st.OnActiveChange(sync.SetActive)
	hub := websocket.NewHub([]string{"*"}, log)
	checker := health.NewHealthChecker(persistence, fake, log)

	router := NewRouter(RouterDependencies{
		Config:        &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}},
		Store:         st,
		Synchronizer:  sync,
		DomainLister:  fake,
		Personas:      persona.NewGenerator(),
		Metrics:       metrics,
		HealthChecker: checker,
		WebSocketHub:  hub,
		Logger:        log,
	})
	return router, st, sync
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestRouter_Mailboxes(t *testing.T) {
	t.Run("开通随机邮箱并列出", func(t *testing.T) {
		router, _, _ := newTestRouter(t, &fakeProvider{})

		w, body := doJSON(t, router, http.MethodPost, "/v1/mailboxes", "")
		require.Equal(t, http.StatusCreated, w.Code)
		created := body["data"].(map[string]interface{})
		assert.True(t, created["active"].(bool))
		// 凭据不暴露
		assert.NotContains(t, w.Body.String(), "token")

		w, body = doJSON(t, router, http.MethodGet, "/v1/mailboxes", "")
		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, created["id"], data["activeId"])
		assert.Len(t, data["mailboxes"], 1)
	})

	t.Run("自定义前缀非法时返回400", func(t *testing.T) {
		router, _, _ := newTestRouter(t, &fakeProvider{})

		w, body := doJSON(t, router, http.MethodPost, "/v1/mailboxes/custom",
			`{"localPart":"AB","domain":"tempdomain.test"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "邮箱前缀格式无效", body["msg"])
	})

	t.Run("地址被占用时返回409", func(t *testing.T) {
		router, _, _ := newTestRouter(t, &fakeProvider{})

		w, _ := doJSON(t, router, http.MethodPost, "/v1/mailboxes/custom",
			`{"localPart":"taken","domain":"tempdomain.test"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("切换激活邮箱", func(t *testing.T) {
		router, st, _ := newTestRouter(t, &fakeProvider{})
		first, err := st.CreateRandom(context.Background())
		require.NoError(t, err)
		_, err = st.CreateRandom(context.Background())
		require.NoError(t, err)

		w, body := doJSON(t, router, http.MethodPost, "/v1/mailboxes/"+first.ID+"/activate", "")

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, first.ID, data["activeId"])
	})

	t.Run("删除不存在的邮箱返回404", func(t *testing.T) {
		router, _, _ := newTestRouter(t, &fakeProvider{})

		w, _ := doJSON(t, router, http.MethodDelete, "/v1/mailboxes/nonexistent", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("获取可用域名", func(t *testing.T) {
		router, _, _ := newTestRouter(t, &fakeProvider{})

		w, body := doJSON(t, router, http.MethodGet, "/v1/domains", "")

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Len(t, data["domains"], 1)
	})
}

func TestRouter_Messages(t *testing.T) {
	verifyHTML := `<p><a href="https://x.test/verify?token=abc">Verify</a>` +
		`<a href="https://x.test/unsubscribe">unsubscribe</a></p>`

	newInboxRouter := func(t *testing.T) (*gin.Engine, *inbox.Synchronizer) {
		fake := &fakeProvider{
			messages: []domain.MessageSummary{{ID: "m1", Subject: "verify"}},
			details: map[string]*domain.MessageDetail{
				"m1": {
					MessageSummary: domain.MessageSummary{ID: "m1", Subject: "verify"},
					Text:           "click",
					HTML:           []string{verifyHTML},
				},
			},
		}
		router, st, sync := newTestRouter(t, fake)
		_, err := st.CreateRandom(context.Background())
		require.NoError(t, err)
		sync.Poll(context.Background())
		return router, sync
	}

	t.Run("消息列表", func(t *testing.T) {
		router, _ := newInboxRouter(t)

		w, body := doJSON(t, router, http.MethodGet, "/v1/messages", "")

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Len(t, data["messages"], 1)
		assert.Equal(t, false, data["loading"])
	})

	t.Run("详情附带主行动链接和安全HTML", func(t *testing.T) {
		router, _ := newInboxRouter(t)

		w, body := doJSON(t, router, http.MethodGet, "/v1/messages/m1", "")

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "https://x.test/verify?token=abc", data["primaryLink"])
		assert.Contains(t, data["safeHtml"], `target="_blank" rel="noopener noreferrer"`)
	})

	t.Run("详情不存在返回404", func(t *testing.T) {
		router, _ := newInboxRouter(t)

		w, _ := doJSON(t, router, http.MethodGet, "/v1/messages/missing", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("删除消息本地立即生效", func(t *testing.T) {
		router, sync := newInboxRouter(t)

		w, _ := doJSON(t, router, http.MethodDelete, "/v1/messages/m1", "")

		assert.Equal(t, http.StatusNoContent, w.Code)
		// 204 响应不携带消息体
		assert.Zero(t, w.Body.Len())
		assert.Empty(t, sync.Messages())
	})
}

func TestRouter_Persona(t *testing.T) {
	t.Run("生成虚拟身份", func(t *testing.T) {
		router, _, _ := newTestRouter(t, &fakeProvider{})

		w, body := doJSON(t, router, http.MethodGet, "/v1/persona", "")

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.NotEmpty(t, data["fullName"])
		assert.NotEmpty(t, data["password"])
	})

	t.Run("注入脚本默认使用激活邮箱地址", func(t *testing.T) {
		router, st, _ := newTestRouter(t, &fakeProvider{})
		mb, err := st.CreateRandom(context.Background())
		require.NoError(t, err)

		w, body := doJSON(t, router, http.MethodPost, "/v1/persona/script", "{}")

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, mb.Address, data["email"])
		assert.Contains(t, data["script"].(string), mb.Address)
	})

	t.Run("表单元素分类", func(t *testing.T) {
		router, st, _ := newTestRouter(t, &fakeProvider{})
		mb, err := st.CreateRandom(context.Background())
		require.NoError(t, err)

		w, body := doJSON(t, router, http.MethodPost, "/v1/persona/classify",
			`{"fields":[{"name":"whatever","type":"email"},{"name":"sifre"},{"name":"favorite_color"}]}`)

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, float64(2), data["matched"])

		fields := data["fields"].([]interface{})
		emailField := fields[0].(map[string]interface{})
		assert.Equal(t, mb.Address, emailField["value"])
		unmatched := fields[2].(map[string]interface{})
		assert.Equal(t, false, unmatched["matched"])
	})
}

func TestRouter_Health(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeProvider{})

	w, body := doJSON(t, router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "OK", checks["storage"])
	assert.Equal(t, "OK", checks["provider"])
}
