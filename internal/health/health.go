package health

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"nexusmail/agent/internal/store"
)

// ProviderPinger 提供商可达性探测。
type ProviderPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health      healthcheck.Handler
	persistence store.Persistence
	provider    ProviderPinger
	logger      *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(persistence store.Persistence, provider ProviderPinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:      healthcheck.NewHandler(),
		persistence: persistence,
		provider:    provider,
		logger:      logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 持久化后端检查
	hc.health.AddLivenessCheck("storage", hc.persistence.Health)

	// goroutine 数量检查
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(200))

	// 提供商可达性只影响就绪，不影响存活
	hc.health.AddReadinessCheck("provider", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hc.provider.Ping(ctx)
	})
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行健康检查
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.persistence.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hc.provider.Ping(ctx); err != nil {
		results["provider"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["provider"] = "OK"
	}

	results["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())
	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}
