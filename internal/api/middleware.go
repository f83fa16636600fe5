package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const authRealm = "Restricted"

// basicAuthMiddleware 包装 gin 自带的 Basic Auth，仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// 健康检查接口不做认证
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	auth := gin.BasicAuthForRealm(gin.Accounts{user: pass}, authRealm)
	return func(c *gin.Context) {
		if isHealthPath(c.Request.URL.Path) {
			return
		}
		auth(c)
	}
}

// requestLogger 用 logrus 输出访问日志，健康检查只在 debug 级别记录
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		case isHealthPath(c.Request.URL.Path):
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	}
}

func isHealthPath(p string) bool {
	return p == "/health" || p == "/api/health"
}
