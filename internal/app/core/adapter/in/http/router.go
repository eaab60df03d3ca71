package http

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// NewRouter 建立 HTTP 路由
//
// 參數:
//
//	core: 核心業務邏輯
//	accessLog: 存取紀錄輸出 (每個請求一行 JSON)，nil 代表不紀錄
//
// 回傳:
//
//	*gin.Engine: 可直接作為 http.Handler 使用
func NewRouter(core *usecase.CoreUseCase, accessLog io.Writer) *gin.Engine {
	if accessLog == nil {
		accessLog = io.Discard
	}
	h := NewHandler(core)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(RequestID(), AccessLog(accessLog), gin.Recovery())

	// 錯誤回應一律沒有內容，gin 預設的 404/405 會寫出文字，所以自行處理
	r.NoRoute(func(c *gin.Context) { c.AbortWithStatus(http.StatusNotFound) })
	r.NoMethod(func(c *gin.Context) { c.AbortWithStatus(http.StatusMethodNotAllowed) })

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	accounts := r.Group("/accounts/:id")
	accounts.POST("/transactions", h.PostTransaction)
	accounts.GET("/statement", h.GetStatement)
	return r
}

// RequestID 每個請求帶一個 UUID，沿用客戶端送來的合法值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog 請求結束後寫出一行 JSON
func AccessLog(w io.Writer) gin.HandlerFunc {
	logger := log.New(w, "", 0)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		entry := map[string]any{
			"time":       start.UTC().Format(time.RFC3339Nano),
			"request_id": c.GetString(ctxRequestID),
			"req": map[string]any{
				"method":       c.Request.Method,
				"url":          c.Request.URL.Path,
				"req_body_len": c.Request.ContentLength,
			},
			"rsp": map[string]any{
				"status":       c.Writer.Status(),
				"status_class": statusClass(c.Writer.Status()),
				"rsp_body_len": size,
			},
			"latency_us": time.Since(start).Microseconds(),
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("Error marshaling access log: %v", err)
			return
		}
		logger.Println(string(data))
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
