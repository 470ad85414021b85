package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// DefaultMaxPayloadSize 默认最大请求体（1MB）
const DefaultMaxPayloadSize = 1 << 20

var (
	// TaskTypeRegex 任务类型：大写字母开头，大写字母、数字、下划线，2-64 字符
	TaskTypeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

	// TaskIDRegex 任务 ID（uuid 形式：十六进制与连字符，8-64 字符）
	TaskIDRegex = regexp.MustCompile(`^[a-fA-F0-9-]{8,64}$`)
)

// PayloadSizeLimit 请求体大小限制。Content-Length 超限直接拒绝，其余情况用 MaxBytesReader 兜住。
func PayloadSizeLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("请求体过大，最大允许 %d 字节", maxSize),
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

// ValidateTaskType 验证任务类型
func ValidateTaskType(taskType string) bool {
	return TaskTypeRegex.MatchString(taskType)
}

// ValidateTaskID 验证任务 ID
func ValidateTaskID(taskID string) bool {
	return TaskIDRegex.MatchString(taskID)
}

// ValidateTaskTypeParam Gin 中间件：验证路径参数中的 task_type
func ValidateTaskTypeParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskType := c.Param("task_type")
		if taskType == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "task_type 参数缺失"})
			return
		}
		if !ValidateTaskType(taskType) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "task_type 格式无效，必须是大写字母开头的 2-64 个大写字母、数字或下划线",
			})
			return
		}
		c.Next()
	}
}

// ValidateTaskIDParam Gin 中间件：验证路径参数中的 task_id
func ValidateTaskIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("task_id")
		if taskID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "task_id 参数缺失"})
			return
		}
		if !ValidateTaskID(taskID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "task_id 格式无效，必须是 8-64 个十六进制字符或连字符",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware CORS 中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
