package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// L 全局 logger
	L zerolog.Logger
)

// Init 初始化日志器
func Init(production bool) error {
	// 设置时间格式
	zerolog.TimeFieldFormat = time.RFC3339

	if production {
		// 生产环境：JSON 格式输出
		L = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Caller().
			Logger()
	} else {
		// 开发环境：控制台友好格式
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			// 自定义字段输出顺序（HTTP 请求日志的常见顺序）
			FieldsOrder: []string{
				"request_id",    // 1. 请求 ID
				"task_type",     // 2. 任务类型
				"task_id",       // 3. 任务 ID
				"method",        // 4. HTTP 方法
				"path",          // 5. 请求路径
				"status",        // 6. 状态码
				"duration(ms)",  // 7. 耗时
				"response_size", // 8. 响应大小
				"client_ip",     // 9. 客户端 IP
				"query",         // 10. 查询参数
				"request_body",  // 11. 请求体
				"response_body", // 12. 响应体
				"errors",        // 13. 错误信息
			},
		}
		L = zerolog.New(output).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	// 设置全局日志级别
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}

// Sync zerolog 不需要显式 sync，保留接口兼容性
func Sync() {
	// zerolog 不需要显式 sync
}

// SetLevel 设置日志级别
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// WithComponent 添加 component
func WithComponent(component string) zerolog.Logger {
	return L.With().Str("component", component).Logger()
}
