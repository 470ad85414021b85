package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jaykayhq/insight-pipeline/sdk"
)

const usage = `用法: pipelinectl <command> [args]

  run-agent <TASK_TYPE>         运行一次代理
  drain <TASK_TYPE> [max]       反复运行代理直到没有 pending 任务
  sweep                         运行一次编排
  enqueue <TASK_TYPE> [json]    手动入队
  get <TASK_ID>                 任务详情
  requeue <TASK_ID>             重新入队失败任务
  list [TASK_TYPE] [STATUS]     最近的任务

环境变量: BASE_URL（默认 http://127.0.0.1:28080）`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("未加载 .env 文件，使用环境变量或默认值")
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:28080"
	}
	client := sdk.NewClient(baseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := run(ctx, client, os.Args[1], os.Args[2:])
	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("命令执行失败")
		os.Exit(1)
	}
	printJSON(out)
}

func run(ctx context.Context, c *sdk.Client, cmd string, args []string) (any, error) {
	arg := func(i int) (string, error) {
		if len(args) <= i {
			return "", fmt.Errorf("缺少参数\n\n%s", usage)
		}
		return args[i], nil
	}

	switch cmd {
	case "run-agent":
		taskType, err := arg(0)
		if err != nil {
			return nil, err
		}
		return c.RunAgent(ctx, taskType)

	case "drain":
		taskType, err := arg(0)
		if err != nil {
			return nil, err
		}
		limit := 0
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				return nil, fmt.Errorf("max 必须是整数: %w", err)
			}
		}
		res, err := c.Drain(ctx, taskType, limit, sdk.DefaultRetryConfig())
		if err != nil {
			log.Warn().Int("completed", res.Completed).Int("failed", res.Failed).Msg("drain 中断")
		}
		return res, err

	case "sweep":
		return c.RunOrchestrator(ctx)

	case "enqueue":
		taskType, err := arg(0)
		if err != nil {
			return nil, err
		}
		req := sdk.EnqueueTaskRequest{TaskType: taskType}
		if len(args) > 1 {
			if !json.Valid([]byte(args[1])) {
				return nil, fmt.Errorf("payload 不是合法 JSON")
			}
			req.Payload = json.RawMessage(args[1])
		}
		return c.EnqueueTask(ctx, req)

	case "get":
		id, err := arg(0)
		if err != nil {
			return nil, err
		}
		return c.GetTask(ctx, id)

	case "requeue":
		id, err := arg(0)
		if err != nil {
			return nil, err
		}
		return c.RequeueTask(ctx, id)

	case "list":
		req := sdk.ListTasksRequest{Limit: 20}
		if len(args) > 0 {
			req.TaskType = args[0]
		}
		if len(args) > 1 {
			req.Status = args[1]
		}
		return c.ListTasks(ctx, req)

	default:
		return nil, fmt.Errorf("未知命令 %q\n\n%s", cmd, usage)
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("序列化输出失败")
		return
	}
	fmt.Println(string(b))
}

// loadEnvFile 从当前目录向上查找 .env
func loadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for range 3 {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
		dir = filepath.Dir(dir)
	}
	return os.ErrNotExist
}
