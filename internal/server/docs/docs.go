// Package docs /swagger 页面使用的 OpenAPI 描述，内容与 handler 上的 swag 注释一致。
// 修改注释后在 cmd/server 下执行 go generate，由 swag init 覆盖本文件。
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/agents/{task_type}/run": {
            "post": {
                "description": "认领并处理该任务类型最早的 pending 任务（至多一个）",
                "produces": ["application/json"],
                "tags": ["Agents"],
                "summary": "运行一次代理",
                "parameters": [
                    {"type": "string", "example": "SCRAPE_RSS_FEED", "description": "任务类型", "name": "task_type", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.RunAgentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "description": "进程存活即返回 200，不检查任务存储",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "存活检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/healthcheck.CheckResult"}}
                }
            }
        },
        "/orchestrator/run": {
            "post": {
                "description": "遍历数据源，为冷却结束且没有 pending 任务的数据源创建任务",
                "produces": ["application/json"],
                "tags": ["Agents"],
                "summary": "运行一次编排",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.OrchestratorRunResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/pipeline": {
            "get": {
                "description": "返回声明的任务类型依赖图和已注册代理的就绪状态",
                "produces": ["application/json"],
                "tags": ["Agents"],
                "summary": "流水线结构",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.PipelineResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "报告 STORE_DRIVER 及其连接状态；各代理的配置状态只做展示，不影响就绪",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "就绪检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ReadinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ReadinessResponse"}}
                }
            }
        },
        "/sources": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Sources"],
                "summary": "数据源列表",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ListSourcesResponse"}}
                }
            }
        },
        "/tasks": {
            "get": {
                "description": "按创建时间倒序分页查询任务",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "任务列表",
                "parameters": [
                    {"type": "string", "description": "任务类型", "name": "task_type", "in": "query"},
                    {"enum": ["pending", "claimed", "completed", "failed"], "type": "string", "description": "状态", "name": "status", "in": "query"},
                    {"type": "integer", "default": 50, "description": "每页条数", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "偏移", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ListTasksResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            },
            "post": {
                "description": "创建一个 pending 任务，载荷按任务类型校验",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "手动入队",
                "parameters": [
                    {"description": "任务创建请求", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.TaskResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/tasks/{task_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "任务详情",
                "parameters": [
                    {"type": "string", "description": "任务 ID", "name": "task_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.TaskResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/tasks/{task_id}/requeue": {
            "post": {
                "description": "以相同类型和载荷创建一个新的 pending 任务；原任务保持 failed",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "重新入队失败任务",
                "parameters": [
                    {"type": "string", "description": "任务 ID", "name": "task_id", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.RequeueTaskResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.CreateTaskRequest": {
            "type": "object",
            "required": ["task_type"],
            "properties": {
                "payload": {"type": "object"},
                "task_type": {"type": "string", "example": "SCRAPE_RSS_FEED"}
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "task not found"},
                "kind": {"type": "string", "example": "upstream"},
                "task_id": {"type": "string"}
            }
        },
        "dto.ListSourcesResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/repository.Source"}}
            }
        },
        "dto.ListTasksResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/repository.Task"}},
                "limit": {"type": "integer", "example": 50},
                "offset": {"type": "integer", "example": 0}
            }
        },
        "dto.OrchestratorRunResponse": {
            "type": "object",
            "properties": {
                "created": {"type": "integer", "example": 2},
                "decisions": {"type": "array", "items": {"$ref": "#/definitions/pipeline.SourceDecision"}},
                "errors": {"type": "integer", "example": 0},
                "message": {"type": "string", "example": "Orchestration check complete. Created 2 new tasks."},
                "skipped": {"type": "integer", "example": 1}
            }
        },
        "dto.PipelineResponse": {
            "type": "object",
            "properties": {
                "agents": {"type": "array", "items": {"$ref": "#/definitions/workers.Info"}},
                "edges": {"type": "array", "items": {"$ref": "#/definitions/pipeline.Edge"}}
            }
        },
        "dto.ReadinessResponse": {
            "type": "object",
            "properties": {
                "agents": {"type": "object", "additionalProperties": {"type": "string"}},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}},
                "status": {"type": "string", "example": "ok"},
                "store": {"type": "string", "example": "postgres"}
            }
        },
        "dto.RequeueTaskResponse": {
            "type": "object",
            "properties": {
                "requeued_from": {"type": "string"},
                "task": {"$ref": "#/definitions/repository.Task"}
            }
        },
        "dto.RunAgentResponse": {
            "type": "object",
            "properties": {
                "follow_up_ids": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string", "example": "Task completed successfully."},
                "status": {"type": "string", "example": "completed"},
                "task_id": {"type": "string"},
                "task_type": {"type": "string", "example": "SCRAPE_RSS_FEED"}
            }
        },
        "dto.TaskResponse": {
            "type": "object",
            "properties": {
                "task": {"$ref": "#/definitions/repository.Task"}
            }
        },
        "healthcheck.CheckResult": {
            "type": "object",
            "properties": {
                "checks": {"type": "object", "additionalProperties": {"type": "string"}},
                "status": {"type": "string"}
            }
        },
        "pipeline.Edge": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "to": {"type": "string"}
            }
        },
        "pipeline.SourceDecision": {
            "type": "object",
            "properties": {
                "decision": {"type": "string"},
                "error": {"type": "string"},
                "source": {"type": "string"},
                "task_id": {"type": "string"}
            }
        },
        "repository.Source": {
            "type": "object",
            "properties": {
                "cool_down_until": {"type": "string"},
                "default_payload": {"type": "object"},
                "name": {"type": "string"},
                "refresh_interval": {"type": "integer"}
            }
        },
        "repository.Task": {
            "type": "object",
            "properties": {
                "claimed_at": {"type": "string"},
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "last_error": {"type": "string"},
                "payload": {"type": "object"},
                "result": {"type": "object"},
                "status": {"type": "string", "enum": ["pending", "claimed", "completed", "failed"]},
                "task_type": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "workers.Info": {
            "type": "object",
            "properties": {
                "downstream": {"type": "array", "items": {"type": "string"}},
                "not_ready": {"type": "string"},
                "ready": {"type": "boolean"},
                "task_type": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:28080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Insight Pipeline API",
	Description:      "市场洞察任务流水线 - 编排器、代理调用与任务运维接口",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
