package model

import "errors"

// 错误分类，handler 层统一映射到 HTTP 状态码
var (
	// ErrModelUnavailable 后端模型未加载或服务不可达，503
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrSessionNotFound 会话不存在，404
	ErrSessionNotFound = errors.New("session not found")

	// ErrValidation 调用方输入不合法，400
	ErrValidation = errors.New("validation error")

	// ErrMalformedBackend 后端返回成功但响应结构违反契约，500
	ErrMalformedBackend = errors.New("malformed backend response")

	// ErrTransport 网络或超时故障，按端点策略处理：
	// 分割路径直接透出，生成路径降级为占位模型
	ErrTransport = errors.New("transport failure")

	// ErrParseFailure 结构化输出提取失败
	ErrParseFailure = errors.New("parse failure")
)
