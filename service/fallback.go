package service

// FallbackPolicy 后端失败时的响应策略
// 生成端点偏向可用性：失败降级为占位模型并在 message 中说明
// 分割端点偏向正确性：失败直接透出，静默降级会破坏用户正在驱动的交互流程
type FallbackPolicy int

const (
	// PolicyStrict 失败原样透出
	PolicyStrict FallbackPolicy = iota
	// PolicyDegradeToPlaceholder 失败降级为占位制品，状态仍标记成功
	PolicyDegradeToPlaceholder
)

// PlaceholderGLB 最小合法 GLB 容器（glTF v2 头 + 空 JSON chunk）
// dry-run 模式与生成降级路径返回该制品
var PlaceholderGLB = []byte{
	0x67, 0x6C, 0x54, 0x46, // "glTF"
	0x02, 0x00, 0x00, 0x00, // version 2
	0x14, 0x00, 0x00, 0x00, // total length 20
	0x0C, 0x00, 0x00, 0x00, // chunk length 12
	0x4A, 0x53, 0x4F, 0x4E, // "JSON"
	0x7B, 0x7D, 0x20, 0x20, // "{}  "
}
