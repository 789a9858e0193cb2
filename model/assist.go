package model

// PartRef 场景中的一个部件
type PartRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// RenameRequest 部件重命名请求，Image 为高亮该部件的截图
type RenameRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt,omitempty"`
}

type RenameResponse struct {
	Name string `json:"name"`
}

// ClassifyRequest 部件分类请求，Categories 为封闭类别表
type ClassifyRequest struct {
	Image      string   `json:"image"`
	Categories []string `json:"categories"`
}

// ClassifyResponse 未能匹配类别表时 Category 为模型原文，调用方应视为未分类
type ClassifyResponse struct {
	Category string `json:"category"`
}

// AnalyzeRequest 部件枚举请求
type AnalyzeRequest struct {
	Image      string `json:"image"`
	ObjectName string `json:"object_name,omitempty"`
}

type AnalyzeResponse struct {
	Categories []string `json:"categories"`
}

// GroupRequest 部件分组请求
type GroupRequest struct {
	Parts  []PartRef `json:"parts"`
	Prompt string    `json:"prompt,omitempty"`
}

// GroupResponse 分组结果原样返回，不校验完整性与互斥性
type GroupResponse struct {
	Groups map[string][]string `json:"groups"`
}
