package service

import "context"

// 下游模型服务只通过这些接口可达，模型加载与推理本身不在本层范围内

// BackendPredictRequest 透传给 2D 分割后端的预测输入
type BackendPredictRequest struct {
	EmbeddingRef    string      `json:"embedding_id"`
	PointCoords     [][]float64 `json:"point_coords,omitempty"`
	PointLabels     []int       `json:"point_labels,omitempty"`
	Box             []float64   `json:"box,omitempty"`
	MaskInput       []byte      `json:"mask_input,omitempty"` // 上一次预测的 logits
	MultimaskOutput bool        `json:"multimask_output"`
}

// BackendPredictResult 后端原始预测输出，顺序由后端决定，由代理层重排
type BackendPredictResult struct {
	Masks  [][]byte  // PNG 字节
	Scores []float64 // 与 Masks 等长
	Logits [][]byte  // 与 Masks 等长，不做解释的透传值
}

// SegmentBackend 2D 交互式分割模型服务
type SegmentBackend interface {
	// SetImage 上传图片并计算 embedding，返回 embedding 句柄与图片尺寸
	SetImage(ctx context.Context, imageData []byte) (embeddingRef string, width, height int, err error)
	// Predict 按提示执行分割预测
	Predict(ctx context.Context, req *BackendPredictRequest) (*BackendPredictResult, error)
	// Healthy 模型是否已加载
	Healthy(ctx context.Context) bool
}

// GenerateBackend 文字/图片生成 3D 模型服务（Trellis）
// 生成调用返回制品相对路径，字节内容需要二段 Download 拉取
type GenerateBackend interface {
	GenerateText(ctx context.Context, prompt string, params GenerateParams) (artifactPath string, err error)
	GenerateSingle(ctx context.Context, image []byte, params GenerateParams) (artifactPath string, err error)
	GenerateMulti(ctx context.Context, images [][]byte, params GenerateParams) (artifactPath string, err error)
	Download(ctx context.Context, artifactPath string) ([]byte, error)
}

// GenerateParams 透传给生成后端的采样参数
type GenerateParams struct {
	Seed        int
	Simplify    float64
	SparseSteps int
	SparseCFG   float64
	SlatSteps   int
	SlatCFG     float64
}

// SAM3DBackend 原图 + 去背图生成 3D 模型服务
type SAM3DBackend interface {
	Generate(ctx context.Context, image, mask []byte, seed int) (artifactPath string, err error)
	GenerateBatch(ctx context.Context, image []byte, masks [][]byte, seed int) (artifactPaths []string, err error)
	Download(ctx context.Context, artifactPath string) ([]byte, error)
}

// Segment3DBackend 网格部件分割模型服务（P3-SAM）
type Segment3DBackend interface {
	Segment(ctx context.Context, glbData []byte) (artifactPath string, err error)
	Download(ctx context.Context, artifactPath string) ([]byte, error)
}
