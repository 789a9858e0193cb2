package model

// PredictPrompt 一次分割预测的提示输入
type PredictPrompt struct {
	PointCoords     [][]float64 // [[x, y], ...]
	PointLabels     []int       // 与 PointCoords 等长，1=前景 0=背景
	Box             []float64   // [x1, y1, x2, y2]，可选
	UsePreviousMask bool
	MultimaskOutput bool
}

// ImageSize 图片尺寸
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SetImageResponse set_image 响应
type SetImageResponse struct {
	SessionID string    `json:"session_id"`
	ImageSize ImageSize `json:"image_size"`
	Message   string    `json:"message"`
}

// PredictResponse predict 响应，masks 按分数降序排列，best_mask 恒为第一个
type PredictResponse struct {
	SessionID string    `json:"session_id"`
	MaskCount int       `json:"mask_count"`
	Masks     []string  `json:"masks"`
	Scores    []float64 `json:"scores"`
	BestMask  string    `json:"best_mask"`
}

// ApplyResponse predict_and_apply 响应
type ApplyResponse struct {
	SessionID string  `json:"session_id"`
	Score     float64 `json:"score"`
	RGBAImage string  `json:"rgba_image,omitempty"`
	Mask      string  `json:"mask"`
}

// DeleteSessionResponse 删除会话响应，删除不存在的会话同样视为成功
type DeleteSessionResponse struct {
	Success bool   `json:"success"`
	Removed bool   `json:"removed"`
	Message string `json:"message"`
}

// Segment3DRequest 网格分割请求，GLBData 为 base64 编码的 GLB
type Segment3DRequest struct {
	GLBData string `json:"glb_data"`
}

// Segment3DResponse 网格分割结果
type Segment3DResponse struct {
	Status  string `json:"status"`
	GLBData string `json:"glb_data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
