package model

// GenerationParams Trellis 采样参数
type GenerationParams struct {
	Seed                 int     `json:"seed"`
	Simplify             float64 `json:"simplify"`
	SSSamplingSteps      int     `json:"ss_sampling_steps"`
	SSGuidanceStrength   float64 `json:"ss_guidance_strength"`
	SlatSamplingSteps    int     `json:"slat_sampling_steps"`
	SlatGuidanceStrength float64 `json:"slat_guidance_strength"`
}

// ApplyDefaults 补齐未指定的采样参数
func (p *GenerationParams) ApplyDefaults() {
	if p.Seed <= 0 {
		p.Seed = 1
	}
	if p.Simplify <= 0 {
		p.Simplify = 0.95
	}
	if p.SSSamplingSteps <= 0 {
		p.SSSamplingSteps = 12
	}
	if p.SSGuidanceStrength <= 0 {
		p.SSGuidanceStrength = 7.5
	}
	if p.SlatSamplingSteps <= 0 {
		p.SlatSamplingSteps = 12
	}
	if p.SlatGuidanceStrength <= 0 {
		p.SlatGuidanceStrength = 7.5
	}
}

// GenerationRequest 文字/图片生成 3D 请求
// 三种输入模式取其一：images（>=2 张优先）> image_url > prompt
type GenerationRequest struct {
	Prompt   string   `json:"prompt,omitempty"`
	ImageURL string   `json:"image_url,omitempty"` // data URL 或裸 base64
	Images   []string `json:"images,omitempty"`
	ModelID  string   `json:"model_id,omitempty"`
	GenerationParams
}

// GenerationResponse 生成结果，GLBData 为 base64 编码的 GLB 容器
type GenerationResponse struct {
	Status  string `json:"status"`
	GLBData string `json:"glb_data,omitempty"`
	Message string `json:"message,omitempty"`
}

// SAM3DRequest 原图 + 去背图生成 3D 请求
type SAM3DRequest struct {
	Image string `json:"image"`
	Mask  string `json:"mask"`
	Seed  int    `json:"seed,omitempty"`
}

// SAM3DBatchRequest 原图 + 多张去背图批次生成请求
type SAM3DBatchRequest struct {
	Image string   `json:"image"`
	Masks []string `json:"masks"`
	Seed  int      `json:"seed,omitempty"`
}

// SAM3DBatchResponse 批次生成结果，每张 mask 对应一个 GLB
type SAM3DBatchResponse struct {
	Status  string   `json:"status"`
	Count   int      `json:"count"`
	GLBs    []string `json:"glbs,omitempty"`
	Message string   `json:"message,omitempty"`
}
