package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/utils"
	"go.uber.org/zap"
)

// GenerateMode 生成输入模式
type GenerateMode string

const (
	ModeText   GenerateMode = "text"
	ModeSingle GenerateMode = "single"
	ModeMulti  GenerateMode = "multi"
)

// GenerateService 文字/图片生成 3D 代理
// 生成路径统一采用 PolicyDegradeToPlaceholder：后端失败时记日志、
// 返回占位模型并在 message 中说明，状态仍为 success——用可用性换透明度
type GenerateService struct {
	cfg     *config.Config
	backend GenerateBackend
	sam3d   SAM3DBackend
	cache   *RedisService
	policy  FallbackPolicy
}

func NewGenerateService(cfg *config.Config, backend GenerateBackend, sam3d SAM3DBackend, cache *RedisService) *GenerateService {
	return &GenerateService{
		cfg:     cfg,
		backend: backend,
		sam3d:   sam3d,
		cache:   cache,
		policy:  PolicyDegradeToPlaceholder,
	}
}

// SelectMode 输入模式判定，优先级：多图（>=2 张）> 单图 > 文字
// 三者皆缺是调用方错误
func SelectMode(req *model.GenerationRequest) (GenerateMode, error) {
	switch {
	case len(req.Images) >= 2:
		return ModeMulti, nil
	case req.ImageURL != "" || len(req.Images) == 1:
		return ModeSingle, nil
	case req.Prompt != "":
		return ModeText, nil
	default:
		return "", fmt.Errorf("%w: missing input, expect prompt, image_url or images", model.ErrValidation)
	}
}

// Generate 执行生成请求
func (s *GenerateService) Generate(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResponse, error) {
	mode, err := SelectMode(req)
	if err != nil {
		return nil, err
	}
	req.ApplyDefaults()

	// dry-run：不触达后端，立即返回占位模型
	if s.cfg.DryRun {
		return &model.GenerationResponse{
			Status:  "success",
			GLBData: utils.EncodeImagePayload(PlaceholderGLB),
			Message: "dry-run 模式，返回占位模型",
		}, nil
	}

	cacheKey := s.cacheKey(mode, req)
	if s.cache != nil {
		if cached, err := s.cache.GetGLB(ctx, cacheKey); err != nil {
			utils.Logger.Warn("failed to get cache", zap.Error(err))
		} else if cached != nil {
			utils.Logger.Info("generation cache hit", zap.String("key", cacheKey))
			return &model.GenerationResponse{
				Status:  "success",
				GLBData: utils.EncodeImagePayload(cached),
				Message: "生成成功（来自缓存）",
			}, nil
		}
	}

	glb, err := s.generate(ctx, mode, req)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		return s.degrade(mode, err)
	}

	if s.cache != nil {
		if err := s.cache.SetGLB(ctx, cacheKey, glb); err != nil {
			utils.Logger.Warn("failed to set cache", zap.Error(err))
		}
	}

	return &model.GenerationResponse{
		Status:  "success",
		GLBData: utils.EncodeImagePayload(glb),
		Message: "生成成功",
	}, nil
}

func (s *GenerateService) generate(ctx context.Context, mode GenerateMode, req *model.GenerationRequest) ([]byte, error) {
	params := GenerateParams{
		Seed:        req.Seed,
		Simplify:    req.Simplify,
		SparseSteps: req.SSSamplingSteps,
		SparseCFG:   req.SSGuidanceStrength,
		SlatSteps:   req.SlatSamplingSteps,
		SlatCFG:     req.SlatGuidanceStrength,
	}

	var (
		artifactPath string
		err          error
	)
	switch mode {
	case ModeText:
		artifactPath, err = s.backend.GenerateText(ctx, req.Prompt, params)
	case ModeSingle:
		payload := req.ImageURL
		if payload == "" {
			payload = req.Images[0]
		}
		var image []byte
		image, err = utils.DecodeImagePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		artifactPath, err = s.backend.GenerateSingle(ctx, image, params)
	case ModeMulti:
		images := make([][]byte, len(req.Images))
		for i, payload := range req.Images {
			images[i], err = utils.DecodeImagePayload(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: image %d: %v", model.ErrValidation, i, err)
			}
		}
		artifactPath, err = s.backend.GenerateMulti(ctx, images, params)
	}
	if err != nil {
		return nil, err
	}

	// 二段拉取：先拿制品路径，再取字节
	return s.backend.Download(ctx, artifactPath)
}

// GenerateSAM3D 原图 + 去背图生成 3D
func (s *GenerateService) GenerateSAM3D(ctx context.Context, req *model.SAM3DRequest) (*model.GenerationResponse, error) {
	if req.Image == "" || req.Mask == "" {
		return nil, fmt.Errorf("%w: image and mask are required", model.ErrValidation)
	}
	if req.Seed <= 0 {
		req.Seed = 42
	}

	if s.cfg.DryRun {
		return &model.GenerationResponse{
			Status:  "success",
			GLBData: utils.EncodeImagePayload(PlaceholderGLB),
			Message: "dry-run 模式，返回占位模型",
		}, nil
	}

	image, err := utils.DecodeImagePayload(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	mask, err := utils.DecodeImagePayload(req.Mask)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	artifactPath, err := s.sam3d.Generate(ctx, image, mask, req.Seed)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		return s.degrade("sam3d", err)
	}
	glb, err := s.sam3d.Download(ctx, artifactPath)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		return s.degrade("sam3d", err)
	}

	return &model.GenerationResponse{
		Status:  "success",
		GLBData: utils.EncodeImagePayload(glb),
		Message: "生成成功",
	}, nil
}

// GenerateSAM3DBatch 原图 + 多张去背图批次生成，每张 mask 一个 GLB
func (s *GenerateService) GenerateSAM3DBatch(ctx context.Context, req *model.SAM3DBatchRequest) (*model.SAM3DBatchResponse, error) {
	if req.Image == "" || len(req.Masks) == 0 {
		return nil, fmt.Errorf("%w: image and masks are required", model.ErrValidation)
	}
	if req.Seed <= 0 {
		req.Seed = 42
	}

	if s.cfg.DryRun {
		glbs := make([]string, len(req.Masks))
		for i := range glbs {
			glbs[i] = utils.EncodeImagePayload(PlaceholderGLB)
		}
		return &model.SAM3DBatchResponse{
			Status:  "success",
			Count:   len(glbs),
			GLBs:    glbs,
			Message: "dry-run 模式，返回占位模型",
		}, nil
	}

	image, err := utils.DecodeImagePayload(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	masks := make([][]byte, len(req.Masks))
	for i, payload := range req.Masks {
		masks[i], err = utils.DecodeImagePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: mask %d: %v", model.ErrValidation, i, err)
		}
	}

	paths, err := s.sam3d.GenerateBatch(ctx, image, masks, req.Seed)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		return s.degradeBatch(len(req.Masks), err)
	}

	glbs := make([]string, len(paths))
	for i, p := range paths {
		glb, err := s.sam3d.Download(ctx, p)
		if err != nil {
			if !degradable(err) {
				return nil, err
			}
			return s.degradeBatch(len(req.Masks), err)
		}
		glbs[i] = utils.EncodeImagePayload(glb)
	}

	return &model.SAM3DBatchResponse{
		Status:  "success",
		Count:   len(glbs),
		GLBs:    glbs,
		Message: "生成成功",
	}, nil
}

// degradable 只有传输类故障才降级为占位模型
// 调用方输入错误照常 400，后端契约违约照常 500
func degradable(err error) bool {
	return !errors.Is(err, model.ErrValidation) && !errors.Is(err, model.ErrMalformedBackend)
}

// degrade 按策略处理生成失败
func (s *GenerateService) degrade(mode GenerateMode, err error) (*model.GenerationResponse, error) {
	if s.policy != PolicyDegradeToPlaceholder {
		return nil, err
	}

	utils.Logger.Error("generation backend failed, falling back to placeholder",
		zap.String("mode", string(mode)),
		zap.Error(err))

	return &model.GenerationResponse{
		Status:  "success",
		GLBData: utils.EncodeImagePayload(PlaceholderGLB),
		Message: fmt.Sprintf("后端生成失败，已返回占位模型: %v", err),
	}, nil
}

func (s *GenerateService) degradeBatch(count int, err error) (*model.SAM3DBatchResponse, error) {
	if s.policy != PolicyDegradeToPlaceholder {
		return nil, err
	}

	utils.Logger.Error("sam3d batch backend failed, falling back to placeholder", zap.Error(err))

	glbs := make([]string, count)
	for i := range glbs {
		glbs[i] = utils.EncodeImagePayload(PlaceholderGLB)
	}
	return &model.SAM3DBatchResponse{
		Status:  "success",
		Count:   count,
		GLBs:    glbs,
		Message: fmt.Sprintf("后端生成失败，已返回占位模型: %v", err),
	}, nil
}

// cacheKey 请求内容的 MD5，相同输入命中相同缓存
func (s *GenerateService) cacheKey(mode GenerateMode, req *model.GenerationRequest) string {
	payload, _ := json.Marshal(struct {
		Mode string `json:"mode"`
		*model.GenerationRequest
	}{string(mode), req})
	return utils.BytesMD5(payload)
}
