package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/utils"
	"go.uber.org/zap"
)

// SegmentService 交互式 2D 分割代理与 3D 网格分割代理
// 会话状态机：UNINITIALIZED → IMAGE_SET → PREDICTED（自环）→ DELETED
// 分割路径统一采用 PolicyStrict，失败不降级
type SegmentService struct {
	cfg     *config.Config
	store   *SessionStore
	backend SegmentBackend
	seg3d   Segment3DBackend
}

func NewSegmentService(cfg *config.Config, store *SessionStore, backend SegmentBackend, seg3d Segment3DBackend) *SegmentService {
	return &SegmentService{
		cfg:     cfg,
		store:   store,
		backend: backend,
		seg3d:   seg3d,
	}
}

// SetImage 开始一个分割会话：保存图片、计算 embedding、登记会话
func (s *SegmentService) SetImage(ctx context.Context, imageData []byte) (*model.SetImageResponse, error) {
	id := utils.GenerateID()
	workDir := filepath.Join(s.cfg.Storage.DataDir, id)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	imagePath := filepath.Join(workDir, "image.png")
	if err := os.WriteFile(imagePath, imageData, 0644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	embeddingRef, width, height, err := s.backend.SetImage(ctx, imageData)
	if err != nil {
		// 会话未登记，不留半成品目录
		_ = os.RemoveAll(workDir)
		return nil, err
	}

	sess := s.store.Create(id, workDir, imagePath, embeddingRef, width, height)

	utils.Logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.Int("width", width),
		zap.Int("height", height))

	return &model.SetImageResponse{
		SessionID: sess.ID,
		ImageSize: model.ImageSize{Width: width, Height: height},
		Message:   "图片已设定，可以开始分割",
	}, nil
}

// Predict 按点/框提示执行分割，masks 按分数降序返回
func (s *SegmentService) Predict(ctx context.Context, sessionID string, prompt *model.PredictPrompt) (*model.PredictResponse, error) {
	sess, result, err := s.predict(ctx, sessionID, prompt, prompt.MultimaskOutput)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	maskRefs := make([]string, len(result.Masks))
	for i, mask := range result.Masks {
		name := fmt.Sprintf("mask_%d.png", i)
		if err := os.WriteFile(filepath.Join(sess.WorkDir, name), mask, 0644); err != nil {
			return nil, fmt.Errorf("failed to save mask artifact: %w", err)
		}
		maskRefs[i] = downloadRef(sess.ID, name)
	}

	return &model.PredictResponse{
		SessionID: sess.ID,
		MaskCount: len(maskRefs),
		Masks:     maskRefs,
		Scores:    result.Scores,
		BestMask:  maskRefs[0],
	}, nil
}

// PredictAndApply 单 mask 预测；returnRGBA 时把最佳 mask 合成为原图的 alpha 通道
func (s *SegmentService) PredictAndApply(ctx context.Context, sessionID string, prompt *model.PredictPrompt, returnRGBA bool) (*model.ApplyResponse, error) {
	sess, result, err := s.predict(ctx, sessionID, prompt, false)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	bestMask := result.Masks[0]
	maskName := "mask_best.png"
	if err := os.WriteFile(filepath.Join(sess.WorkDir, maskName), bestMask, 0644); err != nil {
		return nil, fmt.Errorf("failed to save mask artifact: %w", err)
	}

	resp := &model.ApplyResponse{
		SessionID: sess.ID,
		Score:     result.Scores[0],
		Mask:      downloadRef(sess.ID, maskName),
	}

	if returnRGBA {
		original, err := os.ReadFile(sess.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read session image: %w", err)
		}
		rgba, err := utils.CompositeAlpha(original, bestMask)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(sess.WorkDir, "rgba_output.png"), rgba, 0644); err != nil {
			return nil, fmt.Errorf("failed to save rgba artifact: %w", err)
		}
		resp.RGBAImage = downloadRef(sess.ID, "rgba_output.png")
	}

	return resp, nil
}

// predict 公共预测路径，成功时返回持锁的会话，由调用方负责解锁
func (s *SegmentService) predict(ctx context.Context, sessionID string, prompt *model.PredictPrompt, multimask bool) (*Session, *BackendPredictResult, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, sessionID)
	}

	if len(prompt.PointCoords) > 0 && len(prompt.PointLabels) > 0 &&
		len(prompt.PointCoords) != len(prompt.PointLabels) {
		return nil, nil, fmt.Errorf("%w: point_coords and point_labels length mismatch (%d vs %d)",
			model.ErrValidation, len(prompt.PointCoords), len(prompt.PointLabels))
	}

	sess.Lock()

	req := &BackendPredictRequest{
		EmbeddingRef:    sess.EmbeddingRef,
		PointCoords:     prompt.PointCoords,
		PointLabels:     prompt.PointLabels,
		Box:             prompt.Box,
		MultimaskOutput: multimask,
	}
	// 没有历史预测时静默忽略 use_previous_mask，不算错误
	if prompt.UsePreviousMask && sess.HasPrediction() {
		req.MaskInput = sess.BestLogits()
	}

	result, err := s.backend.Predict(ctx, req)
	if err != nil {
		sess.Unlock()
		return nil, nil, err
	}
	if len(result.Masks) == 0 || len(result.Masks) != len(result.Scores) {
		sess.Unlock()
		return nil, nil, fmt.Errorf("%w: empty prediction result", model.ErrMalformedBackend)
	}

	sortPrediction(result)
	sess.SetPrediction(result.Logits, result.Scores)

	return sess, result, nil
}

// DeleteSession 结束会话，幂等：不存在的会话同样返回成功
func (s *SegmentService) DeleteSession(sessionID string) *model.DeleteSessionResponse {
	removed := s.store.Delete(sessionID)

	msg := "会话已删除"
	if !removed {
		msg = "会话不存在或已删除"
	}
	return &model.DeleteSessionResponse{
		Success: true,
		Removed: removed,
		Message: msg,
	}
}

// ArtifactPath 解析制品下载路径，拒绝目录穿越
func (s *SegmentService) ArtifactPath(sessionID, fileName string) (string, error) {
	if filepath.Base(sessionID) != sessionID || filepath.Base(fileName) != fileName {
		return "", fmt.Errorf("%w: invalid artifact reference", model.ErrValidation)
	}

	path := filepath.Join(s.cfg.Storage.DataDir, sessionID, fileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: artifact %s/%s", model.ErrSessionNotFound, sessionID, fileName)
	}
	return path, nil
}

// Segment3D 网格部件分割：上传 GLB，二段拉取分割结果
func (s *SegmentService) Segment3D(ctx context.Context, glbData []byte) ([]byte, error) {
	if len(glbData) == 0 {
		return nil, fmt.Errorf("%w: empty glb payload", model.ErrValidation)
	}

	artifactPath, err := s.seg3d.Segment(ctx, glbData)
	if err != nil {
		return nil, err
	}
	return s.seg3d.Download(ctx, artifactPath)
}

// ActiveSessions 活跃会话数
func (s *SegmentService) ActiveSessions() int {
	return s.store.Len()
}

// Healthy 分割模型是否已加载
func (s *SegmentService) Healthy(ctx context.Context) bool {
	return s.backend.Healthy(ctx)
}

// Wipe 进程退出时清空全部会话
func (s *SegmentService) Wipe() {
	s.store.Wipe()
}

func downloadRef(sessionID, name string) string {
	return fmt.Sprintf("/segment/2d/download/%s/%s", sessionID, name)
}

// sortPrediction 按分数降序重排 masks/scores/logits
// 最佳 mask 恒为下标 0，与后端返回顺序无关
func sortPrediction(r *BackendPredictResult) {
	idx := make([]int, len(r.Scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return r.Scores[idx[a]] > r.Scores[idx[b]]
	})

	masks := make([][]byte, len(idx))
	scores := make([]float64, len(idx))
	logits := make([][]byte, len(idx))
	for i, j := range idx {
		masks[i] = r.Masks[j]
		scores[i] = r.Scores[j]
		logits[i] = r.Logits[j]
	}
	r.Masks = masks
	r.Scores = scores
	r.Logits = logits
}
