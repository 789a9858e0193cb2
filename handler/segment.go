package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/service"
	"github.com/between2058/Phidias/utils"
	"github.com/gin-gonic/gin"
)

type SegmentHandler struct {
	cfg *config.Config
	svc *service.SegmentService
}

func NewSegmentHandler(cfg *config.Config, svc *service.SegmentService) *SegmentHandler {
	return &SegmentHandler{cfg: cfg, svc: svc}
}

// SetImage 开始交互式分割会话（multipart 上传）
func (h *SegmentHandler) SetImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, "请上传图片文件", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	if file.Size > h.cfg.Storage.MaxUploadSize {
		fail(c, "文件大小超过限制",
			fmt.Errorf("%w: upload size %d exceeds %d", model.ErrValidation, file.Size, h.cfg.Storage.MaxUploadSize))
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, "读取上传文件失败", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, "读取上传文件失败", err)
		return
	}

	resp, err := h.svc.SetImage(c.Request.Context(), data)
	if err != nil {
		fail(c, "设定图片失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Predict 点/框提示分割预测（form 编码）
func (h *SegmentHandler) Predict(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		fail(c, "session_id 缺失", fmt.Errorf("%w: session_id is required", model.ErrValidation))
		return
	}

	prompt, err := parsePrompt(c)
	if err != nil {
		fail(c, "提示参数不合法", err)
		return
	}
	prompt.MultimaskOutput = c.DefaultPostForm("multimask_output", "true") == "true"

	resp, err := h.svc.Predict(c.Request.Context(), sessionID, prompt)
	if err != nil {
		fail(c, "分割预测失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PredictAndApply 分割并返回最佳去背图（form 编码）
func (h *SegmentHandler) PredictAndApply(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		fail(c, "session_id 缺失", fmt.Errorf("%w: session_id is required", model.ErrValidation))
		return
	}

	prompt, err := parsePrompt(c)
	if err != nil {
		fail(c, "提示参数不合法", err)
		return
	}
	returnRGBA := c.DefaultPostForm("return_rgba", "true") == "true"

	resp, err := h.svc.PredictAndApply(c.Request.Context(), sessionID, prompt, returnRGBA)
	if err != nil {
		fail(c, "分割预测失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteSession 结束会话，幂等
func (h *SegmentHandler) DeleteSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.DeleteSession(c.Param("id")))
}

// Download 下载制品字节
func (h *SegmentHandler) Download(c *gin.Context) {
	path, err := h.svc.ArtifactPath(c.Param("id"), c.Param("name"))
	if err != nil {
		fail(c, "找不到文件", err)
		return
	}
	c.FileAttachment(path, c.Param("name"))
}

// Segment3D 网格部件分割，失败直接透出，不降级
func (h *SegmentHandler) Segment3D(c *gin.Context) {
	var req model.Segment3DRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	glbData, err := utils.DecodeImagePayload(req.GLBData)
	if err != nil || len(glbData) == 0 {
		fail(c, "glb_data 不合法", fmt.Errorf("%w: invalid glb_data", model.ErrValidation))
		return
	}

	segmented, err := h.svc.Segment3D(c.Request.Context(), glbData)
	if err != nil {
		fail(c, "网格分割失败", err)
		return
	}

	c.JSON(http.StatusOK, model.Segment3DResponse{
		Status:  "success",
		GLBData: utils.EncodeImagePayload(segmented),
		Message: "分割成功",
	})
}

// parsePrompt 解析 form 中的提示参数，坐标与标签为 JSON 字符串
func parsePrompt(c *gin.Context) (*model.PredictPrompt, error) {
	prompt := &model.PredictPrompt{
		UsePreviousMask: c.DefaultPostForm("use_previous_mask", "false") == "true",
	}

	if raw := c.PostForm("point_coords"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prompt.PointCoords); err != nil {
			return nil, fmt.Errorf("%w: invalid point_coords: %v", model.ErrValidation, err)
		}
	}
	if raw := c.PostForm("point_labels"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prompt.PointLabels); err != nil {
			return nil, fmt.Errorf("%w: invalid point_labels: %v", model.ErrValidation, err)
		}
	}
	if raw := c.PostForm("box"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prompt.Box); err != nil {
			return nil, fmt.Errorf("%w: invalid box: %v", model.ErrValidation, err)
		}
		if len(prompt.Box) != 4 {
			return nil, fmt.Errorf("%w: box expects [x1, y1, x2, y2]", model.ErrValidation)
		}
	}

	return prompt, nil
}
