package handler

import (
	"fmt"
	"net/http"

	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/service"
	"github.com/gin-gonic/gin"
)

type GenerateHandler struct {
	svc *service.GenerateService
}

func NewGenerateHandler(svc *service.GenerateService) *GenerateHandler {
	return &GenerateHandler{svc: svc}
}

// Text3D 文字生成 3D
func (h *GenerateHandler) Text3D(c *gin.Context) {
	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	if req.Prompt == "" {
		fail(c, "prompt 缺失", fmt.Errorf("%w: prompt is required", model.ErrValidation))
		return
	}
	// 文字端点只接受文字输入
	req.ImageURL = ""
	req.Images = nil

	resp, err := h.svc.Generate(c.Request.Context(), &req)
	if err != nil {
		fail(c, "生成失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Image3D 图片生成 3D，>=2 张图自动选择多图模式
func (h *GenerateHandler) Image3D(c *gin.Context) {
	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	// 图片端点只接受图片输入
	req.Prompt = ""

	resp, err := h.svc.Generate(c.Request.Context(), &req)
	if err != nil {
		fail(c, "生成失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SAM3D 原图 + 去背图生成 3D
func (h *GenerateHandler) SAM3D(c *gin.Context) {
	var req model.SAM3DRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	resp, err := h.svc.GenerateSAM3D(c.Request.Context(), &req)
	if err != nil {
		fail(c, "生成失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SAM3DBatch 原图 + 多张去背图批次生成
func (h *GenerateHandler) SAM3DBatch(c *gin.Context) {
	var req model.SAM3DBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	resp, err := h.svc.GenerateSAM3DBatch(c.Request.Context(), &req)
	if err != nil {
		fail(c, "生成失败", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
