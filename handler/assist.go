package handler

import (
	"fmt"
	"net/http"

	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/service"
	"github.com/gin-gonic/gin"
)

type AssistHandler struct {
	svc *service.AssistService
}

func NewAssistHandler(svc *service.AssistService) *AssistHandler {
	return &AssistHandler{svc: svc}
}

// Rename 部件重命名，失败返回哨兵标签，永不报错
func (h *AssistHandler) Rename(c *gin.Context) {
	var req model.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	name := h.svc.RenamePart(c.Request.Context(), req.Image, req.Prompt)
	c.JSON(http.StatusOK, model.RenameResponse{Name: name})
}

// Classify 按封闭类别表分类
func (h *AssistHandler) Classify(c *gin.Context) {
	var req model.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	category, err := h.svc.ClassifyPart(c.Request.Context(), req.Image, req.Categories)
	if err != nil {
		fail(c, "分类失败", err)
		return
	}
	c.JSON(http.StatusOK, model.ClassifyResponse{Category: category})
}

// Analyze 开放式部件枚举
func (h *AssistHandler) Analyze(c *gin.Context) {
	var req model.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	categories, err := h.svc.AnalyzeParts(c.Request.Context(), req.Image, req.ObjectName)
	if err != nil {
		fail(c, "部件枚举失败", err)
		return
	}
	c.JSON(http.StatusOK, model.AnalyzeResponse{Categories: categories})
}

// Group 部件分组，提取失败向上抛出
func (h *AssistHandler) Group(c *gin.Context) {
	var req model.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "请求体不合法", fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	groups, err := h.svc.GroupParts(c.Request.Context(), req.Parts, req.Prompt)
	if err != nil {
		fail(c, "分组失败", err)
		return
	}
	c.JSON(http.StatusOK, model.GroupResponse{Groups: groups})
}
