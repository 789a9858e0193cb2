package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/utils"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// UnknownPartLabel 重命名失败时的哨兵标签，命名是尽力而为，不允许中断工作流
const UnknownPartLabel = "Unknown_Part"

const groupSystemPrompt = `You are an expert 3D model organizer.
Your task is to organize a flat list of 3D parts into named groups.

You MUST return a JSON object mapping group names to lists of part ids:
{"group_name": ["id1", "id2"], ...}

Every part id MUST be assigned to exactly one group.
Do not invent ids that are not in the input.
Return ONLY valid JSON.`

// AssistService 调用 OpenAI 兼容的聊天/视觉模型做部件命名、分类与分组
// BaseURL 取自配置的完整地址，不做任何运行时后缀猜测
type AssistService struct {
	client      *openai.Client
	chatModel   string
	visionModel string
}

func NewAssistService(cfg *config.OpenAIConfig) *AssistService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &AssistService{
		client:      openai.NewClientWithConfig(clientConfig),
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
	}
}

// RenamePart 根据部件截图重命名
// 任何失败都返回哨兵标签而不是错误，调用链不因命名失败而中断
func (s *AssistService) RenamePart(ctx context.Context, imageB64, prompt string) string {
	if prompt == "" {
		prompt = "Name this highlighted 3D part with a short descriptive label. Reply with the name only."
	}

	content, err := s.visionCall(ctx, imageB64, prompt)
	if err != nil {
		utils.Logger.Warn("rename part failed, using sentinel label", zap.Error(err))
		return UnknownPartLabel
	}

	return slugify(content)
}

// ClassifyPart 按封闭类别表分类
// 模型自由文本与候选做大小写无关的子串匹配，无匹配时返回原文，
// 调用方应把未匹配的返回值当作"未分类"而不是错误
func (s *AssistService) ClassifyPart(ctx context.Context, imageB64 string, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", fmt.Errorf("%w: categories are required", model.ErrValidation)
	}

	prompt := fmt.Sprintf(
		"Classify the highlighted part into exactly one of these categories: %s. Reply with the category name only.",
		strings.Join(categories, ", "))

	content, err := s.visionCall(ctx, imageB64, prompt)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(content)
	for _, cat := range categories {
		if strings.Contains(strings.ToLower(answer), strings.ToLower(cat)) {
			return cat, nil
		}
	}
	return answer, nil
}

// AnalyzeParts 开放式部件枚举，提取失败退回默认类别，绝不报解析错误
func (s *AssistService) AnalyzeParts(ctx context.Context, imageB64, objectName string) ([]string, error) {
	if objectName == "" {
		objectName = "this object"
	}

	prompt := fmt.Sprintf(
		"List the distinct part categories of %s visible in this image. Return ONLY a JSON array of strings.",
		objectName)

	content, err := s.visionCall(ctx, imageB64, prompt)
	if err != nil {
		return nil, err
	}

	return utils.ExtractList(content), nil
}

// GroupParts 把扁平部件列表分为命名组
// 完整性与互斥性只通过系统提示词约束，返回结果不做程序化校验
// 提取失败向上抛出 ParseFailure
func (s *AssistService) GroupParts(ctx context.Context, parts []model.PartRef, prompt string) (map[string][]string, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: parts are required", model.ErrValidation)
	}

	data, err := json.Marshal(parts)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = "Organize these parts into logical groups."
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: groupSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("%s\n\nData:\n%s", prompt, data)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty chat response", model.ErrMalformedBackend)
	}

	var groups map[string][]string
	if err := utils.ExtractObject(resp.Choices[0].Message.Content, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// visionCall 单图 + 文字提示的视觉调用
func (s *AssistService) visionCall(ctx context.Context, imageB64, prompt string) (string, error) {
	imageData, err := utils.DecodeImagePayload(imageB64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	dataURL := "data:image/png;base64," + utils.EncodeImagePayload(imageData)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.visionModel,
		MaxTokens: 300,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty chat response", model.ErrMalformedBackend)
	}
	return resp.Choices[0].Message.Content, nil
}

// slugify 空格转下划线、去掉换行
func slugify(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, " ", "_")
}
