package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/between2058/Phidias/model"
)

// LLM 即使被明确要求"ONLY valid JSON"也可能把 JSON 包在散文或代码块里，
// 所以按梯度逐级尝试提取，第一个成功的结果生效

var fenceRe = regexp.MustCompile("```(?:[a-zA-Z]+)?\\s*([\\s\\S]*?)\\s*```")

// ExtractJSON 从自由文本中提取 JSON 对象：
// 1. 整段文本直接解析
// 2. 第一个代码块（带或不带语言标记）
// 3. 第一个 { 到最后一个 } 之间的子串
// 全部失败返回 ErrParseFailure
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)

	if raw, ok := tryParse(trimmed); ok {
		return raw, nil
	}

	if m := fenceRe.FindStringSubmatch(trimmed); len(m) > 1 {
		if raw, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return raw, nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if raw, ok := tryParse(trimmed[start : end+1]); ok {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("%w: no JSON found in model output", model.ErrParseFailure)
}

// ExtractObject 提取 JSON 并反序列化到 v
func ExtractObject(text string, v interface{}) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrParseFailure, err)
	}
	return nil
}

// ExtractList 从自由文本中提取字符串列表
// JSON 梯度失败后退回逗号/换行分词清洗，仍为空则返回单个默认类别，
// 枚举类调用不允许失败
func ExtractList(text string) []string {
	trimmed := strings.TrimSpace(text)

	if items, ok := tryParseList(trimmed); ok {
		return items
	}

	if m := fenceRe.FindStringSubmatch(trimmed); len(m) > 1 {
		if items, ok := tryParseList(strings.TrimSpace(m[1])); ok {
			return items
		}
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		if items, ok := tryParseList(trimmed[start : end+1]); ok {
			return items
		}
	}

	// 保守分词：仅当文本确实是逗号分隔列表时才拆分清洗
	cleaned := fenceRe.ReplaceAllString(trimmed, "$1")
	if strings.Contains(cleaned, ",") {
		var items []string
		for _, tok := range strings.FieldsFunc(cleaned, func(r rune) bool {
			return r == ',' || r == '\n'
		}) {
			tok = strings.Trim(tok, " \t\"'`[]-*.")
			if tok == "" || len(tok) > 40 || strings.ContainsAny(tok, "{}:") {
				continue
			}
			items = append(items, tok)
		}
		if len(items) > 0 {
			return items
		}
	}

	return []string{"Main"}
}

func tryParse(s string) (json.RawMessage, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

func tryParseList(s string) ([]string, bool) {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}
