package utils

import (
	"github.com/google/uuid"
)

// GenerateID 生成会话/请求 ID
func GenerateID() string {
	return uuid.NewString()
}
