package utils

import (
	"github.com/google/uuid"
)

// GenerateID 生成会话ID
func GenerateID() string {
	return uuid.NewString()
}
