package utils

import (
	"github.com/google/uuid"
)

// NewSessionID 生成会话ID
func NewSessionID() string {
	return uuid.NewString()
}
