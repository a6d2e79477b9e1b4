package service

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidRegion 笔画包围盒面积为零或完全落在图像之外
	ErrInvalidRegion = errors.New("invalid cut region")
	// ErrOracleFailure 分割算法内部失败
	ErrOracleFailure = errors.New("segmentation failed")
	// ErrCutInProgress 当前会话已有抠图在执行
	ErrCutInProgress = errors.New("cut already in progress")

	ErrEmptyStroke     = errors.New("stroke is empty")
	ErrNoPhoto         = errors.New("no working photo loaded")
	ErrQueueFull       = errors.New("processing queue is full")
	ErrSessionNotFound = errors.New("session not found")
)
