package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TIANLI0/StrokeCut/model"
	"github.com/TIANLI0/StrokeCut/service"
	"github.com/TIANLI0/StrokeCut/utils"
)

// ArtifactLoader 读取已保存的抠图，未找到返回 nil, nil
type ArtifactLoader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

type CutoutHandler struct {
	redisService *service.RedisService
	loaders      []ArtifactLoader
}

// NewCutoutHandler 按顺序依次尝试 loaders；redisService 为空时不查询结果缓存
func NewCutoutHandler(redis *service.RedisService, loaders ...ArtifactLoader) *CutoutHandler {
	return &CutoutHandler{
		redisService: redis,
		loaders:      loaders,
	}
}

// Cutout 根据缓存键返回抠图PNG
func (h *CutoutHandler) Cutout(c *gin.Context) {
	key := strings.TrimSuffix(c.Param("key"), ".png")
	if key == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "key参数缺失",
		})
		return
	}

	for _, loader := range h.loaders {
		data, err := loader.Load(c.Request.Context(), key+".png")
		if err != nil {
			utils.Logger.Warn("failed to load cutout", zap.String("key", key), zap.Error(err))
			continue
		}
		if data != nil {
			c.Data(http.StatusOK, "image/png", data)
			return
		}
	}

	c.JSON(http.StatusNotFound, model.ErrorResponse{
		Success: false,
		Message: "未找到该抠图",
	})
}

// CutResult 根据缓存键获取抠图结果
func (h *CutoutHandler) CutResult(c *gin.Context) {
	if h.redisService == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: "缓存不可用",
		})
		return
	}

	key := c.Param("key")
	result, err := h.redisService.GetCutResult(c.Request.Context(), key)
	if err != nil {
		utils.Logger.Error("failed to get cut result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该抠图结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "查询成功",
		Data:    result,
	})
}
