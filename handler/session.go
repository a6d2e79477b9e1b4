package handler

import (
	"context"
	"image/png"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/TIANLI0/StrokeCut/model"
	"github.com/TIANLI0/StrokeCut/service"
	"github.com/TIANLI0/StrokeCut/utils"
)

// Info 查询会话
func (h *SessionHandler) Info(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "查询成功", Data: session.Info()})
}

// BeginStroke 笔画按下
func (h *SessionHandler) BeginStroke(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req model.StrokePointRequest
	if !bind(c, &req) {
		return
	}
	if err := session.BeginStroke(model.Point{X: req.X, Y: req.Y}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "笔画已开始"})
}

// AppendPoints 笔画移动
func (h *SessionHandler) AppendPoints(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req model.StrokePointsRequest
	if !bind(c, &req) {
		return
	}
	if err := session.AppendPoints(req.Points...); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "已追加"})
}

// EndStroke 笔画抬起，追加终点后在后台开始抠图
func (h *SessionHandler) EndStroke(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req model.StrokePointRequest
	if !bind(c, &req) {
		return
	}
	if err := session.AppendPoints(model.Point{X: req.X, Y: req.Y}); err != nil {
		writeError(c, err)
		return
	}

	outcome := h.pipeline.Submit(context.Background(), session)
	select {
	case o := <-outcome:
		// Submit 在占用会话失败时同步返回
		if o.Err != nil {
			writeError(c, o.Err)
			return
		}
		c.JSON(http.StatusOK, model.Response{Success: true, Message: "抠图完成", Data: o.Result})
	default:
		c.JSON(http.StatusAccepted, model.Response{Success: true, Message: "抠图处理中"})
	}
}

// Cut 显式触发抠图并等待结果
func (h *SessionHandler) Cut(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := h.pipeline.Cut(c.Request.Context(), session)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "抠图完成", Data: result})
}

// ClearTarget 清除选区
func (h *SessionHandler) ClearTarget(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.ClearTarget(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "选区已清除"})
}

// Result 最近一次抠图结果
func (h *SessionHandler) Result(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	result := session.Result()
	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "尚无抠图结果",
		})
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "查询成功", Data: result})
}

// Overlay 当前蚂蚁线帧，空闲时返回 204
func (h *SessionHandler) Overlay(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frame := session.Animator().Frame()
	if frame == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, frame); err != nil {
		utils.Logger.Warn("failed to encode overlay", zap.String("session", session.ID), zap.Error(err))
	}
}

// Delete 关闭会话
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Response{Success: true, Message: "会话已关闭"})
}

func (h *SessionHandler) session(c *gin.Context) (*service.Session, bool) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return session, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求参数错误",
			Error:   err.Error(),
		})
		return false
	}
	return true
}

// writeError 把流水线错误映射为HTTP状态码
func writeError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "处理失败"
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		status, message = http.StatusNotFound, "会话不存在"
	case errors.Is(err, service.ErrInvalidRegion):
		status, message = http.StatusBadRequest, "选区无效"
	case errors.Is(err, service.ErrEmptyStroke):
		status, message = http.StatusBadRequest, "尚未绘制笔画"
	case errors.Is(err, service.ErrNoPhoto):
		status, message = http.StatusBadRequest, "尚未加载照片"
	case errors.Is(err, service.ErrCutInProgress):
		status, message = http.StatusConflict, "抠图处理中，请稍后重试"
	case errors.Is(err, service.ErrQueueFull):
		status, message = http.StatusServiceUnavailable, "处理队列已满，请稍后重试"
	case errors.Is(err, service.ErrOracleFailure):
		message = "图片处理失败"
	}

	if status >= http.StatusInternalServerError {
		utils.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
