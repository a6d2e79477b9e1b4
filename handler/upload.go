package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/TIANLI0/StrokeCut/config"
	"github.com/TIANLI0/StrokeCut/model"
	"github.com/TIANLI0/StrokeCut/service"
	"github.com/TIANLI0/StrokeCut/utils"
)

type SessionHandler struct {
	cfg      *config.Config
	sessions *service.SessionManager
	pipeline *service.Pipeline
}

func NewSessionHandler(cfg *config.Config, sessions *service.SessionManager, pipeline *service.Pipeline) *SessionHandler {
	return &SessionHandler{
		cfg:      cfg,
		sessions: sessions,
		pipeline: pipeline,
	}
}

// Create 上传工作照片并创建会话
func (h *SessionHandler) Create(c *gin.Context) {
	photo, md5, ok := h.readPhoto(c)
	if !ok {
		return
	}

	session, err := h.sessions.Create(photo, md5)
	if err != nil {
		photo.Close()
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.Response{
		Success: true,
		Message: "会话已创建",
		Data:    session.Info(),
	})
}

// ReplacePhoto 更换会话的工作照片，蚂蚁线回到空闲状态
func (h *SessionHandler) ReplacePhoto(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	photo, md5, ok := h.readPhoto(c)
	if !ok {
		return
	}

	if err := session.SetPhoto(photo, md5); err != nil {
		photo.Close()
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "照片已更换",
		Data:    session.Info(),
	})
}

// readPhoto 校验并解码上传的图片，失败时已写入响应
func (h *SessionHandler) readPhoto(c *gin.Context) (gocv.Mat, string, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return gocv.Mat{}, "", false
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return gocv.Mat{}, "", false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return gocv.Mat{}, "", false
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return gocv.Mat{}, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return gocv.Mat{}, "", false
	}

	photo, err := service.DecodePhoto(data, h.cfg.GrabCut.TargetSize)
	if err != nil {
		utils.Logger.Warn("failed to decode photo", zap.String("filename", file.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "图片解码失败",
			Error:   err.Error(),
		})
		return gocv.Mat{}, "", false
	}

	md5 := utils.BytesMD5(data)
	utils.Logger.Info("photo uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size),
		zap.Int("width", photo.Cols()),
		zap.Int("height", photo.Rows()))

	return photo, md5, true
}

func (h *SessionHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
