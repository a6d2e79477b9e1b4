package model

// Point 图像坐标系中的点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CutResult 一次抠图的结果
type CutResult struct {
	Key          string  `json:"key"`
	SessionID    string  `json:"session_id"`
	Region       BBox    `json:"region"`
	Outline      []Point `json:"outline"`
	OpaquePixels int     `json:"opaque_pixels"`
	Artifact     string  `json:"artifact"`
	DurationMS   int64   `json:"duration_ms"`
	Timestamp    int64   `json:"timestamp"`
}

// SessionInfo 会话信息
type SessionInfo struct {
	ID       string `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	PhotoMD5 string `json:"photo_md5"`
	State    string `json:"state"`
}

// StrokePointRequest 笔画起点/终点
type StrokePointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePointsRequest 笔画中间点
type StrokePointsRequest struct {
	Points []Point `json:"points" binding:"required"`
}

// Response 通用响应
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
