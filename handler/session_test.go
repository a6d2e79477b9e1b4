package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/TIANLI0/StrokeCut/config"
	"github.com/TIANLI0/StrokeCut/model"
	"github.com/TIANLI0/StrokeCut/service"
)

// promoteOracle 把可能前景判为前景，其余判为背景
type promoteOracle struct{}

func (promoteOracle) Refine(_ gocv.Mat, mask *gocv.Mat, _ image.Rectangle, _ int) error {
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			switch service.Label(mask.GetUCharAt(y, x)) {
			case service.LabelProbableForeground:
				mask.SetUCharAt(y, x, uint8(service.LabelForeground))
			case service.LabelProbableBackground:
				mask.SetUCharAt(y, x, uint8(service.LabelBackground))
			}
		}
	}
	return nil
}

// blockingOracle 在 release 关闭前阻塞
type blockingOracle struct {
	release chan struct{}
}

func (o *blockingOracle) Refine(img gocv.Mat, mask *gocv.Mat, rect image.Rectangle, iterations int) error {
	<-o.release
	return promoteOracle{}.Refine(img, mask, rect, iterations)
}

type testServer struct {
	router   *gin.Engine
	sessions *service.SessionManager
	store    *service.FileStore
}

func newTestServer(t *testing.T, oracle service.Oracle) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.GrabCut.OutputDir = t.TempDir()
	cfg.GrabCut.DebugDir = t.TempDir()

	store, err := service.NewFileStore(cfg.GrabCut.OutputDir)
	require.NoError(t, err)

	sessions := service.NewSessionManager(service.AnimatorOptionsFromConfig(&cfg.Animator), clock.NewMock())
	t.Cleanup(sessions.Close)
	pipeline := service.NewPipeline(service.OptionsFromConfig(&cfg.GrabCut), oracle, store)

	r := gin.New()
	Register(r.Group("/api/v1"), NewSessionHandler(cfg, sessions, pipeline), NewCutoutHandler(nil, store))
	return &testServer{router: r, sessions: sessions, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func photoUpload(t *testing.T, method, path, contentType string, width, height int) *http.Request {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 120, 200, 0), height, width, gocv.MatTypeCV8UC3)
	defer img.Close()
	data, err := service.EncodePNG(img)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeInfo(t *testing.T, w *httptest.ResponseRecorder) model.SessionInfo {
	t.Helper()
	var resp struct {
		Success bool              `json:"success"`
		Data    model.SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) model.CutResult {
	t.Helper()
	var resp struct {
		Data model.CutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func (s *testServer) createSession(t *testing.T, width, height int) string {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, photoUpload(t, http.MethodPost, "/api/v1/sessions", "image/png", width, height))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	info := decodeInfo(t, w)
	assert.Equal(t, width, info.Width)
	assert.Equal(t, height, info.Height)
	assert.Equal(t, "idle", info.State)
	return info.ID
}

func (s *testServer) stroke(t *testing.T, id string, points ...model.Point) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stroke/begin", model.StrokePointRequest{X: points[0].X, Y: points[0].Y})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stroke/points", model.StrokePointsRequest{Points: points[1:]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

var squarePoints = []model.Point{{X: 40, Y: 40}, {X: 160, Y: 40}, {X: 160, Y: 160}, {X: 40, Y: 160}}

func TestCutFlow(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})
	id := srv.createSession(t, 200, 200)

	w := srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/overlay", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/result", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	srv.stroke(t, id, squarePoints...)
	w = srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/cut", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeResult(t, w)
	assert.Equal(t, id, result.SessionID)
	assert.Equal(t, model.BBox{X: 25, Y: 25, Width: 150, Height: 150}, result.Region)
	assert.Positive(t, result.OpaquePixels)
	assert.NotEmpty(t, result.Outline)

	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/result", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, result.Key, decodeResult(t, w).Key)

	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, "animating", decodeInfo(t, w).State)

	w = srv.do(t, http.MethodGet, "/api/v1/cutouts/"+result.Key+".png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), w.Body.Bytes()[:4])

	// 渲染一帧后 overlay 返回 PNG
	session, err := srv.sessions.Get(id)
	require.NoError(t, err)
	session.Animator().Tick()
	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/overlay", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/target", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/overlay", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEndStrokeCutsInBackground(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})
	id := srv.createSession(t, 200, 200)

	srv.stroke(t, id, squarePoints[:3]...)
	w := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stroke/end", model.StrokePointRequest{X: 40, Y: 160})
	require.Contains(t, []int{http.StatusOK, http.StatusAccepted}, w.Code, w.Body.String())

	assert.Eventually(t, func() bool {
		w := srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/result", nil)
		return w.Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
}

func TestZeroAreaStrokeIsBadRequest(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})
	id := srv.createSession(t, 100, 100)

	srv.stroke(t, id, model.Point{X: 10, Y: 50}, model.Point{X: 90, Y: 50})
	w := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/cut", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCutWithoutStroke(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})
	id := srv.createSession(t, 100, 100)

	w := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/cut", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stroke/points", model.StrokePointsRequest{Points: []model.Point{{X: 1, Y: 1}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBusySessionIsConflict(t *testing.T) {
	oracle := &blockingOracle{release: make(chan struct{})}
	srv := newTestServer(t, oracle)
	id := srv.createSession(t, 200, 200)

	srv.stroke(t, id, squarePoints[:3]...)
	w := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stroke/end", model.StrokePointRequest{X: 40, Y: 160})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, "/api/v1/sessions/" + id + "/stroke/begin", model.StrokePointRequest{X: 1, Y: 1}},
		{http.MethodPost, "/api/v1/sessions/" + id + "/cut", nil},
		{http.MethodDelete, "/api/v1/sessions/" + id + "/target", nil},
	} {
		w := srv.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusConflict, w.Code, tc.path)
	}

	close(oracle.release)
	assert.Eventually(t, func() bool {
		w := srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/result", nil)
		return w.Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/sessions/missing"},
		{http.MethodDelete, "/api/v1/sessions/missing"},
		{http.MethodPost, "/api/v1/sessions/missing/cut"},
		{http.MethodGet, "/api/v1/sessions/missing/overlay"},
	} {
		w := srv.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
	}
}

func TestReplacePhoto(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})
	id := srv.createSession(t, 100, 100)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, photoUpload(t, http.MethodPut, "/api/v1/sessions/"+id+"/photo", "image/png", 64, 48))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	info := decodeInfo(t, w)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
}

func TestUploadRejectsType(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, photoUpload(t, http.MethodPost, "/api/v1/sessions", "image/gif", 10, 10))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, srv.sessions.Len())
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})
	id := srv.createSession(t, 50, 50)

	w := srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, srv.sessions.Len())

	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCutoutNotFound(t *testing.T) {
	srv := newTestServer(t, promoteOracle{})

	w := srv.do(t, http.MethodGet, "/api/v1/cutouts/unknown.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/cuts/unknown", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
