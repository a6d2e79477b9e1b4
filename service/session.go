package service

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/TIANLI0/StrokeCut/model"
)

// Session 一个用户的交互状态：工作照片、当前笔画和最近一次结果。
// 同一会话同时最多只有一次抠图在执行，执行期间拒绝新的笔画和照片。
type Session struct {
	ID string

	mu       sync.Mutex
	photo    gocv.Mat
	hasPhoto bool
	photoMD5 string
	stroke   []model.Point
	box      BoundingBox
	cutting  bool
	closed   bool
	result   *model.CutResult

	animator *Animator
	stop     func()
}

// cutJob 抠图开始时会话状态的快照
type cutJob struct {
	sessionID string
	photo     gocv.Mat
	photoMD5  string
	points    []model.Point
	box       BoundingBox
}

func NewSession(id string, animator *Animator) *Session {
	return &Session{ID: id, animator: animator}
}

func (s *Session) Animator() *Animator {
	return s.animator
}

// SetPhoto 替换工作照片，会话接管 photo 的所有权
func (s *Session) SetPhoto(photo gocv.Mat, md5 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionNotFound
	}
	if s.cutting {
		return ErrCutInProgress
	}
	if s.hasPhoto {
		s.photo.Close()
	}
	s.photo = photo
	s.hasPhoto = true
	s.photoMD5 = md5
	s.stroke = nil
	s.box = BoundingBox{}
	s.result = nil
	s.animator.Clear()
	s.animator.Resize(image.Pt(photo.Cols(), photo.Rows()))
	return nil
}

// BeginStroke 开始一条新笔画
func (s *Session) BeginStroke(p model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionNotFound
	}
	if s.cutting {
		return ErrCutInProgress
	}
	if !s.hasPhoto {
		return ErrNoPhoto
	}
	s.stroke = []model.Point{p}
	s.box = pointBox(p)
	return nil
}

// AppendPoints 追加笔画点并更新包围盒，重复点原样保留
func (s *Session) AppendPoints(points ...model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cutting {
		return ErrCutInProgress
	}
	if len(s.stroke) == 0 {
		return ErrEmptyStroke
	}
	for _, p := range points {
		s.stroke = append(s.stroke, p)
		s.box = s.box.extend(p)
	}
	return nil
}

// ClearTarget 丢弃当前笔画并停止蚂蚁线
func (s *Session) ClearTarget() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cutting {
		return ErrCutInProgress
	}
	s.stroke = nil
	s.box = BoundingBox{}
	s.animator.Clear()
	return nil
}

func (s *Session) Stroke() ([]model.Point, BoundingBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Point(nil), s.stroke...), s.box
}

func (s *Session) Cutting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cutting
}

func (s *Session) Result() *model.CutResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) Info() model.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := model.SessionInfo{
		ID:       s.ID,
		PhotoMD5: s.photoMD5,
		State:    s.animator.State().String(),
	}
	if s.hasPhoto {
		info.Width = s.photo.Cols()
		info.Height = s.photo.Rows()
	}
	return info
}

func (s *Session) beginCut() (*cutJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionNotFound
	}
	if s.cutting {
		return nil, ErrCutInProgress
	}
	if !s.hasPhoto {
		return nil, ErrNoPhoto
	}
	if len(s.stroke) == 0 {
		return nil, ErrEmptyStroke
	}
	s.cutting = true

	return &cutJob{
		sessionID: s.ID,
		photo:     s.photo,
		photoMD5:  s.photoMD5,
		points:    append([]model.Point(nil), s.stroke...),
		box:       s.box,
	}, nil
}

// finishCut 无论成功与否都清空笔画；仅在成功时记录结果
func (s *Session) finishCut(result *model.CutResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stroke = nil
	s.box = BoundingBox{}
	s.cutting = false
	if result != nil {
		s.result = result
	}
	if s.closed {
		s.releasePhoto()
	}
}

// Close 停止渲染循环并释放工作照片；抠图进行中时照片在抠图结束后释放
func (s *Session) Close() {
	if s.stop != nil {
		s.stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if !s.cutting {
		s.releasePhoto()
	}
}

func (s *Session) releasePhoto() {
	if s.hasPhoto {
		s.photo.Close()
		s.hasPhoto = false
	}
}
