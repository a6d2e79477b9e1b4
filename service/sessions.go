package service

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/TIANLI0/StrokeCut/utils"
)

// SessionManager 管理会话以及每个会话的蚂蚁线渲染循环
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     AnimatorOptions
	clock    clock.Clock
	logger   *zap.Logger
}

func NewSessionManager(opts AnimatorOptions, clk clock.Clock) *SessionManager {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		opts:     opts,
		clock:    clk,
		logger:   utils.Named("sessions"),
	}
}

// Create 以 photo 创建会话并启动其渲染循环，会话接管 photo
func (m *SessionManager) Create(photo gocv.Mat, md5 string) (*Session, error) {
	animator := NewAnimator(m.opts, m.clock)
	s := NewSession(utils.NewSessionID(), animator)
	if err := s.SetPhoto(photo, md5); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		animator.Run(ctx)
	}()
	s.stop = func() {
		cancel()
		<-done
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created",
		zap.String("session", s.ID),
		zap.Int("width", photo.Cols()),
		zap.Int("height", photo.Rows()))
	return s, nil
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove 关闭会话
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	m.logger.Info("session closed", zap.String("session", id))
	return nil
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close 关闭全部会话
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
