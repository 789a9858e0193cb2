package service

import (
	"os"
	"sync"

	"github.com/between2058/Phidias/utils"
	"go.uber.org/zap"
)

// Session 一张已加载图片的交互式分割会话状态
type Session struct {
	ID           string
	WorkDir      string
	ImagePath    string
	Width        int
	Height       int
	EmbeddingRef string // 后端 embedding 句柄，本层不做解释

	// 最近一次预测的原始输出，按分数降序排列，二者始终同批更新
	LastLogits [][]byte
	LastScores []float64

	// 同一会话上的操作串行执行，避免 logits/scores 半更新
	mu sync.Mutex
}

// Lock 锁定会话
func (s *Session) Lock() { s.mu.Lock() }

// Unlock 解锁会话
func (s *Session) Unlock() { s.mu.Unlock() }

// HasPrediction 是否已有预测结果，须在持锁状态下调用
func (s *Session) HasPrediction() bool {
	return len(s.LastLogits) > 0 && len(s.LastScores) > 0
}

// SetPrediction 原子替换最近一次预测输出，须在持锁状态下调用
func (s *Session) SetPrediction(logits [][]byte, scores []float64) {
	s.LastLogits = logits
	s.LastScores = scores
}

// BestLogits 分数最高的 logits（降序存储，恒为第一个），须在持锁状态下调用
func (s *Session) BestLogits() []byte {
	if len(s.LastLogits) == 0 {
		return nil
	}
	return s.LastLogits[0]
}

// SessionStore 会话表，单进程内存态，不持久化
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create 创建会话并登记，id 由调用方生成（工作目录以其命名）
func (st *SessionStore) Create(id, workDir, imagePath, embeddingRef string, width, height int) *Session {
	sess := &Session{
		ID:           id,
		WorkDir:      workDir,
		ImagePath:    imagePath,
		Width:        width,
		Height:       height,
		EmbeddingRef: embeddingRef,
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	return sess
}

// Get 查找会话
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Delete 删除会话并清理工作目录，返回会话此前是否存在
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return false
	}

	if err := os.RemoveAll(sess.WorkDir); err != nil {
		utils.Logger.Warn("failed to remove session dir",
			zap.String("session_id", id),
			zap.Error(err))
	}
	return true
}

// Len 当前活跃会话数
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Wipe 清空全部会话与工作目录，进程退出时调用
func (st *SessionStore) Wipe() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for id, sess := range sessions {
		if err := os.RemoveAll(sess.WorkDir); err != nil {
			utils.Logger.Warn("failed to remove session dir",
				zap.String("session_id", id),
				zap.Error(err))
		}
	}
}
