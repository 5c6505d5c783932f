package document

import (
	"sync"

	"coaching-backend/internal/model"

	"github.com/redis/go-redis/v9"
)

// Document 보드 하나를 구성하는 공유 컬렉션 쌍
type Document struct {
	BoardID     int64
	Shapes      Collection[model.Shape]
	Connections Collection[model.Connection]
}

// Registry 보드별 Document 하나를 발급하고 프로세스 내 세션끼리 재사용
type Registry struct {
	mu   sync.Mutex
	docs map[int64]*Document
	open func(boardID int64) *Document
}

// NewMemoryRegistry 프로세스 메모리에 문서 보관
func NewMemoryRegistry() *Registry {
	return &Registry{
		docs: make(map[int64]*Document),
		open: func(boardID int64) *Document {
			return &Document{
				BoardID:     boardID,
				Shapes:      NewMemoryCollection[model.Shape](boardID, ShapesCollection),
				Connections: NewMemoryCollection[model.Connection](boardID, ConnectionsCollection),
			}
		},
	}
}

// NewRedisRegistry Redis에 문서 보관 (여러 서버 인스턴스가 같은 보드 공유)
func NewRedisRegistry(client *redis.Client) *Registry {
	return &Registry{
		docs: make(map[int64]*Document),
		open: func(boardID int64) *Document {
			return &Document{
				BoardID:     boardID,
				Shapes:      NewRedisCollection[model.Shape](client, boardID, ShapesCollection),
				Connections: NewRedisCollection[model.Connection](client, boardID, ConnectionsCollection),
			}
		},
	}
}

// Open boardID 문서 반환 (없으면 생성)
func (r *Registry) Open(boardID int64) *Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc, ok := r.docs[boardID]; ok {
		return doc
	}
	doc := r.open(boardID)
	r.docs[boardID] = doc
	return doc
}

// Evict boardID의 프로세스 로컬 핸들 제거
func (r *Registry) Evict(boardID int64) {
	r.mu.Lock()
	delete(r.docs, boardID)
	r.mu.Unlock()
}
