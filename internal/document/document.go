// Package document 여러 작성자가 동시에 쓰는 공유 보드 문서.
// 보드마다 도형/연결선 두 컬렉션을 가진다. 메모리 백엔드는 뮤텍스 기반
// 마지막 쓰기 우선, Redis 백엔드는 WATCH 낙관적 트랜잭션을 사용한다.
package document

import (
	"context"
	"errors"
)

// Keyed 컬렉션에 저장 가능한 레코드
type Keyed interface {
	Key() string
}

// Op 변경 종류
type Op string

const (
	OpInsert Op = "insert"
	OpPatch  Op = "patch"
	OpDelete Op = "delete"
	OpReset  Op = "reset"
)

// Change 쓰기 완료 후 구독자에게 전달되는 변경 알림
type Change struct {
	BoardID    int64    `json:"board_id"`
	Collection string   `json:"collection"`
	Op         Op       `json:"op"`
	IDs        []string `json:"ids"`
}

// Patch 배치 안의 개별 수정
type Patch[T any] struct {
	ID    string
	Apply func(*T)
}

// Collection 보드 참여자 전원이 공유하는 관찰 가능한 레코드 집합
// 없는 id의 수정/삭제는 no-op
type Collection[T Keyed] interface {
	// List 삽입 순서대로 조회
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, bool, error)
	Insert(ctx context.Context, items ...T) error
	// Patch 레코드 수정 (id가 없으면 false)
	Patch(ctx context.Context, id string, fn func(*T)) (bool, error)
	// BatchPatch 한 번의 쓰기로 일괄 수정, 존재한 id 수 반환
	BatchPatch(ctx context.Context, patches []Patch[T]) (int, error)
	// Delete 삭제 후 존재했던 id 수 반환
	Delete(ctx context.Context, ids ...string) (int, error)
	// Replace 컬렉션 전체 교체 (DB에서 불러올 때 사용)
	Replace(ctx context.Context, items []T) error
	// Subscribe cancel 호출 전까지 변경 알림 구독
	Subscribe(fn func(Change)) (cancel func())
}

// 컬렉션 이름
const (
	ShapesCollection      = "shapes"
	ConnectionsCollection = "connections"
)

var ErrEmptyID = errors.New("document: record has empty id")
