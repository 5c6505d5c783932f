// Package snapping 연결선 끝점을 가장 가까운 도형 테두리에 붙인다.
// 반경은 화면 픽셀 기준이라 줌과 무관하게 동작한다.
package snapping

import (
	"coaching-backend/internal/geometry"
)

// DefaultRadius 기본 스냅 반경 (화면 픽셀)
const DefaultRadius = 16.0

// Candidate 스냅 후보 도형 (id + 경계)
type Candidate struct {
	ID     string
	Bounds geometry.Rect
}

// Target 스냅 결과
type Target struct {
	ShapeID string          `json:"shapeId"`
	Point   geometry.Point  `json:"point"`
	Side    geometry.Side   `json:"side"`
	Anchor  geometry.Anchor `json:"anchor"`
}

// Engine 커서를 도형 테두리에 스냅 (zero value는 DefaultRadius 사용)
type Engine struct {
	// 화면 픽셀 기준, 줌 배율로 나눠 월드 단위로 변환
	RadiusPx float64
}

// NewEngine Engine 생성
func NewEngine(radiusPx float64) *Engine {
	return &Engine{RadiusPx: radiusPx}
}

// Snap originID를 제외한 후보 중 가장 가까운 테두리 지점 반환
// 반경 안에 없으면 nil. 커서가 도형 안에 있으면 항상 그 도형의 가장 가까운 변에 붙는다
func (e *Engine) Snap(cursor geometry.Point, candidates []Candidate, originID string, scale float64) *Target {
	radius := e.RadiusPx
	if radius <= 0 {
		radius = DefaultRadius
	}
	if scale <= 0 {
		scale = 1
	}
	limit := radius / scale

	var (
		best      *Target
		bestScore float64
		bestEdge  float64
	)
	for _, c := range candidates {
		if c.ID == originID {
			continue
		}
		p, side := geometry.NearestBoundaryPoint(c.Bounds, cursor)
		edge := cursor.Dist(p)

		score := edge
		if c.Bounds.Contains(cursor) {
			score = 0
		}
		if score > limit {
			continue
		}
		if best != nil && (score > bestScore || (score == bestScore && edge >= bestEdge)) {
			continue
		}

		anchor := geometry.AbsoluteToAnchor(c.Bounds, p)
		best = &Target{
			ShapeID: c.ID,
			Point:   p,
			Side:    side,
			Anchor:  anchor,
		}
		bestScore, bestEdge = score, edge
	}
	return best
}
