package model

// MemberStatus 멤버 상태
type MemberStatus string

const (
	MemberStatusPending MemberStatus = "PENDING"
	MemberStatusActive  MemberStatus = "ACTIVE"
)

// String 메서드
func (s MemberStatus) String() string {
	return string(s)
}

// BoardKind 보드 종류
type BoardKind string

const (
	BoardKindValueProposition BoardKind = "value_proposition"
	BoardKindMarketSegments   BoardKind = "market_segments"
	BoardKindKanban           BoardKind = "kanban"
	BoardKindFreeform         BoardKind = "freeform"
)

// Valid 허용된 보드 종류인지 확인
func (k BoardKind) Valid() bool {
	switch k {
	case BoardKindValueProposition, BoardKindMarketSegments, BoardKindKanban, BoardKindFreeform:
		return true
	}
	return false
}

// ShapeType 도형 타입 태그
type ShapeType string

const (
	ShapeRect    ShapeType = "rect"
	ShapeEllipse ShapeType = "ellipse"
	ShapeText    ShapeType = "text"
	ShapeImage   ShapeType = "image"
	ShapeTable   ShapeType = "table"
	ShapeCard    ShapeType = "card"
)

func (t ShapeType) String() string {
	return string(t)
}

// Valid 허용된 도형 타입인지 확인
func (t ShapeType) Valid() bool {
	_, ok := defaultSizes[t]
	return ok
}

// CardSubtype 카드 세부 종류 (가치 제안 캔버스 / 시장 세분화 / 칸반)
type CardSubtype string

const (
	CardJob          CardSubtype = "job"
	CardPain         CardSubtype = "pain"
	CardGain         CardSubtype = "gain"
	CardProduct      CardSubtype = "product"
	CardPainReliever CardSubtype = "pain_reliever"
	CardGainCreator  CardSubtype = "gain_creator"
	CardSegment      CardSubtype = "segment"
	CardTask         CardSubtype = "task"
	CardNote         CardSubtype = "note"
)

// ConnectionStyle 연결선 라우팅 스타일
type ConnectionStyle string

const (
	ConnectionOrthogonal ConnectionStyle = "orthogonal"
)

// 도형 최소 크기
const (
	MinShapeWidth  = 40.0
	MinShapeHeight = 75.0
)

var defaultSizes = map[ShapeType][2]float64{
	ShapeRect:    {160, 100},
	ShapeEllipse: {140, 100},
	ShapeText:    {200, 75},
	ShapeImage:   {240, 180},
	ShapeTable:   {320, 200},
	ShapeCard:    {220, 140},
}

// DefaultSize 타입별 기본 크기. 알 수 없는 타입은 사각형 크기
func DefaultSize(t ShapeType) (width, height float64) {
	size, ok := defaultSizes[t]
	if !ok {
		size = defaultSizes[ShapeRect]
	}
	return size[0], size[1]
}
