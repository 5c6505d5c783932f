package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ShapeKind 도형 타입별 내용. 기하 엔진은 {id,x,y,width,height}만 보고
// 나머지는 여기 담긴다.
type ShapeKind interface {
	ShapeType() ShapeType
}

// RectKind 사각형
type RectKind struct {
	Label string `json:"label,omitempty"`
	Fill  string `json:"fill,omitempty"`
}

// EllipseKind 타원
type EllipseKind struct {
	Label string `json:"label,omitempty"`
	Fill  string `json:"fill,omitempty"`
}

// TextKind 텍스트 블록. Content는 리치 텍스트 에디터 원본 (불투명)
type TextKind struct {
	Text    string          `json:"text,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ImageKind 이미지
type ImageKind struct {
	Alt string `json:"alt,omitempty"`
}

// TableKind 표
type TableKind struct {
	Rows [][]string `json:"rows,omitempty"`
}

// Attachment 카드 첨부 파일
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CardKind 카드 (세부 종류는 Shape.Subtype)
type CardKind struct {
	Subtype     CardSubtype     `json:"-"`
	Title       string          `json:"title,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

func (RectKind) ShapeType() ShapeType    { return ShapeRect }
func (EllipseKind) ShapeType() ShapeType { return ShapeEllipse }
func (TextKind) ShapeType() ShapeType    { return ShapeText }
func (ImageKind) ShapeType() ShapeType   { return ShapeImage }
func (TableKind) ShapeType() ShapeType   { return ShapeTable }
func (CardKind) ShapeType() ShapeType    { return ShapeCard }

func emptyKind(t ShapeType, subtype CardSubtype) ShapeKind {
	switch t {
	case ShapeEllipse:
		return &EllipseKind{}
	case ShapeText:
		return &TextKind{}
	case ShapeImage:
		return &ImageKind{}
	case ShapeTable:
		return &TableKind{}
	case ShapeCard:
		return &CardKind{Subtype: subtype}
	default:
		return &RectKind{}
	}
}

// Kind Payload를 타입별 내용으로 디코드. 깨진 payload는 빈 내용으로 취급
func (s *Shape) Kind() ShapeKind {
	k := emptyKind(s.Type, s.Subtype)
	if len(s.Payload) == 0 {
		return k
	}
	if err := json.Unmarshal(s.Payload, k); err != nil {
		return emptyKind(s.Type, s.Subtype)
	}
	return k
}

// SetKind 내용을 Payload로 인코드하고 타입/세부 종류를 맞춘다
func (s *Shape) SetKind(k ShapeKind) error {
	raw, err := json.Marshal(k)
	if err != nil {
		return err
	}
	s.Type = k.ShapeType()
	switch card := k.(type) {
	case CardKind:
		s.Subtype = card.Subtype
	case *CardKind:
		s.Subtype = card.Subtype
	}
	s.Payload = datatypes.JSON(raw)
	return nil
}

// Label 렌더링용 대표 텍스트
func (s *Shape) Label() string {
	switch k := s.Kind().(type) {
	case *RectKind:
		return k.Label
	case *EllipseKind:
		return k.Label
	case *TextKind:
		return k.Text
	case *ImageKind:
		return k.Alt
	case *CardKind:
		return k.Title
	case *TableKind:
		if len(k.Rows) > 0 && len(k.Rows[0]) > 0 {
			return k.Rows[0][0]
		}
	}
	return ""
}

// Clone 깊은 복사 (Payload 포함)
func (s Shape) Clone() Shape {
	if s.Payload != nil {
		s.Payload = append(datatypes.JSON(nil), s.Payload...)
	}
	return s
}
