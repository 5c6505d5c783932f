package model

import (
	"time"

	"coaching-backend/internal/geometry"

	"gorm.io/datatypes"
)

// User 사용자
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname   string    `gorm:"type:varchar(100);not null" json:"nickname"`
	ProfileImg *string   `gorm:"type:text" json:"profile_img,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Workspaces []WorkspaceMember `gorm:"foreignKey:UserID" json:"workspaces,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Workspace 코칭 프로그램 단위 워크스페이스 (스타트업 팀)
type Workspace struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	OwnerID   int64     `gorm:"not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Owner   User              `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members []WorkspaceMember `gorm:"foreignKey:WorkspaceID" json:"members,omitempty"`
	Boards  []Board           `gorm:"foreignKey:WorkspaceID" json:"boards,omitempty"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceMember 워크스페이스 멤버
type WorkspaceMember struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkspaceID int64     `gorm:"not null;index" json:"workspace_id"`
	UserID      int64     `gorm:"not null;index" json:"user_id"`
	Status      string    `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"` // PENDING, ACTIVE, LEFT
	JoinedAt    time.Time `gorm:"autoCreateTime" json:"joined_at"`

	// Relations
	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}

// Board 캔버스 보드 (가치 제안 맵, 시장 세분화, 칸반 등)
type Board struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkspaceID int64     `gorm:"not null;index" json:"workspace_id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	Kind        BoardKind `gorm:"type:varchar(30);not null;default:'freeform'" json:"kind"`
	CreatedBy   int64     `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Workspace   Workspace    `gorm:"foreignKey:WorkspaceID" json:"-"`
	Shapes      []Shape      `gorm:"foreignKey:BoardID" json:"shapes,omitempty"`
	Connections []Connection `gorm:"foreignKey:BoardID" json:"connections,omitempty"`
}

func (Board) TableName() string {
	return "boards"
}

// Shape 캔버스 위의 도형. 좌표/크기는 월드 좌표계 기준
type Shape struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BoardID   int64          `gorm:"not null;index" json:"board_id"`
	Type      ShapeType      `gorm:"type:varchar(20);not null" json:"type"`
	Subtype   CardSubtype    `gorm:"type:varchar(30)" json:"subtype,omitempty"`
	X         float64        `gorm:"not null" json:"x"`
	Y         float64        `gorm:"not null" json:"y"`
	Width     float64        `gorm:"not null" json:"width"`
	Height    float64        `gorm:"not null" json:"height"`
	ZIndex    int            `gorm:"default:0" json:"z_index"`
	Payload   datatypes.JSON `json:"payload,omitempty"` // 타입별 내용 (ShapeKind)
	IsExample bool           `gorm:"default:false" json:"is_example"`

	// 첨부 업로드 상태
	Uploading  bool    `gorm:"default:false" json:"uploading"`
	Progress   float64 `gorm:"default:0" json:"progress"`
	URL        string  `gorm:"type:text" json:"url,omitempty"`
	PreviewURL string  `gorm:"type:text" json:"preview_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Shape) TableName() string {
	return "board_shapes"
}

// Bounds 도형의 경계 사각형
func (s Shape) Bounds() geometry.Rect {
	return geometry.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

// SetBounds 경계 사각형 적용
func (s *Shape) SetBounds(r geometry.Rect) {
	s.X, s.Y, s.Width, s.Height = r.X, r.Y, r.Width, r.Height
}

// Connection 두 도형 사이의 방향성 연결선. 앵커는 각 도형 크기 기준 상대 좌표
type Connection struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BoardID     int64           `gorm:"not null;index" json:"board_id"`
	FromShapeID string          `gorm:"type:varchar(36);not null;index" json:"from_shape_id"`
	ToShapeID   string          `gorm:"type:varchar(36);not null;index" json:"to_shape_id"`
	FromAnchor  geometry.Anchor `gorm:"embedded;embeddedPrefix:from_anchor_" json:"from_anchor"`
	ToAnchor    geometry.Anchor `gorm:"embedded;embeddedPrefix:to_anchor_" json:"to_anchor"`
	FromSide    geometry.Side   `gorm:"type:varchar(10)" json:"from_side,omitempty"`
	ToSide      geometry.Side   `gorm:"type:varchar(10)" json:"to_side,omitempty"`
	Style       ConnectionStyle `gorm:"type:varchar(20);default:'orthogonal'" json:"style"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Connection) TableName() string {
	return "board_connections"
}

// ResolvedFromSide 저장된 side가 없으면 앵커에서 계산
func (c Connection) ResolvedFromSide() geometry.Side {
	if c.FromSide.Valid() {
		return c.FromSide
	}
	return geometry.SideFromAnchor(c.FromAnchor)
}

// ResolvedToSide 저장된 side가 없으면 앵커에서 계산
func (c Connection) ResolvedToSide() geometry.Side {
	if c.ToSide.Valid() {
		return c.ToSide
	}
	return geometry.SideFromAnchor(c.ToAnchor)
}

// Touches 연결선이 주어진 도형 중 하나를 참조하는지 확인
func (c Connection) Touches(ids map[string]struct{}) bool {
	_, from := ids[c.FromShapeID]
	_, to := ids[c.ToShapeID]
	return from || to
}

// Key 문서 컬렉션 키
func (s Shape) Key() string { return s.ID }

// Key 문서 컬렉션 키
func (c Connection) Key() string { return c.ID }
