package service

import (
	"coaching-backend/internal/model"

	"gorm.io/gorm"
)

// MemberService 멤버십/권한 관련 비즈니스 로직
type MemberService struct {
	db *gorm.DB
}

// NewMemberService MemberService 생성
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

// IsWorkspaceMember 워크스페이스 멤버 여부 확인
func (s *MemberService) IsWorkspaceMember(workspaceID, userID int64) bool {
	var count int64
	s.db.Model(&model.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ? AND status = ?", workspaceID, userID, model.MemberStatusActive.String()).
		Count(&count)
	return count > 0
}

// IsWorkspaceOwner 워크스페이스 소유자 여부 확인
func (s *MemberService) IsWorkspaceOwner(workspaceID, userID int64) bool {
	var ownerID int64
	s.db.Table("workspaces").Where("id = ?", workspaceID).Select("owner_id").Scan(&ownerID)
	return ownerID != 0 && ownerID == userID
}

// IsWorkspaceMemberOrOwner 멤버 또는 소유자 여부 확인
func (s *MemberService) IsWorkspaceMemberOrOwner(workspaceID, userID int64) bool {
	return s.IsWorkspaceMember(workspaceID, userID) || s.IsWorkspaceOwner(workspaceID, userID)
}

// CanAccessBoard 보드가 속한 워크스페이스의 멤버/소유자인지 확인
func (s *MemberService) CanAccessBoard(board *model.Board, userID int64) bool {
	if board == nil {
		return false
	}
	return s.IsWorkspaceMemberOrOwner(board.WorkspaceID, userID)
}
