package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coaching-backend/internal/auth"
	"coaching-backend/internal/model"
)

// WorkspaceHandler 워크스페이스(스타트업 팀) 핸들러
type WorkspaceHandler struct {
	db *gorm.DB
}

// NewWorkspaceHandler WorkspaceHandler 생성
func NewWorkspaceHandler(db *gorm.DB) *WorkspaceHandler {
	return &WorkspaceHandler{db: db}
}

// CreateWorkspaceRequest 워크스페이스 생성 요청
type CreateWorkspaceRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids,omitempty"`
}

// WorkspaceResponse 워크스페이스 응답
type WorkspaceResponse struct {
	ID        int64                     `json:"id"`
	Name      string                    `json:"name"`
	OwnerID   int64                     `json:"owner_id"`
	CreatedAt string                    `json:"created_at"`
	Owner     *UserResponse             `json:"owner,omitempty"`
	Members   []WorkspaceMemberResponse `json:"members,omitempty"`
}

// WorkspaceMemberResponse 워크스페이스 멤버 응답
type WorkspaceMemberResponse struct {
	ID       int64         `json:"id"`
	UserID   int64         `json:"user_id"`
	Status   string        `json:"status"`
	JoinedAt string        `json:"joined_at"`
	User     *UserResponse `json:"user,omitempty"`
}

// CreateWorkspace 워크스페이스 생성
// 코치가 팀원을 직접 추가하므로 멤버는 바로 ACTIVE 상태가 된다
func (h *WorkspaceHandler) CreateWorkspace(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req CreateWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Name = sanitizeString(req.Name)
	if len(req.Name) < 2 || len(req.Name) > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "workspace name must be between 2 and 100 characters",
		})
	}

	var workspace model.Workspace
	err = h.db.Transaction(func(tx *gorm.DB) error {
		workspace = model.Workspace{
			Name:    req.Name,
			OwnerID: claims.UserID,
		}
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}

		ids := append([]int64{claims.UserID}, req.MemberIDs...)
		_, err := addMembers(tx, workspace.ID, ids, nil)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create workspace",
		})
	}

	h.db.
		Preload("Owner").
		Preload("Members", "status = ?", model.MemberStatusActive.String()).
		Preload("Members.User").
		First(&workspace, workspace.ID)

	return c.Status(fiber.StatusCreated).JSON(toWorkspaceResponse(&workspace))
}

// GetMyWorkspaces 내 워크스페이스 목록
func (h *WorkspaceHandler) GetMyWorkspaces(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var workspaces []model.Workspace
	err = h.db.
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ? AND workspace_members.status = ?", claims.UserID, model.MemberStatusActive.String()).
		Preload("Owner").
		Order("workspaces.created_at DESC").
		Find(&workspaces).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get workspaces",
		})
	}

	responses := make([]WorkspaceResponse, len(workspaces))
	for i := range workspaces {
		responses[i] = toWorkspaceResponse(&workspaces[i])
	}

	return c.JSON(fiber.Map{
		"workspaces": responses,
		"total":      len(responses),
	})
}

// GetWorkspace 워크스페이스 상세 조회 (RequireMembershipOrOwner 뒤에서 호출)
func (h *WorkspaceHandler) GetWorkspace(c *fiber.Ctx) error {
	workspaceID, ok := c.Locals("workspaceID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid workspace id"})
	}

	var workspace model.Workspace
	err := h.db.
		Preload("Owner").
		Preload("Members", "status = ?", model.MemberStatusActive.String()).
		Preload("Members.User").
		First(&workspace, workspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "workspace not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get workspace",
		})
	}

	return c.JSON(toWorkspaceResponse(&workspace))
}

// AddMembers 팀원 추가 (RequireOwnership 뒤에서 호출, 바로 ACTIVE)
func (h *WorkspaceHandler) AddMembers(c *fiber.Ctx) error {
	workspaceID, ok := c.Locals("workspaceID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid workspace id"})
	}

	var req struct {
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	var existing []model.WorkspaceMember
	h.db.Where("workspace_id = ?", workspaceID).Find(&existing)
	skip := make(map[int64]bool, len(existing))
	for _, m := range existing {
		skip[m.UserID] = true
	}

	var added int
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var err error
		added, err = addMembers(tx, workspaceID, req.MemberIDs, skip)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to add members",
		})
	}

	return c.JSON(fiber.Map{
		"message":     "members added",
		"added_count": added,
	})
}

// LeaveWorkspace 워크스페이스 나가기
func (h *WorkspaceHandler) LeaveWorkspace(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	workspaceID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid workspace id",
		})
	}

	var workspace model.Workspace
	if err := h.db.First(&workspace, workspaceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "workspace not found",
		})
	}

	// 소유자는 나갈 수 없음
	if workspace.OwnerID == claims.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "owner cannot leave workspace",
		})
	}

	res := h.db.Where("workspace_id = ? AND user_id = ?", workspaceID, claims.UserID).Delete(&model.WorkspaceMember{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to leave workspace",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "you are not a member of this workspace",
		})
	}

	return c.JSON(fiber.Map{
		"message": "successfully left workspace",
	})
}

// addMembers 존재하는 사용자만 ACTIVE 멤버로 추가
func addMembers(tx *gorm.DB, workspaceID int64, userIDs []int64, skip map[int64]bool) (int, error) {
	seen := make(map[int64]bool, len(userIDs))
	added := 0
	for _, userID := range userIDs {
		if seen[userID] || skip[userID] {
			continue
		}
		seen[userID] = true

		var count int64
		if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return added, err
		}
		if count == 0 {
			continue // 존재하지 않는 사용자는 무시
		}

		member := model.WorkspaceMember{
			WorkspaceID: workspaceID,
			UserID:      userID,
			Status:      model.MemberStatusActive.String(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// 헬퍼 함수: 워크스페이스 응답 변환
func toWorkspaceResponse(ws *model.Workspace) WorkspaceResponse {
	resp := WorkspaceResponse{
		ID:        ws.ID,
		Name:      ws.Name,
		OwnerID:   ws.OwnerID,
		CreatedAt: ws.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	if ws.Owner.ID != 0 {
		resp.Owner = toUserResponse(&ws.Owner)
	}

	if len(ws.Members) > 0 {
		resp.Members = make([]WorkspaceMemberResponse, len(ws.Members))
		for i, m := range ws.Members {
			resp.Members[i] = WorkspaceMemberResponse{
				ID:       m.ID,
				UserID:   m.UserID,
				Status:   m.Status,
				JoinedAt: m.JoinedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
			if m.User.ID != 0 {
				resp.Members[i].User = toUserResponse(&m.User)
			}
		}
	}

	return resp
}
