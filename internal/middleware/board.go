package middleware

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"coaching-backend/internal/auth"
	"coaching-backend/internal/model"
	"coaching-backend/internal/repository"
	"coaching-backend/internal/service"
)

// BoardMiddleware 보드 접근 권한 미들웨어
type BoardMiddleware struct {
	boards        *repository.BoardRepository
	memberService *service.MemberService
}

// NewBoardMiddleware BoardMiddleware 생성
func NewBoardMiddleware(boards *repository.BoardRepository, memberService *service.MemberService) *BoardMiddleware {
	return &BoardMiddleware{boards: boards, memberService: memberService}
}

// RequireBoardAccess 보드가 속한 워크스페이스의 멤버 또는 소유자 필수
// 통과하면 Locals("board"), Locals("boardID")에 보드를 저장한다
func (m *BoardMiddleware) RequireBoardAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		boardID, err := strconv.ParseInt(c.Params("boardId"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid board ID",
			})
		}

		board, err := m.boards.GetByID(c.UserContext(), boardID)
		if err != nil {
			if errors.Is(err, repository.ErrBoardNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "board not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load board",
			})
		}

		if !m.memberService.CanAccessBoard(board, claims.UserID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a workspace member or owner",
			})
		}

		c.Locals("board", board)
		c.Locals("boardID", board.ID)
		c.Locals("workspaceID", board.WorkspaceID)
		return c.Next()
	}
}

// GetBoardFromContext RequireBoardAccess가 저장한 보드 조회
func GetBoardFromContext(c *fiber.Ctx) (*model.Board, bool) {
	board, ok := c.Locals("board").(*model.Board)
	return board, ok && board != nil
}
