package server

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"coaching-backend/internal/attachment"
	"coaching-backend/internal/auth"
	"coaching-backend/internal/cache"
	"coaching-backend/internal/clipboard"
	"coaching-backend/internal/config"
	"coaching-backend/internal/document"
	"coaching-backend/internal/handler"
	"coaching-backend/internal/middleware"
	"coaching-backend/internal/presence"
	"coaching-backend/internal/repository"
	"coaching-backend/internal/service"
	"coaching-backend/internal/storage"
)

// Server Fiber 서버 래퍼
type Server struct {
	app              *fiber.App
	cfg              *config.Config
	db               *gorm.DB
	redis            *cache.RedisClient // nil이면 단일 인스턴스 모드
	boards           *repository.BoardRepository
	memberService    *service.MemberService
	hub              *handler.BoardHub
	tracker          *attachment.Tracker
	boardHandler     *handler.BoardHandler
	userHandler      *handler.UserHandler
	workspaceHandler *handler.WorkspaceHandler
	healthHandler    *handler.HealthHandler
	jwtManager       *auth.JWTManager
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Startup Coaching Canvas",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384, // 16KB - 큰 헤더 허용
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024, // 10MB (첨부 업로드)
		DisableStartupMessage: false,
	})

	// Auth 초기화
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	// Redis 초기화 (선택적 - 실패 시 메모리 문서, presence 비활성)
	redisClient := connectRedis(cfg)

	var registry *document.Registry
	if cfg.Document.Backend == "redis" && redisClient != nil {
		registry = document.NewRedisRegistry(redisClient.Client())
		log.Println("✅ Board documents shared through Redis")
	} else {
		registry = document.NewMemoryRegistry()
		log.Println("ℹ️ Board documents kept in memory (single instance)")
	}

	hubOpts := handler.HubOptions{
		Canvas:     cfg.Canvas,
		SendBuffer: cfg.WebSocket.SendBufferSize,
		WriteWait:  cfg.WebSocket.WriteTimeout,
	}
	if redisClient != nil {
		hubOpts.Presence = presence.NewManager(redisClient.Client(), cfg.Presence.TTL)
		hubOpts.Activity = redisClient
		hubOpts.Clipboards = func(userID int64) clipboard.Service {
			return clipboard.NewRedis(redisClient.Client(), userID, cfg.Canvas.ClipboardTTL)
		}
	}

	boards := repository.NewBoardRepository(db)
	hub := handler.NewBoardHub(registry, boards, hubOpts)

	// S3 서비스 초기화 (선택적)
	var s3Service *storage.S3Service
	if cfg.S3.BucketName != "" && cfg.S3.AccessKeyID != "" {
		var err error
		s3Service, err = storage.NewS3Service(&cfg.S3)
		if err != nil {
			log.Printf("⚠️ S3 service initialization failed: %v (attachments will be disabled)", err)
			s3Service = nil
		} else {
			log.Printf("✅ S3 service initialized (bucket: %s)", cfg.S3.BucketName)
		}
	} else {
		log.Println("ℹ️ S3 service not configured (attachments will be disabled)")
	}

	boardOpts := handler.BoardHandlerOptions{}
	var tracker *attachment.Tracker
	if s3Service != nil {
		tracker = attachment.NewTracker(s3Service, 5*time.Minute)
		boardOpts.Tracker = tracker
		boardOpts.Signer = s3Service
	}
	if redisClient != nil {
		boardOpts.Activity = redisClient
	}

	return &Server{
		app:              app,
		cfg:              cfg,
		db:               db,
		redis:            redisClient,
		boards:           boards,
		memberService:    service.NewMemberService(db),
		hub:              hub,
		tracker:          tracker,
		boardHandler:     handler.NewBoardHandler(boards, hub, boardOpts),
		userHandler:      handler.NewUserHandler(db),
		workspaceHandler: handler.NewWorkspaceHandler(db),
		healthHandler:    handler.NewHealthHandler(db, redisClient, hub),
		jwtManager:       jwtManager,
	}
}

// connectRedis Redis 연결 (실패하면 nil)
func connectRedis(cfg *config.Config) *cache.RedisClient {
	if cfg.Redis.Addr == "" {
		log.Println("ℹ️ Redis not configured")
		return nil
	}
	client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("⚠️ Redis connection failed: %v (presence and shared documents disabled)", err)
		return nil
	}
	return client
}

// App Fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: s.cfg.CORS.AllowOrigins != "*",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter 설정 (쓰기 요청 폭주 방지)
	writeLimiter := limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodGet
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			if claims, err := auth.GetClaimsFromContext(c); err == nil {
				return strconv.FormatInt(claims.UserID, 10)
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	requireAuth := auth.AuthMiddleware(s.jwtManager)
	wsMiddleware := middleware.NewWorkspaceMiddleware(s.memberService)
	boardMiddleware := middleware.NewBoardMiddleware(s.boards, s.memberService)

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Get("/me", requireAuth, s.userHandler.GetMe)

	// User 라우트 그룹 (인증 필요)
	userGroup := s.app.Group("/api/users", requireAuth)
	userGroup.Get("/search", s.userHandler.SearchUsers)

	// Workspace 라우트 그룹 (인증 필요)
	workspaceGroup := s.app.Group("/api/workspaces", requireAuth, writeLimiter)
	workspaceGroup.Post("", s.workspaceHandler.CreateWorkspace)
	workspaceGroup.Get("", s.workspaceHandler.GetMyWorkspaces)
	workspaceGroup.Get("/:id", wsMiddleware.RequireMembershipOrOwner(), s.workspaceHandler.GetWorkspace)
	workspaceGroup.Post("/:id/members", wsMiddleware.RequireOwnership(), s.workspaceHandler.AddMembers)
	workspaceGroup.Delete("/:id/leave", s.workspaceHandler.LeaveWorkspace)

	// Board 라우트 (워크스페이스 하위)
	workspaceGroup.Get("/:workspaceId/boards", wsMiddleware.RequireMembershipOrOwner(), s.boardHandler.ListBoards)
	workspaceGroup.Post("/:workspaceId/boards", wsMiddleware.RequireMembershipOrOwner(), s.boardHandler.CreateBoard)

	// Board 라우트 그룹 (보드 접근 권한 필요)
	boardGroup := s.app.Group("/api/boards/:boardId", requireAuth, writeLimiter, boardMiddleware.RequireBoardAccess())
	boardGroup.Get("", s.boardHandler.GetBoard)
	boardGroup.Delete("", s.boardHandler.DeleteBoard)
	boardGroup.Get("/scene", s.boardHandler.GetScene)
	boardGroup.Get("/activity", s.boardHandler.GetActivity)
	boardGroup.Get("/export.svg", s.boardHandler.ExportSVG)
	boardGroup.Get("/export.png", s.boardHandler.ExportPNG)

	boardGroup.Post("/shapes", s.boardHandler.CreateShape)
	boardGroup.Patch("/shapes/:shapeId", s.boardHandler.UpdateShape)
	boardGroup.Delete("/shapes", s.boardHandler.DeleteShapes)
	boardGroup.Post("/shapes/:shapeId/attachments", s.boardHandler.UploadAttachment)
	boardGroup.Post("/attachments/presign", s.boardHandler.PresignAttachment)

	boardGroup.Post("/connections", s.boardHandler.CreateConnection)
	boardGroup.Delete("/connections/:connectionId", s.boardHandler.DeleteConnection)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 캔버스 엔드포인트
	s.app.Get("/ws/boards/:boardId", s.authorizeBoardSocket, websocket.New(s.hub.HandleWebSocket, websocket.Config{
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
	}))
}

// authorizeBoardSocket WebSocket 핸드셰이크 인증 + 보드 접근 확인
func (s *Server) authorizeBoardSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	// 헤더, 쿠키, 쿼리 순으로 JWT 토큰 추출
	accessToken := auth.TokenFromRequest(c)
	if accessToken == "" {
		// WebSocket은 JSON 응답 대신 연결 거부
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	boardID, err := strconv.ParseInt(c.Params("boardId"), 10, 64)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	board, err := s.boards.GetByID(c.UserContext(), boardID)
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if !s.memberService.CanAccessBoard(board, claims.UserID) {
		return c.SendStatus(fiber.StatusForbidden)
	}

	c.Locals("boardID", board.ID)
	c.Locals("userId", claims.UserID)
	c.Locals("nickname", claims.Nickname)
	return c.Next()
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.Shutdown(); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Startup Coaching Canvas starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/boards/:boardId", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료. 진행 중인 업로드를 기다린 뒤 Redis를 닫는다
func (s *Server) Shutdown() error {
	err := s.app.ShutdownWithTimeout(30 * time.Second)
	if s.tracker != nil {
		s.tracker.Wait()
	}
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			log.Printf("⚠️ Redis close failed: %v", cerr)
		}
	}
	log.Printf("✅ Server stopped (%d boards still open)", s.hub.OpenRooms())
	return err
}
