package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Auth      AuthConfig
	S3        S3Config
	Redis     RedisConfig
	Document  DocumentConfig
	Canvas    CanvasConfig
	Presence  PresenceConfig
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config AWS S3 설정 (도형 첨부 파일)
type S3Config struct {
	Region          string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // MinIO 등 S3 호환 스토리지용 (비어 있으면 AWS)
	UsePathStyle    bool   // Endpoint 지정 시 path-style 주소 사용
	PublicBaseURL   string // 비어 있으면 https://{bucket}.s3.{region}.amazonaws.com
	PresignExpiry   time.Duration
}

// AuthConfig 인증 설정
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	SendBufferSize   int // 세션별 송신 큐 크기
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// DocumentConfig 공유 문서 저장소 설정
type DocumentConfig struct {
	Backend string // redis | memory
}

// CanvasConfig 캔버스 상호작용/라우팅 파라미터
type CanvasConfig struct {
	SnapRadius      float64 // 화면 픽셀 기준
	RouteOut        float64
	RouteStub       float64
	RouteHook       float64
	DuplicateOffset float64
	MinWidth        float64
	MinHeight       float64
	HandleRadius    float64 // 화면 픽셀 기준
	HistoryLimit    int
	ClipboardTTL    time.Duration
}

// PresenceConfig 커서 presence 설정
type PresenceConfig struct {
	TTL time.Duration
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	// 필수 환경 변수 검증
	jwtSecret := getRequiredEnv("JWT_SECRET")
	if jwtSecret == "change-this-secret-in-production" {
		log.Fatal("🚨 CRITICAL: JWT_SECRET must be changed from default value in production!")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize:  getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			HandshakeTimeout: getDuration("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
			WriteTimeout:     getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
			SendBufferSize:   getInt("WS_SEND_BUFFER_SIZE", 64),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-northeast-2"),
			BucketName:      getEnv("AWS_S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    getBool("AWS_S3_PATH_STYLE", true),
			PublicBaseURL:   getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
			PresignExpiry:   getDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Document: DocumentConfig{
			Backend: strings.ToLower(getEnv("DOCUMENT_BACKEND", "redis")),
		},
		Canvas: LoadCanvas(),
		Presence: PresenceConfig{
			TTL: getDuration("PRESENCE_TTL", 60*time.Second),
		},
	}
}

// LoadCanvas 캔버스 설정만 로드 (CLI 도구에서도 사용)
func LoadCanvas() CanvasConfig {
	return CanvasConfig{
		SnapRadius:      getFloat("CANVAS_SNAP_RADIUS", 16),
		RouteOut:        getFloat("CANVAS_ROUTE_OUT", 6),
		RouteStub:       getFloat("CANVAS_ROUTE_STUB", 20),
		RouteHook:       getFloat("CANVAS_ROUTE_HOOK", 16),
		DuplicateOffset: getFloat("CANVAS_DUPLICATE_OFFSET", 24),
		MinWidth:        getFloat("CANVAS_MIN_WIDTH", 40),
		MinHeight:       getFloat("CANVAS_MIN_HEIGHT", 75),
		HandleRadius:    getFloat("CANVAS_HANDLE_RADIUS", 8),
		HistoryLimit:    getInt("CANVAS_HISTORY_LIMIT", 100),
		ClipboardTTL:    getDuration("CANVAS_CLIPBOARD_TTL", 24*time.Hour),
	}
}

// getRequiredEnv 필수 환경 변수 조회 (없으면 Fatal)
func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("🚨 CRITICAL: Required environment variable %s is not set!", key)
	}
	return value
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getFloat 실수형 환경 변수 조회
func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
