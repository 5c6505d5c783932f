package main

import (
	"log"

	"coaching-backend/internal/config"
	"coaching-backend/internal/database"
	"coaching-backend/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	// 데이터베이스 연결
	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer database.Close()

	// Ping 테스트
	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database ping failed: %v", err)
	}
	log.Printf("✅ Database connected successfully (%s)", db.Dialector.Name())

	// DB 버전 확인 (PostgreSQL만)
	if db.Dialector.Name() == "postgres" {
		var version string
		db.Raw("SELECT version()").Scan(&version)
		if len(version) > 50 {
			version = version[:50] + "..."
		}
		log.Printf("📦 PostgreSQL: %s", version)
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, db)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
