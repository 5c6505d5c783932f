package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"coaching-backend/internal/database"
	"coaching-backend/internal/model"
)

func main() {
	// Load .env file (없어도 환경 변수로 진행)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	cfg := database.LoadConfig()
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	fmt.Printf("✅ Connected to database (%s)\n", db.Dialector.Name())
	fmt.Println()

	// 보드 스냅샷 테이블/컬럼 확인
	migrator := db.Migrator()
	checks := []struct {
		model  any
		column string
	}{
		{&model.Board{}, "kind"},
		{&model.Shape{}, "payload"},
		{&model.Shape{}, "is_example"},
		{&model.Connection{}, "from_anchor_x"},
		{&model.Connection{}, "to_side"},
		{&model.WorkspaceMember{}, "status"},
	}
	fmt.Println("📋 Schema:")
	missing := 0
	for _, c := range checks {
		ok := migrator.HasColumn(c.model, c.column)
		mark := "✓"
		if !ok {
			mark = "✗"
			missing++
		}
		fmt.Printf("  %s %T.%s\n", mark, c.model, c.column)
	}
	fmt.Println()

	// 보드별 도형/연결선 수
	type BoardStats struct {
		ID          int64
		Title       string
		Shapes      int64
		Connections int64
	}
	var stats []BoardStats
	err = db.Model(&model.Board{}).
		Select(`boards.id, boards.title,
			(SELECT COUNT(*) FROM board_shapes WHERE board_shapes.board_id = boards.id) AS shapes,
			(SELECT COUNT(*) FROM board_connections WHERE board_connections.board_id = boards.id) AS connections`).
		Order("boards.updated_at DESC").
		Limit(10).
		Scan(&stats).Error
	if err != nil {
		log.Fatal("Failed to get board statistics:", err)
	}

	fmt.Println("📈 Recent Boards (last 10):")
	for _, s := range stats {
		fmt.Printf("  - ID: %d, Title: %s, Shapes: %d, Connections: %d\n", s.ID, s.Title, s.Shapes, s.Connections)
	}

	// 끊어진 연결선 (양 끝 도형이 없는 경우)
	var dangling int64
	err = db.Model(&model.Connection{}).
		Where("from_shape_id NOT IN (?) OR to_shape_id NOT IN (?)",
			db.Model(&model.Shape{}).Select("id"),
			db.Model(&model.Shape{}).Select("id")).
		Count(&dangling).Error
	if err != nil {
		log.Fatal("Failed to check connections:", err)
	}
	fmt.Println()
	fmt.Printf("🔗 Dangling connections: %d\n", dangling)

	if missing > 0 {
		fmt.Printf("⚠️  %d column(s) missing, run the server once to migrate\n", missing)
	}
}
