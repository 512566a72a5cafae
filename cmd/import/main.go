// cmd/import/main.go
// 酒水目录导入工具 - 从 JSON 文件导入酒水条目到数据库
//
// 目录条目把内部 key 绑定到 Square Catalog 的 variation ID，
// 引擎启动时从 drinks 表加载定价目录。
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"tapmarket/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DrinkImportEntry JSON 导入条目
type DrinkImportEntry struct {
	Key         string `json:"key"`              // 必填：内部标识 (如 "house_lager")
	Name        string `json:"name"`             // 必填：展示名称
	VariationID string `json:"variation_id"`     // 必填：Square item variation ID
	Status      string `json:"status,omitempty"` // 可选：active / paused (默认 active)
}

// DrinkImportFile JSON 导入文件结构
type DrinkImportFile struct {
	Drinks []DrinkImportEntry `json:"drinks"`
}

func main() {
	// 命令行参数
	dsn := flag.String("dsn", "", "MySQL DSN (or use DB_DSN env)")
	file := flag.String("file", "", "JSON file path (required)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode (don't write to database)")
	upsert := flag.Bool("upsert", true, "Update existing entries by key")
	flag.Parse()

	// 支持从环境变量读取 DSN
	if *dsn == "" {
		*dsn = os.Getenv("DB_DSN")
	}

	if *dsn == "" || *file == "" {
		fmt.Println("Usage: import -dsn <mysql_dsn> -file <json_file>")
		fmt.Println()
		fmt.Println("Options:")
		fmt.Println("  -dsn      MySQL DSN (e.g., user:pass@tcp(localhost:3306)/tapmarket?parseTime=true)")
		fmt.Println("  -file     JSON file path")
		fmt.Println("  -dry-run  Dry run mode (default: false)")
		fmt.Println("  -upsert   Update existing entries (default: true)")
		fmt.Println()
		fmt.Println("JSON file format:")
		fmt.Println(`{
  "drinks": [
    {
      "key": "house_lager",
      "name": "House Lager",
      "variation_id": "W62UWFY35CWMYGVWK6TWJDNI",
      "status": "active"
    }
  ]
}`)
		os.Exit(1)
	}

	// 读取 JSON 文件
	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	var importFile DrinkImportFile
	if err := json.Unmarshal(data, &importFile); err != nil {
		log.Fatalf("Failed to parse JSON: %v", err)
	}

	fmt.Printf("Loaded %d drinks from %s\n", len(importFile.Drinks), *file)

	if *dryRun {
		fmt.Println("\n[DRY RUN MODE - No changes will be made]")
		for i, d := range importFile.Drinks {
			fmt.Printf("  %d. %s (%s)", i+1, d.Key, d.Name)
			if d.VariationID != "" {
				fmt.Printf(" -> %s", d.VariationID)
			}
			fmt.Println()
		}
		return
	}

	// 连接数据库
	db, err := gorm.Open(mysql.Open(*dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 导入数据
	var created, failed int
	for _, entry := range importFile.Drinks {
		if entry.Key == "" || entry.Name == "" || entry.VariationID == "" {
			fmt.Printf("  [SKIP] %s: key, name and variation_id are required\n", entry.Key)
			failed++
			continue
		}

		drink := convertToModel(entry)

		var result *gorm.DB
		if *upsert {
			// UPSERT: 存在则更新，不存在则插入
			result = db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "variation_id", "status", "updated_at"}),
			}).Create(&drink)
		} else {
			// 仅插入，忽略已存在
			result = db.Clauses(clause.OnConflict{
				DoNothing: true,
			}).Create(&drink)
		}

		if result.Error != nil {
			fmt.Printf("  [FAIL] %s: %v\n", entry.Key, result.Error)
			failed++
		} else if result.RowsAffected == 0 {
			fmt.Printf("  [SKIP] %s (already exists)\n", entry.Key)
		} else {
			fmt.Printf("  [OK] %s (id=%d)\n", entry.Key, drink.ID)
			created++
		}
	}

	fmt.Printf("\nSummary: %d written, %d failed\n", created, failed)
}

// convertToModel 将导入条目转换为数据库模型
func convertToModel(entry DrinkImportEntry) model.Drink {
	status := model.DrinkStatus(entry.Status)
	if status != model.DrinkStatusActive && status != model.DrinkStatusPaused {
		status = model.DrinkStatusActive
	}

	return model.Drink{
		Key:         entry.Key,
		Name:        entry.Name,
		VariationID: entry.VariationID,
		Status:      status,
	}
}
