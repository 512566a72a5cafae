package model

import (
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	tmpFile := fmt.Sprintf("/tmp/tapmarket_model_test_%d.db", time.Now().UnixNano())
	t.Cleanup(func() {
		os.Remove(tmpFile)
	})

	db, err := gorm.Open(sqlite.Open(tmpFile), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		model interface{ TableName() string }
		want  string
	}{
		{Drink{}, "drinks"},
		{PriceHistory{}, "price_history"},
		{Purchase{}, "purchases"},
		{EngineMarker{}, "engine_markers"},
	}
	for _, tt := range tests {
		if got := tt.model.TableName(); got != tt.want {
			t.Errorf("TableName() = %q, want %q", got, tt.want)
		}
	}
}

func TestDrink_UniqueKey(t *testing.T) {
	db := setupDB(t)

	first := Drink{Key: "lager", Name: "House Lager", VariationID: "VAR_L"}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := Drink{Key: "lager", Name: "Other Lager", VariationID: "VAR_X"}
	if err := db.Create(&dup).Error; err == nil {
		t.Error("expected unique constraint violation on duplicate key")
	}
}

func TestDrink_SoftDelete(t *testing.T) {
	db := setupDB(t)

	drink := Drink{Key: "cider", Name: "Seasonal Cider", VariationID: "VAR_C", Status: DrinkStatusActive}
	if err := db.Create(&drink).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Delete(&drink).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int64
	if err := db.Model(&Drink{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("soft-deleted drink still visible, count = %d", count)
	}

	// Unscoped 仍可见
	if err := db.Unscoped().Model(&Drink{}).Count(&count).Error; err != nil {
		t.Fatalf("unscoped count: %v", err)
	}
	if count != 1 {
		t.Errorf("unscoped count = %d, want 1", count)
	}
}

func TestPriceHistory_RoundTrip(t *testing.T) {
	db := setupDB(t)

	at := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	rec := PriceHistory{DrinkKey: "lager", Price: 5.35, RecordedAt: at}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var got PriceHistory
	if err := db.First(&got, rec.ID).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.DrinkKey != "lager" || got.Price != 5.35 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestEngineMarker_PrimaryKeyIsName(t *testing.T) {
	db := setupDB(t)

	if err := db.Create(&EngineMarker{Name: MarkerLastReset, Value: "2025-06-01"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	// 同名主键冲突
	if err := db.Create(&EngineMarker{Name: MarkerLastReset, Value: "2025-06-02"}).Error; err == nil {
		t.Error("expected primary key conflict on duplicate marker name")
	}

	if err := db.Model(&EngineMarker{}).
		Where("name = ?", MarkerLastReset).
		Update("value", "2025-06-02").Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	var got EngineMarker
	if err := db.First(&got, "name = ?", MarkerLastReset).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Value != "2025-06-02" {
		t.Errorf("value = %q, want 2025-06-02", got.Value)
	}
}
