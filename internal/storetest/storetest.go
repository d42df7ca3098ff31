// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to t. It holds a single
// connection, so concurrent units queue behind each other the way row locks
// queue them in Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, seq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// SeedWallet creates a user and a wallet holding balance kobo.
func SeedWallet(t testing.TB, db *gorm.DB, email, number string, balance int64) *model.Wallet {
	t.Helper()
	u := &model.User{Email: email}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	w := &model.Wallet{UserID: u.ID, WalletNumber: number, Balance: balance}
	if err := db.Create(w).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

// Balance reads the committed balance of walletID.
func Balance(t testing.TB, db *gorm.DB, walletID uint64) int64 {
	t.Helper()
	var w model.Wallet
	if err := db.Where("id = ?", walletID).First(&w).Error; err != nil {
		t.Fatalf("read wallet %d: %v", walletID, err)
	}
	return w.Balance
}
