package sqldb

import (
	"strings"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQL 必須產生 SELECT ... FOR UPDATE；只產生 SQL，不連線
func TestLockQueryMySQLForUpdate(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/ledger",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return lockQuery(tx, 3).Take(&sqlAccount{})
	})
	if !strings.HasPrefix(sql, "SELECT * FROM `accounts`") || !strings.HasSuffix(sql, "FOR UPDATE") {
		t.Fatalf("sql=%q", sql)
	}
	if !strings.Contains(sql, "id = 3") {
		t.Fatalf("sql=%q", sql)
	}
}

// SQLite 沒有列鎖，dialector 會略過 FOR 子句 (由單一連線排序)
func TestLockQuerySQLiteOmitsLocking(t *testing.T) {
	l := newTestLedger(t)
	sql := l.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return lockQuery(tx, 3).Take(&sqlAccount{})
	})
	if strings.Contains(sql, "FOR UPDATE") || !strings.Contains(sql, "accounts") {
		t.Fatalf("sql=%q", sql)
	}
}
