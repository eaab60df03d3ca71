package database

import (
	"fmt"
	"strings"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver string `yaml:"driver"` // "mysql" 或 "sqlite"
	// URL 若有設定則直接作為 DSN 使用 (sqlite 為檔案路徑)，否則由下列欄位組出 MySQL DSN
	URL string `yaml:"url"`

	Host     string `yaml:"host"`     // 資料庫主機地址
	Port     int    `yaml:"port"`     // 資料庫埠號 (預設 3306)
	User     string `yaml:"user"`     // 使用者名稱
	Password string `yaml:"password"` // 密碼
	DBName   string `yaml:"dbname"`   // 資料庫名稱

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // 連線最大存活時間
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`   // 等待連線名額的上限

	// GORM 設定
	LogLevel string `yaml:"log_level"` // Log 等級: "silent", "error", "warn", "info"
}

// DSN (Data Source Name) 產生連線字串
// MySQL 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
func (c *Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// MigrateURL golang-migrate 使用的資料庫 URL
func (c *Config) MigrateURL() (string, error) {
	switch c.Driver {
	case DriverMySQL:
		return "mysql://" + c.DSN(), nil
	case DriverSQLite:
		// sqlite 的 DSN 可能帶有 go-sqlite3 參數，migrate 只需要檔案路徑
		path, _, _ := strings.Cut(c.DSN(), "?")
		return "sqlite3://" + path, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", c.Driver)
}
