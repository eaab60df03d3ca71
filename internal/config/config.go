// Package config 載入服務設定：YAML 檔案為底，環境變數覆蓋
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/pkg/database"
)

// DriverMemory 記憶體帳本 + WAL，不需要資料庫
const DriverMemory = "memory"

// DefaultPath 未指定 --config 時讀取的檔案，檔案不存在不算錯誤
const DefaultPath = "config/config.yaml"

const (
	defaultPort           = "7878"
	defaultKeepAlive      = 15 * time.Second
	defaultDriver         = database.DriverMySQL
	defaultMaxConns       = 6
	defaultAcquireTimeout = 5 * time.Second
	defaultDBLogLevel     = "error"
	defaultWALPath        = "wal.log"
)

// warnf 設定值使用預設時的提示輸出，測試時可替換
var warnf = log.Printf

// Config 服務的完整設定
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	GRPC     GRPCConfig      `yaml:"grpc"`
	Database database.Config `yaml:"database"`
	WAL      WALConfig       `yaml:"wal"`
	Accounts []AccountSeed   `yaml:"accounts"`
}

type ServerConfig struct {
	Port      string        `yaml:"port"`
	KeepAlive time.Duration `yaml:"keepalive"` // 閒置連線保留時間
}

type GRPCConfig struct {
	Port string `yaml:"port"` // 空字串代表不啟動 gRPC
}

type WALConfig struct {
	Path string `yaml:"path"`
}

// AccountSeed 記憶體帳本的初始帳戶 (SQL 帳本由 migration 建立)
type AccountSeed struct {
	ID      int64 `yaml:"id"`
	Limit   int64 `yaml:"limit"`
	Balance int64 `yaml:"balance"`
}

// DefaultAccounts 預設的五個帳戶
func DefaultAccounts() []AccountSeed {
	return []AccountSeed{
		{ID: 1, Limit: 100000},
		{ID: 2, Limit: 80000},
		{ID: 3, Limit: 1000000},
		{ID: 4, Limit: 10000000},
		{ID: 5, Limit: 500000},
	}
}

// Load 讀取設定
//
// 參數:
//
//	path: YAML 檔案路徑
//	required: true 時檔案不存在視為錯誤 (使用者明確指定了 --config)
//
// 回傳:
//
//	*Config: 已套用環境變數與預設值的設定
//	error: 檔案讀取、解析或驗證錯誤
func Load(path string, required bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		log.Printf("Config file %s not found, using environment only", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 環境變數優先，其次是 YAML，最後是預設值 (會印出警告)
func (c *Config) applyEnv() {
	envString("PORT", &c.Server.Port, defaultPort)
	envMillis("KEEPALIVE_DURATION", &c.Server.KeepAlive, defaultKeepAlive)
	if v, ok := os.LookupEnv("GRPC_PORT"); ok {
		c.GRPC.Port = v
	}

	envString("DATABASE_DRIVER", &c.Database.Driver, defaultDriver)
	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
	}
	envInt("MAX_DB_CONNECTIONS", &c.Database.MaxOpenConns, defaultMaxConns)
	envMillis("DB_POOL_TIMEOUT", &c.Database.AcquireTimeout, defaultAcquireTimeout)
	envString("DB_LOG_LEVEL", &c.Database.LogLevel, defaultDBLogLevel)
	envString("WAL_PATH", &c.WAL.Path, defaultWALPath)

	// 以下沒有對應的環境變數，靜默補預設值
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = c.Database.MaxOpenConns
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.URL == "" && c.Database.Driver == database.DriverMySQL {
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.DBName == "" {
			c.Database.DBName = "ledger"
		}
	}
	if c.Database.URL == "" && c.Database.Driver == database.DriverSQLite {
		c.Database.URL = "ledger.db"
	}
	if len(c.Accounts) == 0 {
		c.Accounts = DefaultAccounts()
	}
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverMySQL, database.DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port == "" {
		return errors.New("server port is empty")
	}
	if c.Server.KeepAlive <= 0 {
		return fmt.Errorf("keepalive must be positive, got %v", c.Server.KeepAlive)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	seen := make(map[int64]struct{}, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.ID <= 0 {
			return fmt.Errorf("account id must be positive, got %d", a.ID)
		}
		if a.Limit < 0 || a.Balance+a.Limit < 0 {
			return fmt.Errorf("account %d: balance %d is below limit %d", a.ID, a.Balance, a.Limit)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate account id %d", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

// DomainAccounts 轉成記憶體帳本使用的帳戶
func (c *Config) DomainAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		out = append(out, *domain.NewAccount(domain.AccountID(a.ID), a.Limit, a.Balance))
	}
	return out
}

func envString(name string, dst *string, def string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
		return
	}
	if *dst == "" {
		warnDefault(name, def)
		*dst = def
	}
}

func envInt(name string, dst *int, def int) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			*dst = n
			return
		}
		warnf("Could not parse value of %s (%q), using default %d.", name, v, def)
		*dst = def
		return
	}
	if *dst == 0 {
		warnDefault(name, def)
		*dst = def
	}
}

// envMillis 環境變數以毫秒為單位
func envMillis(name string, dst *time.Duration, def time.Duration) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err == nil && ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
			return
		}
		warnf("Could not parse value of %s (%q), using default %dms.", name, v, def.Milliseconds())
		*dst = def
		return
	}
	if *dst == 0 {
		warnDefault(name, fmt.Sprintf("%dms", def.Milliseconds()))
		*dst = def
	}
}

func warnDefault(name string, def any) {
	warnf("Could not find value of %s, using default %v.", name, def)
}
