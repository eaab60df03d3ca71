package sqldb

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/JoeShih716/go-credit-ledger/pkg/database"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate 套用 migrations/<driver> 下尚未執行的版本 (建表 + 固定帳戶)
// migrate 使用自己的連線，結束後關閉，不影響服務的連線池
func Migrate(cfg database.Config) error {
	url, err := cfg.MigrateURL()
	if err != nil {
		return err
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+cfg.Driver)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver : %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, url)
	if err != nil {
		return fmt.Errorf("failed to set up migrate instance : %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("migrate close: source=%v db=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration(up) : %w", err)
	}
	return nil
}
