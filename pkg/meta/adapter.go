package meta

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 封装了 GORM 实例，作为元数据层的入口
type DB struct {
	conn *gorm.DB
}

// NewDB 打开 (或创建) SQLite 数据库并迁移表结构。
// path 为 ":memory:" 时是纯内存库，测试用。
func NewDB(path string) (*DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		// 注册表写入很少，SQL 日志只在慢查询时有价值
		Logger: logger.Default.LogMode(logger.Warn),
		// 把方言的唯一键冲突翻译成 gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry db %s: %w", path, err)
	}

	if err := conn.AutoMigrate(&RepoModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate registry schema: %w", err)
	}

	return &DB{conn: conn}, nil
}
