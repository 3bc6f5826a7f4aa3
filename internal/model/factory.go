package model

import (
	"fmt"
	"gatekeeper/internal/config"
	"gatekeeper/internal/entity"
	"gatekeeper/internal/model/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DBTypeMySQL    = "mysql"
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"

	defaultSQLitePath = "datas/gatekeeper.db"
)

// RepositoryFactory 根据数据库类型创建对应的仓库实现
type RepositoryFactory struct {
	opts []sql.Option
}

// NewRepositoryFactory 创建新的仓库工厂，opts 透传给 GormRepository
func NewRepositoryFactory(opts ...sql.Option) *RepositoryFactory {
	return &RepositoryFactory{opts: opts}
}

// InitRepository 初始化仓库的辅助函数
func InitRepository(cfg *config.Config, opts ...sql.Option) (Repository, error) {
	if cfg == nil || cfg.DBType == "" {
		return nil, fmt.Errorf("database type is not configured")
	}
	return NewRepositoryFactory(opts...).CreateRepository(cfg)
}

// CreateRepository 打开数据库、迁移表结构并返回仓库
func (f *RepositoryFactory) CreateRepository(cfg *config.Config) (Repository, error) {
	dialector, err := f.dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := f.openGormDB(dialector, cfg.DBTablePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBType, err)
	}

	// 自动迁移数据库表结构
	if err := MigrateSchema(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return sql.NewGormRepository(db, f.opts...), nil
}

// dialector 根据 DB_TYPE 选择驱动；未设置 DSN_URL 时从各个配置项构建
func (f *RepositoryFactory) dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case DBTypeMySQL:
		dsn := cfg.DSNURL
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				cfg.DBUser, cfg.DBPassword, cfg.DBAddr, cfg.DBPort, cfg.DBName)
		}
		return mysql.Open(dsn), nil
	case DBTypePostgres:
		dsn := cfg.DSNURL
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
				cfg.DBAddr, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		}
		return postgres.Open(dsn), nil
	case DBTypeSQLite:
		filePath := cfg.DBPath
		if filePath == "" {
			filePath = defaultSQLitePath
		}
		// SQLite 会自动创建 .db 文件，但目录必须已存在
		if dir := filepath.Dir(filePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %q: %w", dir, err)
			}
		}
		return sqlite.Open(filePath), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

func (f *RepositoryFactory) openGormDB(dialector gorm.Dialector, tablePrefix string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second * 5,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true, // 唯一索引冲突转换为 gorm.ErrDuplicatedKey
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix, // 例如 tbl_
			SingularTable: true,        // role, user_key, user
		},
	})
	if err != nil {
		return nil, err
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// MigrateSchema 创建或更新 role、user、user_key 表
func MigrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Role{},
		&entity.User{},
		&entity.UserKey{},
	)
}
