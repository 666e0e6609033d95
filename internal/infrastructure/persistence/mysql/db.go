package mysql

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xiebiao/retail-inventory/internal/infrastructure/config"
	"github.com/xiebiao/retail-inventory/pkg/logger"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
// 4. 自动迁移表结构（AutoMigrate，生产环境应使用版本化迁移脚本）
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.Database.DSN()

	logLevel := gormlogger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = gormlogger.Info // 开发环境打印SQL
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.L().Info("数据库连接成功")

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移表结构
// AutoMigrate只创建表、添加字段，不删除或修改现有字段
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&InventoryModel{},
		&ReservationModel{},
	)
}

// InventoryModel GORM库存模型
// 设计说明：
// 1. 这是infrastructure层的数据模型，包含GORM tag
// 2. domain/inventory/entity.go是领域实体，不依赖GORM
// 3. Repository负责两者之间的转换
// 4. (store_id, product_sku)唯一索引：每个门店每个SKU只有一条库存行
// 5. version字段承载乐观锁，所有写入必须带WHERE version=?
type InventoryModel struct {
	ID                string    `gorm:"primaryKey;type:char(36)"`
	StoreID           string    `gorm:"uniqueIndex:idx_store_sku;type:char(36);not null;comment:门店ID"`
	ProductSku        string    `gorm:"uniqueIndex:idx_store_sku;size:12;not null;comment:商品SKU"`
	AvailableQuantity int       `gorm:"not null;default:0;comment:可用库存"`
	ReservedQuantity  int       `gorm:"not null;default:0;comment:已预留库存"`
	CommittedQuantity int       `gorm:"not null;default:0;comment:已提交库存"`
	Version           int64     `gorm:"not null;default:1;comment:乐观锁版本号"`
	LastUpdated       time.Time `gorm:"not null;comment:最后变更时间"`
	CreatedAt         time.Time `gorm:"comment:创建时间"`
	UpdatedAt         time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (InventoryModel) TableName() string {
	return "inventories"
}

// ReservationModel GORM预留模型
// 设计说明：
// 1. status+expires_at复合索引支撑过期清扫查询
// 2. EXPIRED是惰性派生状态，存储里的status可能仍是ACTIVE，
//    读取侧必须结合expires_at判断
type ReservationModel struct {
	ReservationID string    `gorm:"primaryKey;type:char(36)"`
	StoreID       string    `gorm:"index:idx_store_sku_res;type:char(36);not null;comment:门店ID"`
	ProductSku    string    `gorm:"index:idx_store_sku_res;size:12;not null;comment:商品SKU"`
	Quantity      int       `gorm:"not null;comment:预留数量"`
	Reason        string    `gorm:"size:200;comment:预留原因"`
	Status        string    `gorm:"index:idx_status_expire;size:16;not null;comment:预留状态"`
	ExpiresAt     time.Time `gorm:"index:idx_status_expire;not null;comment:过期时间"`
	CreatedAt     time.Time `gorm:"comment:创建时间"`
	UpdatedAt     time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (ReservationModel) TableName() string {
	return "stock_reservations"
}
