package meta

import "time"

// RepoModel 是注册表在关系型数据库中的投影。
// 账本合约本身才是引用/对象的事实来源，这张表只记
// "仓库名 -> 合约地址" 的映射，进程重启后用它重建内存注册表。
type RepoModel struct {
	// Name 是主键，即 URL 路径里的仓库名
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// Address 是已部署合约的地址 (0x 前缀十六进制)
	Address string `gorm:"type:char(42);not null"`

	CreatedAt time.Time
}

func (RepoModel) TableName() string {
	return "repos"
}
