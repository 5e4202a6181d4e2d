package model

import (
	"time"
)

// Group 群组
type Group struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Name        string `gorm:"type:varchar(100)"`
	Master      string `gorm:"type:varchar(64)"` // 群主用户ID
	Prohibition string `gorm:"type:char(1);default:0"` // 禁言开关 0-否 1-是
	DelFlag     string `gorm:"type:char(1);default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Group) TableName() string {
	return "im_group"
}

// GroupUser 群成员关系
type GroupUser struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	GroupID   string `gorm:"type:varchar(64);uniqueIndex:idx_group_user"`
	UserID    string `gorm:"type:varchar(64);uniqueIndex:idx_group_user"`
	Status    string `gorm:"type:char(1);default:0"` // 0-正常 1-已退出
	CreatedAt time.Time
}

func (GroupUser) TableName() string {
	return "im_group_user"
}
