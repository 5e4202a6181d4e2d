package repository

import (
	"Courier/internal/model"
	"context"

	"gorm.io/gorm"
)

const memberStatusNormal = "0"

type GroupRepo interface {
	GetGroupsByUserID(ctx context.Context, userID string) ([]*model.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	GetUserIDs(ctx context.Context, groupID string) ([]string, error)
}

type GroupRepoImpl struct {
	db *gorm.DB
}

func NewGroupRepo(db *gorm.DB) GroupRepo {
	return &GroupRepoImpl{db: db}
}

// GetGroupsByUserID 获取用户加入的全部群组
func (s *GroupRepoImpl) GetGroupsByUserID(ctx context.Context, userID string) ([]*model.Group, error) {
	var groups []*model.Group
	result := s.db.WithContext(ctx).
		Joins("JOIN im_group_user ON im_group_user.group_id = im_group.id").
		Where("im_group_user.user_id = ? AND im_group_user.status = ?", userID, memberStatusNormal).
		Where("im_group.del_flag = ?", "0").
		Find(&groups)

	if result.Error != nil {
		return nil, result.Error
	}
	return groups, nil
}

// IsMember 检查用户是否为群成员
func (s *GroupRepoImpl) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&model.GroupUser{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, memberStatusNormal).
		Count(&count)

	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// GetUserIDs 获取群组中的用户ID列表
func (s *GroupRepoImpl) GetUserIDs(ctx context.Context, groupID string) ([]string, error) {
	var userIDs []string
	result := s.db.WithContext(ctx).
		Model(&model.GroupUser{}).
		Where("group_id = ? AND status = ?", groupID, memberStatusNormal).
		Pluck("user_id", &userIDs)

	if result.Error != nil {
		return nil, result.Error
	}
	return userIDs, nil
}
