package service

import (
	"Courier/internal/model"
	"Courier/internal/repository"
	"context"
)

// GroupService 群成员关系查询，消息引擎只消费这三个只读操作
type GroupService interface {
	GetGroups(ctx context.Context, userID string) ([]*model.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	GetUserIDs(ctx context.Context, groupID string) ([]string, error)
}

type groupServiceImpl struct {
	groupRepo repository.GroupRepo
}

func NewGroupService(groupRepo repository.GroupRepo) GroupService {
	return &groupServiceImpl{groupRepo: groupRepo}
}

func (s *groupServiceImpl) GetGroups(ctx context.Context, userID string) ([]*model.Group, error) {
	return s.groupRepo.GetGroupsByUserID(ctx, userID)
}

func (s *groupServiceImpl) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return s.groupRepo.IsMember(ctx, groupID, userID)
}

func (s *groupServiceImpl) GetUserIDs(ctx context.Context, groupID string) ([]string, error) {
	return s.groupRepo.GetUserIDs(ctx, groupID)
}
