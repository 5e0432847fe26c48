package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/model"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
	"github.com/seenlim/docchat/internal/repo"
)

type WorkspaceService struct {
	groups     *repo.WorkgroupRepo
	workspaces *repo.WorkspaceRepo
}

func NewWorkspaceService(groups *repo.WorkgroupRepo, workspaces *repo.WorkspaceRepo) *WorkspaceService {
	return &WorkspaceService{groups: groups, workspaces: workspaces}
}

func (s *WorkspaceService) CreateGroup(ctx context.Context, name, description string) (*model.Workgroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	group := &model.Workgroup{
		Name:        name,
		Description: strings.TrimSpace(description),
		Ctime:       time.Now().Unix(),
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("workgroup created", zap.Int64("group_id", group.ID), zap.String("name", group.Name))
	return group, nil
}

func (s *WorkspaceService) ListGroups(ctx context.Context) ([]model.Workgroup, error) {
	return s.groups.List(ctx)
}

func (s *WorkspaceService) UpdateGroup(ctx context.Context, id int64, name, description string) (*model.Workgroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	group := &model.Workgroup{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, err
	}
	return s.groups.GetByID(ctx, id)
}

func (s *WorkspaceService) DeleteGroup(ctx context.Context, id int64) error {
	return s.groups.Delete(ctx, id)
}

func (s *WorkspaceService) Create(ctx context.Context, groupID int64, name, description string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" || groupID <= 0 {
		return nil, appErr.ErrInvalid
	}
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	ws := &model.Workspace{
		GroupID:     groupID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("workspace created", zap.Int64("workspace_id", ws.ID), zap.String("name", ws.Name))
	return ws, nil
}

// List annotates each workspace with its linked document count.
func (s *WorkspaceService) List(ctx context.Context, groupID int64) ([]model.Workspace, error) {
	list, err := s.workspaces.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	counts, err := s.workspaces.DocumentCounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].DocumentCount = counts[list[i].ID]
	}
	return list, nil
}

func (s *WorkspaceService) Get(ctx context.Context, id int64) (*model.Workspace, error) {
	return s.workspaces.GetByID(ctx, id)
}

func (s *WorkspaceService) Update(ctx context.Context, id int64, name, description string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	ws := &model.Workspace{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		Mtime:       time.Now().Unix(),
	}
	if err := s.workspaces.Update(ctx, ws); err != nil {
		return nil, err
	}
	return s.workspaces.GetByID(ctx, id)
}

func (s *WorkspaceService) Delete(ctx context.Context, id int64) error {
	return s.workspaces.Delete(ctx, id)
}
