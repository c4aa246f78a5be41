// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"github.com/osmo-project/osmo/internal/model"
)

// CreateGroup inserts g.
func (s *Store) CreateGroup(ctx context.Context, g model.TaskGroup) error {
	row, err := groupToRow(g)
	if err != nil {
		return fmt.Errorf("create group %q: %w", g.Name, err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create group %q: %w", g.Name, err)
	}
	return nil
}

// GroupStatuses implements internal/statemachine.Store: the current status
// of every group belonging to workflowUUID, in the order RollupWorkflow
// needs them (unordered is fine — RollupWorkflow's precedence is order
// independent).
func (s *Store) GroupStatuses(ctx context.Context, workflowUUID string) ([]model.GroupStatus, error) {
	var statuses []string
	err := s.db.WithContext(ctx).Model(&groupRow{}).
		Where("workflow_id = ?", workflowUUID).
		Pluck("status", &statuses).Error
	if err != nil {
		return nil, fmt.Errorf("group statuses for workflow %q: %w", workflowUUID, err)
	}
	out := make([]model.GroupStatus, len(statuses))
	for i, st := range statuses {
		out[i] = model.GroupStatus(st)
	}
	return out, nil
}

// SetGroupStatus implements internal/statemachine.Store.
func (s *Store) SetGroupStatus(ctx context.Context, groupUUID string, status model.GroupStatus) error {
	res := s.db.WithContext(ctx).Model(&groupRow{}).
		Where("group_uuid = ?", groupUUID).
		Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("set group %q status: %w", groupUUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return userErrorf("group %q not found", groupUUID)
	}
	return nil
}

// GetGroup returns the group identified by groupUUID.
func (s *Store) GetGroup(ctx context.Context, groupUUID string) (model.TaskGroup, error) {
	var row groupRow
	err := s.db.WithContext(ctx).Where("group_uuid = ?", groupUUID).First(&row).Error
	if isNotFound(err) {
		return model.TaskGroup{}, userErrorf("group %q not found", groupUUID)
	}
	if err != nil {
		return model.TaskGroup{}, fmt.Errorf("get group %q: %w", groupUUID, err)
	}
	return rowToGroup(row)
}

// GroupsForWorkflow returns every group belonging to workflowUUID.
func (s *Store) GroupsForWorkflow(ctx context.Context, workflowUUID string) ([]model.TaskGroup, error) {
	var rows []groupRow
	err := s.db.WithContext(ctx).Where("workflow_id = ?", workflowUUID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("groups for workflow %q: %w", workflowUUID, err)
	}
	out := make([]model.TaskGroup, 0, len(rows))
	for _, row := range rows {
		g, err := rowToGroup(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
