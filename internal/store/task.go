// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/osmo-project/osmo/internal/model"
)

// CreateTask inserts t.
func (s *Store) CreateTask(ctx context.Context, t model.Task) error {
	row, err := taskToRow(t)
	if err != nil {
		return fmt.Errorf("create task %q: %w", t.TaskUUID, err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create task %q: %w", t.TaskUUID, err)
	}
	return nil
}

// GetTask returns the task attempt identified by taskUUID.
func (s *Store) GetTask(ctx context.Context, taskUUID string) (model.Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).Where("task_uuid = ?", taskUUID).First(&row).Error
	if isNotFound(err) {
		return model.Task{}, userErrorf("task %q not found", taskUUID)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %q: %w", taskUUID, err)
	}
	return rowToTask(row)
}

// TaskStatuses implements internal/statemachine.Store: the current status
// of every task belonging to groupUUID. Tasks are identified by
// TaskDBKey in the group, not TaskUUID, so a retried task's latest attempt
// is the one with the highest RetryID for each TaskDBKey.
func (s *Store) TaskStatuses(ctx context.Context, groupUUID string) ([]model.TaskStatus, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).
		Raw(`
			SELECT t.* FROM tasks t
			INNER JOIN (
				SELECT task_db_key, MAX(retry_id) AS max_retry
				FROM tasks
				WHERE workflow_id = (SELECT workflow_id FROM task_groups WHERE group_uuid = ?)
				AND group_name = (SELECT name FROM task_groups WHERE group_uuid = ?)
				GROUP BY task_db_key
			) latest ON t.task_db_key = latest.task_db_key AND t.retry_id = latest.max_retry
		`, groupUUID, groupUUID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("task statuses for group %q: %w", groupUUID, err)
	}
	out := make([]model.TaskStatus, len(rows))
	for i, row := range rows {
		out[i] = model.TaskStatus(row.Status)
	}
	return out, nil
}

// SetTaskStatus updates a task's status, and opportunistically its
// StartTime/EndTime the same way SetWorkflowStatus does.
func (s *Store) SetTaskStatus(ctx context.Context, taskUUID string, status model.TaskStatus) error {
	now := s.now()
	updates := map[string]any{"status": string(status)}
	if status == model.TaskRunning {
		if err := s.db.WithContext(ctx).Model(&taskRow{}).
			Where("task_uuid = ? AND start_time IS NULL", taskUUID).
			Update("start_time", now).Error; err != nil {
			return fmt.Errorf("set task %q start time: %w", taskUUID, err)
		}
	}
	if status.Finished() {
		if err := s.db.WithContext(ctx).Model(&taskRow{}).
			Where("task_uuid = ? AND end_time IS NULL", taskUUID).
			Update("end_time", now).Error; err != nil {
			return fmt.Errorf("set task %q end time: %w", taskUUID, err)
		}
	}
	res := s.db.WithContext(ctx).Model(&taskRow{}).Where("task_uuid = ?", taskUUID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set task %q status: %w", taskUUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return userErrorf("task %q not found", taskUUID)
	}
	return nil
}

// Heartbeat records a task's latest heartbeat timestamp, observed through
// the Backend Interface's listen_events stream (§4.8).
func (s *Store) Heartbeat(ctx context.Context, taskUUID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("task_uuid = ?", taskUUID).
		Update("last_heartbeat", at)
	if res.Error != nil {
		return fmt.Errorf("heartbeat task %q: %w", taskUUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return userErrorf("task %q not found", taskUUID)
	}
	return nil
}

// TasksForGroup returns every attempt of every task in groupName under
// workflowID, latest retry first.
func (s *Store) TasksForGroup(ctx context.Context, workflowID, groupName string) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).
		Where("workflow_id = ? AND group_name = ?", workflowID, groupName).
		Order("retry_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tasks for group %q: %w", groupName, err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTask(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// TasksForWorkflow returns every task attempt across every group of
// workflowID, implementing §6's `task list --workflow-id` surface.
func (s *Store) TasksForWorkflow(ctx context.Context, workflowID string) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("retry_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tasks for workflow %q: %w", workflowID, err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTask(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
