// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/osmo-project/osmo/internal/model"
)

// CreateWorkflow inserts wf, assigning the next JobID for wf.Name (§3,
// invariant 1: JobID is monotonically increasing per Name) inside the same
// transaction so concurrent submissions under one name never collide.
func (s *Store) CreateWorkflow(ctx context.Context, wf model.Workflow) (model.Workflow, error) {
	if wf.SubmitTime.IsZero() {
		wf.SubmitTime = s.now()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxJobID int64
		if err := tx.Model(&workflowRow{}).
			Where("name = ?", wf.Name).
			Select("COALESCE(MAX(job_id), 0)").Scan(&maxJobID).Error; err != nil {
			return fmt.Errorf("determine next job id: %w", err)
		}
		wf.JobID = maxJobID + 1

		row, err := workflowToRow(wf)
		if err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return model.Workflow{}, fmt.Errorf("create workflow %q: %w", wf.Name, err)
	}
	return wf, nil
}

// GetWorkflow returns the workflow identified by workflowUUID.
func (s *Store) GetWorkflow(ctx context.Context, workflowUUID string) (model.Workflow, error) {
	var row workflowRow
	err := s.db.WithContext(ctx).Where("workflow_uuid = ?", workflowUUID).First(&row).Error
	if isNotFound(err) {
		return model.Workflow{}, userErrorf("workflow %q not found", workflowUUID)
	}
	if err != nil {
		return model.Workflow{}, fmt.Errorf("get workflow %q: %w", workflowUUID, err)
	}
	return rowToWorkflow(row)
}

// SetWorkflowStatus persists wf's new status (internal/statemachine.Store).
// StartTime is set on the first transition into RUNNING, EndTime on the
// first transition into a terminal status; neither is overwritten once set.
func (s *Store) SetWorkflowStatus(ctx context.Context, workflowUUID string, status model.WorkflowStatus) error {
	updates := map[string]any{"status": string(status)}
	now := s.now()
	if status == model.WorkflowRunning {
		err := s.db.WithContext(ctx).Model(&workflowRow{}).
			Where("workflow_uuid = ? AND start_time IS NULL", workflowUUID).
			Update("start_time", now).Error
		if err != nil {
			return fmt.Errorf("set workflow %q start time: %w", workflowUUID, err)
		}
	}
	if status.Finished() {
		err := s.db.WithContext(ctx).Model(&workflowRow{}).
			Where("workflow_uuid = ? AND end_time IS NULL", workflowUUID).
			Update("end_time", now).Error
		if err != nil {
			return fmt.Errorf("set workflow %q end time: %w", workflowUUID, err)
		}
	}
	res := s.db.WithContext(ctx).Model(&workflowRow{}).Where("workflow_uuid = ?", workflowUUID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set workflow %q status: %w", workflowUUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return userErrorf("workflow %q not found", workflowUUID)
	}
	return nil
}

// CompareAndSetCancelledBy implements internal/statemachine.CancelStore: it
// records cancelledBy only if the workflow has no cancellation recorded
// yet, so a race between two cancel requests (or a retry) is idempotent —
// the first writer wins and every caller observes applied=false afterward.
func (s *Store) CompareAndSetCancelledBy(ctx context.Context, workflowUUID, cancelledBy string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&workflowRow{}).
		Where("workflow_uuid = ? AND cancelled_by = ?", workflowUUID, "").
		Update("cancelled_by", cancelledBy)
	if res.Error != nil {
		return false, fmt.Errorf("compare-and-set cancelled_by for %q: %w", workflowUUID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListWorkflowsFilter narrows ListWorkflows (§6 `workflow list`'s
// --users/--pools/--statuses/--submitted-{before,after}/--offset/--limit/
// --order flags). Zero-value fields/empty slices are not filtered on.
type ListWorkflowsFilter struct {
	Users            []string
	Pools            []string
	Statuses         []model.WorkflowStatus
	SubmittedAfter   *time.Time
	SubmittedBefore  *time.Time
	Offset           int
	Limit            int
	Descending       bool // §6 --order {asc,desc}; most recently submitted first by default
}

// ListWorkflows returns workflows matching filter.
func (s *Store) ListWorkflows(ctx context.Context, filter ListWorkflowsFilter) ([]model.Workflow, error) {
	q := s.db.WithContext(ctx).Model(&workflowRow{})
	if len(filter.Users) > 0 {
		q = q.Where("submitted_by IN ?", filter.Users)
	}
	if len(filter.Pools) > 0 {
		q = q.Where("pool IN ?", filter.Pools)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	if filter.SubmittedAfter != nil {
		q = q.Where("submit_time >= ?", *filter.SubmittedAfter)
	}
	if filter.SubmittedBefore != nil {
		q = q.Where("submit_time <= ?", *filter.SubmittedBefore)
	}
	if filter.Descending {
		q = q.Order("submit_time DESC")
	} else {
		q = q.Order("submit_time ASC")
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []workflowRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	out := make([]model.Workflow, 0, len(rows))
	for _, row := range rows {
		wf, err := rowToWorkflow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}
