// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// SetLastHeartbeat implements internal/backend.HeartbeatStore: it upserts
// the backend's last-seen heartbeat, read back by model.Backend.Online to
// decide admission/scheduling eligibility (§4.8).
func (s *Store) SetLastHeartbeat(ctx context.Context, backendName string, at time.Time) error {
	row := backendHeartbeatRow{BackendName: backendName, LastHeartbeat: at}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "backend_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_heartbeat"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set last heartbeat for %q: %w", backendName, err)
	}
	return nil
}

// LastHeartbeat returns the most recently recorded heartbeat for
// backendName, or the zero time if none has ever been recorded.
func (s *Store) LastHeartbeat(ctx context.Context, backendName string) (time.Time, error) {
	var row backendHeartbeatRow
	err := s.db.WithContext(ctx).Where("backend_name = ?", backendName).First(&row).Error
	if isNotFound(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last heartbeat for %q: %w", backendName, err)
	}
	return row.LastHeartbeat, nil
}
