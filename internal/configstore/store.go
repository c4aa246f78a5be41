// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package configstore implements the Config Store (§4.1): strongly-typed,
// versioned storage with full history for every policy object (pools,
// platforms, pod templates, services, roles, ...). Every mutation writes a
// new immutable revision; nothing is ever overwritten in place. Patch
// composes on top via internal/strategicmerge, following the same
// db-backed-repository shape as the teacher's Casbin action repository.
package configstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/osmo-project/osmo/internal/clone"
	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/strategicmerge"
)

// UserError reports a caller mistake (unknown config type, rename
// collision, rollback of a deleted/missing/current revision) as opposed to
// a storage failure; callers translate this into the taxonomy's "user"
// disposition (§7).
type UserError struct {
	msg string
}

func (e *UserError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err (or anything it wraps) is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// revisionRow is the gorm row backing one ConfigRevision. Data and Tags are
// stored as JSON blobs (see codec.go) since their shape varies per
// ConfigType and is genuinely dynamic, not a fixed schema.
type revisionRow struct {
	ID          uint64 `gorm:"primaryKey"`
	ConfigType  string `gorm:"index:idx_type_name_rev,priority:1"`
	Name        string `gorm:"index:idx_type_name_rev,priority:2"`
	Revision    int64  `gorm:"index:idx_type_name_rev,priority:3"`
	Data        []byte
	Username    string
	Description string
	Tags        []byte
	CreatedAt   time.Time
	DeletedAt   *time.Time
	DeletedBy   string
}

func (revisionRow) TableName() string { return "config_revisions" }

// Store is the gorm-backed Config Store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New builds a Store over db, which must already have revisionRow migrated
// (see Migrate).
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate runs the AutoMigrate for the config store's schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&revisionRow{}); err != nil {
		return fmt.Errorf("migrate config_revisions: %w", err)
	}
	return nil
}

func validConfigType(t model.ConfigType) bool {
	for _, known := range model.KnownConfigTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Get returns the latest non-deleted revision of (configType, name).
func (s *Store) Get(configType model.ConfigType, name string) (model.ConfigRevision, error) {
	if !validConfigType(configType) {
		return model.ConfigRevision{}, userErrorf("unknown config type %q", configType)
	}

	var row revisionRow
	err := s.db.Where("config_type = ? AND name = ? AND deleted_at IS NULL", string(configType), name).
		Order("revision DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConfigRevision{}, userErrorf("config %s/%s not found", configType, name)
	}
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("get %s/%s: %w", configType, name, err)
	}
	return rowToModel(row)
}

// AtTimestamp returns the latest non-deleted revision of (configType, name)
// created at or before ts.
func (s *Store) AtTimestamp(configType model.ConfigType, name string, ts time.Time) (model.ConfigRevision, error) {
	if !validConfigType(configType) {
		return model.ConfigRevision{}, userErrorf("unknown config type %q", configType)
	}

	var row revisionRow
	err := s.db.Where("config_type = ? AND name = ? AND deleted_at IS NULL AND created_at <= ?", string(configType), name, ts).
		Order("revision DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConfigRevision{}, userErrorf("config %s/%s not found at %s", configType, name, ts)
	}
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("get %s/%s at %s: %w", configType, name, ts, err)
	}
	return rowToModel(row)
}

// Put replaces (configType, name) wholesale with data, writing a new
// revision. username/description/tags annotate the new revision.
func (s *Store) Put(configType model.ConfigType, name string, data map[string]any, username, description string, tags map[string]string) (model.ConfigRevision, error) {
	if !validConfigType(configType) {
		return model.ConfigRevision{}, userErrorf("unknown config type %q", configType)
	}
	return s.write(configType, name, clone.DeepCopyMap(data), username, description, tags)
}

// Patch applies a strategic merge patch (§4.1) on top of the current
// revision's data and writes the result as a new revision. If no current
// revision exists, patch is treated as the base (so Patch can also create).
func (s *Store) Patch(configType model.ConfigType, name string, patch map[string]any, username, description string, tags map[string]string) (model.ConfigRevision, error) {
	if !validConfigType(configType) {
		return model.ConfigRevision{}, userErrorf("unknown config type %q", configType)
	}

	base := map[string]any{}
	current, err := s.Get(configType, name)
	if err == nil {
		base = current.Data
	} else if !IsUserError(err) {
		return model.ConfigRevision{}, err
	}

	merged, err := strategicmerge.Merge(base, patch)
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("patch %s/%s: %w", configType, name, err)
	}
	return s.write(configType, name, merged, username, description, tags)
}

func (s *Store) write(configType model.ConfigType, name string, data map[string]any, username, description string, tags map[string]string) (model.ConfigRevision, error) {
	dataBlob, err := encodeJSON(data)
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("encode data for %s/%s: %w", configType, name, err)
	}
	tagsBlob, err := encodeJSON(tags)
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("encode tags for %s/%s: %w", configType, name, err)
	}

	row := revisionRow{
		ConfigType:  string(configType),
		Name:        name,
		Username:    username,
		Description: description,
		Data:        dataBlob,
		Tags:        tagsBlob,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var maxRev int64
		if err := tx.Model(&revisionRow{}).
			Where("config_type = ? AND name = ?", string(configType), name).
			Select("COALESCE(MAX(revision), 0)").Scan(&maxRev).Error; err != nil {
			return fmt.Errorf("determine next revision: %w", err)
		}
		row.Revision = maxRev + 1
		if row.CreatedAt.IsZero() {
			row.CreatedAt = s.now()
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("write %s/%s: %w", configType, name, err)
	}

	s.logger.Info("config store: wrote revision", "config_type", configType, "name", name, "revision", row.Revision)
	return rowToModel(row)
}

// now is overridable in tests; production always uses wall-clock time.
var nowFunc = time.Now

func (s *Store) now() time.Time { return nowFunc() }

// Delete soft-deletes the current (non-deleted) revision of (configType,
// name). It never removes rows and never reuses revision numbers.
func (s *Store) Delete(configType model.ConfigType, name, deletedBy string) error {
	current, err := s.Get(configType, name)
	if err != nil {
		return err
	}

	now := s.now()
	res := s.db.Model(&revisionRow{}).
		Where("config_type = ? AND name = ? AND revision = ?", string(configType), name, current.Revision).
		Updates(map[string]any{"deleted_at": now, "deleted_by": deletedBy})
	if res.Error != nil {
		return fmt.Errorf("delete %s/%s: %w", configType, name, res.Error)
	}
	s.logger.Info("config store: soft-deleted", "config_type", configType, "name", name, "revision", current.Revision)
	return nil
}

// Rename moves every revision of (configType, oldName) to newName. It
// rejects if newName is already in use by a non-deleted revision.
func (s *Store) Rename(configType model.ConfigType, oldName, newName string) error {
	if !validConfigType(configType) {
		return userErrorf("unknown config type %q", configType)
	}
	if _, err := s.Get(configType, newName); err == nil {
		return userErrorf("rename %s/%s: %q already in use", configType, oldName, newName)
	}

	res := s.db.Model(&revisionRow{}).
		Where("config_type = ? AND name = ?", string(configType), oldName).
		Update("name", newName)
	if res.Error != nil {
		return fmt.Errorf("rename %s/%s: %w", configType, oldName, res.Error)
	}
	if res.RowsAffected == 0 {
		return userErrorf("config %s/%s not found", configType, oldName)
	}
	return nil
}

// HistoryFilter narrows History's results. Zero-value fields are not
// filtered on.
type HistoryFilter struct {
	ConfigType     model.ConfigType
	Name           string
	Username       string
	IncludeDeleted bool
	Limit          int
}

// History returns revisions matching filter, newest first.
func (s *Store) History(filter HistoryFilter) ([]model.ConfigRevision, error) {
	q := s.db.Model(&revisionRow{})
	if filter.ConfigType != "" {
		q = q.Where("config_type = ?", string(filter.ConfigType))
	}
	if filter.Name != "" {
		q = q.Where("name = ?", filter.Name)
	}
	if filter.Username != "" {
		q = q.Where("username = ?", filter.Username)
	}
	if !filter.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	q = q.Order("created_at DESC, revision DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []revisionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	out := make([]model.ConfigRevision, 0, len(rows))
	for _, row := range rows {
		rev, err := rowToModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, nil
}

// List returns the latest non-deleted revision of every name under
// configType.
func (s *Store) List(configType model.ConfigType) ([]model.ConfigRevision, error) {
	if !validConfigType(configType) {
		return nil, userErrorf("unknown config type %q", configType)
	}

	var rows []revisionRow
	err := s.db.Raw(`
		SELECT r.* FROM config_revisions r
		INNER JOIN (
			SELECT name, MAX(revision) AS max_rev
			FROM config_revisions
			WHERE config_type = ? AND deleted_at IS NULL
			GROUP BY name
		) latest ON r.name = latest.name AND r.revision = latest.max_rev
		WHERE r.config_type = ? AND r.deleted_at IS NULL
		ORDER BY r.name
	`, string(configType), string(configType)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", configType, err)
	}

	out := make([]model.ConfigRevision, 0, len(rows))
	for _, row := range rows {
		rev, err := rowToModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, nil
}

// Rollback copies the data of (configType, name, revision) forward as a
// brand-new revision. It is forbidden against a deleted or missing
// revision, and against the current revision (a no-op rollback).
func (s *Store) Rollback(configType model.ConfigType, name string, revision int64, username string) (model.ConfigRevision, error) {
	if !validConfigType(configType) {
		return model.ConfigRevision{}, userErrorf("unknown config type %q", configType)
	}

	var row revisionRow
	err := s.db.Where("config_type = ? AND name = ? AND revision = ?", string(configType), name, revision).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConfigRevision{}, userErrorf("rollback %s/%s: revision %d not found", configType, name, revision)
	}
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("rollback %s/%s: %w", configType, name, err)
	}
	if row.DeletedAt != nil {
		return model.ConfigRevision{}, userErrorf("rollback %s/%s: revision %d is deleted", configType, name, revision)
	}

	current, err := s.Get(configType, name)
	if err != nil {
		return model.ConfigRevision{}, err
	}
	if current.Revision == revision {
		return model.ConfigRevision{}, userErrorf("rollback %s/%s: revision %d is already current", configType, name, revision)
	}

	data, err := decodeJSONMap(row.Data)
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("decode revision %d data: %w", revision, err)
	}
	return s.write(configType, name, data, username, fmt.Sprintf("rollback to r%d", revision), nil)
}

func rowToModel(row revisionRow) (model.ConfigRevision, error) {
	data, err := decodeJSONMap(row.Data)
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("decode data: %w", err)
	}
	tags, err := decodeJSONStringMap(row.Tags)
	if err != nil {
		return model.ConfigRevision{}, fmt.Errorf("decode tags: %w", err)
	}
	return model.ConfigRevision{
		ConfigType:  model.ConfigType(row.ConfigType),
		Name:        row.Name,
		Revision:    row.Revision,
		Data:        data,
		Username:    row.Username,
		Description: row.Description,
		Tags:        tags,
		CreatedAt:   row.CreatedAt,
		DeletedAt:   row.DeletedAt,
		DeletedBy:   row.DeletedBy,
	}, nil
}
