// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// ConfigType enumerates the config store's strongly-typed policy object
// kinds (§2).
type ConfigType string

const (
	ConfigService            ConfigType = "service"
	ConfigWorkflow           ConfigType = "workflow"
	ConfigDataset            ConfigType = "dataset"
	ConfigBackend            ConfigType = "backend"
	ConfigPool               ConfigType = "pool"
	ConfigPodTemplate        ConfigType = "pod_template"
	ConfigResourceValidation ConfigType = "resource_validation"
	ConfigBackendTest        ConfigType = "backend_test"
	ConfigRole               ConfigType = "role"
)

// KnownConfigTypes lists every valid ConfigType; the config store rejects
// any type not in this set as a user error.
var KnownConfigTypes = []ConfigType{
	ConfigService, ConfigWorkflow, ConfigDataset, ConfigBackend, ConfigPool,
	ConfigPodTemplate, ConfigResourceValidation, ConfigBackendTest, ConfigRole,
}

// ConfigRevision is one immutable, point-in-time snapshot of a named config
// object (§3, GLOSSARY "Revision"). Every mutation writes a new revision;
// revision numbers are monotonic per (ConfigType, Name) and never reused.
type ConfigRevision struct {
	ConfigType  ConfigType
	Name        string
	Revision    int64
	Data        map[string]any
	Username    string
	Description string
	Tags        map[string]string
	CreatedAt   time.Time
	DeletedAt   *time.Time
	DeletedBy   string
}

// Deleted reports whether this revision has been soft-deleted.
func (r ConfigRevision) Deleted() bool { return r.DeletedAt != nil }
