// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/osmo-project/osmo/internal/configstore"
	"github.com/osmo-project/osmo/internal/model"
)

// newConfigCmd builds §6's `config <type> {get|set|patch|rollback|diff|
// history}` surface: one identical subcommand tree per model.ConfigType,
// since the config store treats every type's data as an opaque
// map[string]any and the CLI verbs never vary by type.
func newConfigCmd(appRef func() *App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Get, set, and roll back config objects",
	}
	for _, ct := range model.KnownConfigTypes {
		configCmd.AddCommand(newConfigTypeCmd(appRef, ct))
	}
	return configCmd
}

func newConfigTypeCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	typeCmd := &cobra.Command{
		Use:   string(configType),
		Short: fmt.Sprintf("Manage %s config objects", configType),
	}
	typeCmd.AddCommand(
		newConfigGetCmd(appRef, configType),
		newConfigSetCmd(appRef, configType),
		newConfigPatchCmd(appRef, configType),
		newConfigRollbackCmd(appRef, configType),
		newConfigDiffCmd(appRef, configType),
		newConfigHistoryCmd(appRef, configType),
	)
	return typeCmd
}

func newConfigGetCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print the current revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rev, err := appRef().Engine.Config.Get(configType, args[0])
			if err != nil {
				return err
			}
			return printJSON(c, rev)
		},
	}
}

func readDataFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}

// authorizeConfigMutation checks the acting user (the USER env var, the
// same identity already recorded as the revision's Username) against the
// Role config type before any set/patch/rollback is allowed to write a
// new revision. Action names are "config:<type>:<verb>" so a grant can
// scope a role to one config type (e.g. "config:pool:*") or to every
// type via the wildcard action matcher.
func authorizeConfigMutation(appRef func() *App, configType model.ConfigType, verb string) error {
	return appRef().Engine.Authorize(os.Getenv("USER"), "*", fmt.Sprintf("config:%s:%s", configType, verb))
}

func newConfigSetCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	var description string
	setCmd := &cobra.Command{
		Use:   "set <name> <file>",
		Short: "Replace a config object wholesale, writing a new revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			if err := authorizeConfigMutation(appRef, configType, "set"); err != nil {
				return err
			}
			data, err := readDataFile(args[1])
			if err != nil {
				return err
			}
			rev, err := appRef().Engine.Config.Put(configType, args[0], data, os.Getenv("USER"), description, nil)
			if err != nil {
				return err
			}
			return printJSON(c, rev)
		},
	}
	setCmd.Flags().StringVar(&description, "description", "", "note recorded on the new revision")
	return setCmd
}

func newConfigPatchCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	var description string
	patchCmd := &cobra.Command{
		Use:   "patch <name> <file>",
		Short: "Strategic-merge a patch onto the current revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			if err := authorizeConfigMutation(appRef, configType, "patch"); err != nil {
				return err
			}
			patch, err := readDataFile(args[1])
			if err != nil {
				return err
			}
			rev, err := appRef().Engine.Config.Patch(configType, args[0], patch, os.Getenv("USER"), description, nil)
			if err != nil {
				return err
			}
			return printJSON(c, rev)
		},
	}
	patchCmd.Flags().StringVar(&description, "description", "", "note recorded on the new revision")
	return patchCmd
}

func newConfigRollbackCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <name> <revision>",
		Short: "Make an earlier revision current again",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			if err := authorizeConfigMutation(appRef, configType, "rollback"); err != nil {
				return err
			}
			revision, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("revision must be an integer: %w", err)
			}
			rev, err := appRef().Engine.Config.Rollback(configType, args[0], revision, os.Getenv("USER"))
			if err != nil {
				return err
			}
			return printJSON(c, rev)
		},
	}
}

// configYAML renders a revision's Data as YAML, the format operators
// actually read diffs in (the store itself holds it as JSON-friendly
// map[string]any).
func configYAML(rev model.ConfigRevision) (string, error) {
	out, err := yaml.Marshal(rev.Data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func newConfigDiffCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	var against int64
	diffCmd := &cobra.Command{
		Use:   "diff <name>",
		Short: "Unified diff between the current revision and an earlier one",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store := appRef().Engine.Config

			current, err := store.Get(configType, args[0])
			if err != nil {
				return err
			}

			var before model.ConfigRevision
			if against > 0 {
				history, err := store.History(configstore.HistoryFilter{ConfigType: configType, Name: args[0], IncludeDeleted: true})
				if err != nil {
					return err
				}
				found := false
				for _, rev := range history {
					if rev.Revision == against {
						before = rev
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("revision %d not found for %s/%s", against, configType, args[0])
				}
			}

			beforeYAML, err := configYAML(before)
			if err != nil {
				return err
			}
			afterYAML, err := configYAML(current)
			if err != nil {
				return err
			}

			diff := difflib.UnifiedDiff{
				A:        difflib.SplitLines(beforeYAML),
				B:        difflib.SplitLines(afterYAML),
				FromFile: fmt.Sprintf("%s/%s@%d", configType, args[0], before.Revision),
				ToFile:   fmt.Sprintf("%s/%s@%d", configType, args[0], current.Revision),
				Context:  3,
			}
			text, err := difflib.GetUnifiedDiffString(diff)
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), text)
			return nil
		},
	}
	diffCmd.Flags().Int64Var(&against, "against", 0, "revision to diff against (defaults to an empty document)")
	return diffCmd
}

func newConfigHistoryCmd(appRef func() *App, configType model.ConfigType) *cobra.Command {
	var (
		limit          int
		includeDeleted bool
	)
	historyCmd := &cobra.Command{
		Use:   "history <name>",
		Short: "List every revision of a config object, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			revisions, err := appRef().Engine.Config.History(configstore.HistoryFilter{
				ConfigType:     configType,
				Name:           args[0],
				Limit:          limit,
				IncludeDeleted: includeDeleted,
			})
			if err != nil {
				return err
			}
			return printJSON(c, revisions)
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 0, "limit the number of revisions returned")
	historyCmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "include soft-deleted revisions")
	return historyCmd
}
