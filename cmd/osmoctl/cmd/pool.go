// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

func newPoolCmd(appRef func() *App) *cobra.Command {
	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect pool capacity and quota",
	}
	poolCmd.AddCommand(newPoolQuotaCmd(appRef))
	return poolCmd
}

func newPoolQuotaCmd(appRef func() *App) *cobra.Command {
	var (
		pools    []string
		allPools bool
	)
	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Report guaranteed-quota usage and free capacity per pool",
		RunE: func(c *cobra.Command, args []string) error {
			usage, sum, err := appRef().Engine.Quota(c.Context(), pools, allPools)
			if err != nil {
				return err
			}
			return printJSON(c, struct {
				Pools interface{} `json:"pools"`
				Total interface{} `json:"total"`
			}{Pools: usage, Total: sum})
		},
	}
	quotaCmd.Flags().StringSliceVar(&pools, "pools", nil, "restrict to these pool names")
	quotaCmd.Flags().BoolVar(&allPools, "all-pools", false, "report every pool")
	return quotaCmd
}
