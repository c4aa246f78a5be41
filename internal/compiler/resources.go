// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"

	"github.com/osmo-project/osmo/internal/model"
	"github.com/osmo-project/osmo/internal/strategicmerge"
)

// PodTemplates resolves a named PodTemplate; the compiler doesn't own
// config storage, so callers hand in a lookup (typically backed by
// internal/configstore).
type PodTemplates func(name string) (model.PodTemplate, bool)

// ResolvePod builds a task's effective pod spec (§4.3 step 5): init pod →
// pool's common_pod_template stack (name-merged) → default-variable token
// substitution → platform overlay → cache-volume fragment if requested
// (§9 feature supplement #3).
func ResolvePod(task model.TaskSpec, resourceSpec model.ResourceSpec, pool model.Pool, platform model.Platform, templates PodTemplates) (map[string]any, error) {
	pod := initPod(task)

	containers, _ := pod["containers"].([]any)
	for _, name := range pool.CommonPodTemplate {
		tmpl, ok := templates(name)
		if !ok {
			return nil, userErrorf("pool %q references unknown pod template %q", pool.Name, name)
		}
		tmplContainers, _ := tmpl.Spec["containers"].([]any)
		merged, err := strategicmerge.MergeByName(containers, tmplContainers, "name")
		if err != nil {
			return nil, fmt.Errorf("merge pod template %q: %w", name, err)
		}
		containers = merged

		rest, err := strategicmerge.Merge(withoutContainers(pod), withoutContainers(tmpl.Spec))
		if err != nil {
			return nil, fmt.Errorf("merge pod template %q: %w", name, err)
		}
		rest["containers"] = containers
		pod = rest
	}

	tokens := BuildUserTokens(resourceSpec)
	for k, v := range pool.CommonDefaultVariables {
		tokens[k] = v
	}
	for k, v := range platform.DefaultVariables {
		tokens[k] = v
	}
	pod = ApplyTokens(pod, tokens).(map[string]any)

	if len(platform.PodTemplateOverlay) > 0 {
		merged, err := strategicmerge.Merge(pod, platform.PodTemplateOverlay)
		if err != nil {
			return nil, fmt.Errorf("merge platform overlay: %w", err)
		}
		pod = merged
	}

	if resourceSpec.CacheSize > 0 {
		merged, err := strategicmerge.Merge(pod, cacheVolumeFragment(resourceSpec.CacheSize))
		if err != nil {
			return nil, fmt.Errorf("merge cache volume: %w", err)
		}
		pod = merged
	}

	return pod, nil
}

func withoutContainers(spec map[string]any) map[string]any {
	out := make(map[string]any, len(spec))
	for k, v := range spec {
		if k == "containers" {
			continue
		}
		out[k] = v
	}
	return out
}

// initPod builds the starting pod for a task: image, command, environment,
// and a single user container plus the privileged/host-network/volume-mount
// flags the admission assertions memoize on.
func initPod(task model.TaskSpec) map[string]any {
	env := make([]any, 0, len(task.Environment))
	for k, v := range task.Environment {
		env = append(env, map[string]any{"name": k, "value": v})
	}

	container := map[string]any{
		"name":  "user",
		"image": task.Image,
	}
	if len(task.Command) > 0 {
		cmd := make([]any, len(task.Command))
		for i, c := range task.Command {
			cmd[i] = c
		}
		container["command"] = cmd
	}
	if len(env) > 0 {
		container["env"] = env
	}
	if task.Privileged {
		container["securityContext"] = map[string]any{"privileged": true}
	}

	pod := map[string]any{
		"containers": []any{container},
	}
	if task.HostNetwork {
		pod["hostNetwork"] = true
	}
	if len(task.VolumeMounts) > 0 {
		mounts := make([]any, len(task.VolumeMounts))
		for i, m := range task.VolumeMounts {
			mounts[i] = m
		}
		pod["volumeMounts"] = mounts
	}
	return pod
}

// cacheVolumeFragment is the CacheVolume pod-template fragment merged in
// after the platform overlay when a resource spec requests an ephemeral
// cache volume (§9 feature supplement #3).
func cacheVolumeFragment(cacheSizeBytes int64) map[string]any {
	return map[string]any{
		"volumes": []any{
			map[string]any{
				"name": "osmo-cache",
				"emptyDir": map[string]any{
					"sizeLimit": fmt.Sprintf("%d", cacheSizeBytes),
				},
			},
		},
	}
}
