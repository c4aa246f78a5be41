// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmo-project/osmo/internal/model"
)

const sampleWorkflow = `
version: 2
name: train-model
resources:
  default:
    cpu: 2
    gpu: 1
groups:
  - name: fit
    tasks:
      - name: train
        image: registry.example.com/train:latest
`

func TestCompile_EndToEnd(t *testing.T) {
	pool := model.Pool{
		Name:            "gpu-pool",
		DefaultPlatform: "default",
		Platforms: map[string]model.Platform{
			"default": {Name: "default"},
		},
	}
	templates := func(name string) (model.PodTemplate, bool) { return model.PodTemplate{}, false }

	wf, err := Compile(sampleWorkflow, Options{
		Pool:      pool,
		Templates: templates,
		Limits:    Limits{MaxNumTasks: 10},
	})
	require.NoError(t, err)
	require.Len(t, wf.Groups, 1)
	require.Len(t, wf.Groups[0].Tasks, 1)

	pod := wf.Groups[0].Tasks[0].Pod
	containers := pod["containers"].([]any)
	require.Len(t, containers, 1)
	assert.Equal(t, "registry.example.com/train:latest", containers[0].(map[string]any)["image"])
}

const twoTaskWorkflow = `
version: 2
name: train-model
resources:
  default:
    cpu: 2
groups:
  - name: fit
    tasks:
      - name: prep
        image: img:latest
      - name: train
        image: img:latest
`

func TestCompile_RejectsWhenTaskLimitExceeded(t *testing.T) {
	pool := model.Pool{DefaultPlatform: "default", Platforms: map[string]model.Platform{"default": {}}}
	_, err := Compile(twoTaskWorkflow, Options{
		Pool:      pool,
		Templates: func(string) (model.PodTemplate, bool) { return model.PodTemplate{}, false },
		Limits:    Limits{MaxNumTasks: 0},
	})
	require.NoError(t, err) // MaxNumTasks <= 0 means unbounded

	_, err = Compile(twoTaskWorkflow, Options{
		Pool:      pool,
		Templates: func(string) (model.PodTemplate, bool) { return model.PodTemplate{}, false },
		Limits:    Limits{MaxNumTasks: 1},
	})
	require.Error(t, err)
	assert.True(t, IsUserError(err))
}

func TestResolvePod_MergesCommonPodTemplateByContainerName(t *testing.T) {
	task := model.TaskSpec{Name: "t", Image: "img:latest"}
	resourceSpec := model.ResourceSpec{CPU: 2, Memory: 4 << 30}
	pool := model.Pool{CommonPodTemplate: []string{"sidecar"}}
	platform := model.Platform{}
	templates := func(name string) (model.PodTemplate, bool) {
		if name != "sidecar" {
			return model.PodTemplate{}, false
		}
		return model.PodTemplate{
			Name: "sidecar",
			Spec: map[string]any{
				"containers": []any{
					map[string]any{"name": "user", "resources": map[string]any{"limits": map[string]any{"memory": "{{USER_MEMORY}}"}}},
					map[string]any{"name": "log-shipper", "image": "shipper:latest"},
				},
			},
		}, true
	}

	pod, err := ResolvePod(task, resourceSpec, pool, platform, templates)
	require.NoError(t, err)

	containers := pod["containers"].([]any)
	require.Len(t, containers, 2)

	byName := map[string]map[string]any{}
	for _, c := range containers {
		m := c.(map[string]any)
		byName[m["name"].(string)] = m
	}
	wantUser := map[string]any{
		"name":  "user",
		"image": "img:latest",
		"resources": map[string]any{
			"limits": map[string]any{"memory": "4Gi"},
		},
	}
	if diff := cmp.Diff(wantUser, byName["user"]); diff != "" {
		t.Errorf("merged user container mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "shipper:latest", byName["log-shipper"]["image"])
}

func TestResolvePod_AppliesCacheVolumeFragment(t *testing.T) {
	task := model.TaskSpec{Name: "t", Image: "img"}
	resourceSpec := model.ResourceSpec{CacheSize: 10 << 30}
	pod, err := ResolvePod(task, resourceSpec, model.Pool{}, model.Platform{}, func(string) (model.PodTemplate, bool) { return model.PodTemplate{}, false })
	require.NoError(t, err)

	volumes := pod["volumes"].([]any)
	require.Len(t, volumes, 1)
	assert.Equal(t, "osmo-cache", volumes[0].(map[string]any)["name"])
}
