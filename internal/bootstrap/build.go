// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/osmo-project/osmo/internal/admission"
	"github.com/osmo-project/osmo/internal/authz"
	"github.com/osmo-project/osmo/internal/backend"
	"github.com/osmo-project/osmo/internal/configstore"
	"github.com/osmo-project/osmo/internal/engine"
	"github.com/osmo-project/osmo/internal/notify"
	"github.com/osmo-project/osmo/internal/procconfig"
	"github.com/osmo-project/osmo/internal/ratelimit"
	"github.com/osmo-project/osmo/internal/render"
	"github.com/osmo-project/osmo/internal/scheduler"
	"github.com/osmo-project/osmo/internal/secrets"
	"github.com/osmo-project/osmo/internal/statemachine"
	"github.com/osmo-project/osmo/internal/store"
)

func newLoader() *procconfig.Loader { return procconfig.NewLoader("OSMO") }

// Built bundles the live Engine plus its per-backend Transports, which
// only cmd/osmo-server's background loops (heartbeat reaper, event
// listeners) need on top of the Engine itself.
type Built struct {
	Engine     *engine.Engine
	Transports map[string]backend.Transport
	Logger     *slog.Logger
}

// Build wires every collaborator named in cfg into a ready Engine. ctx
// only bounds render pool process startup, not the Engine's lifetime.
func Build(ctx context.Context, cfg Config, logger *slog.Logger) (*Built, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st := store.New(db, logger)
	cs := configstore.New(db, logger)

	enforcer, err := authz.New(db, logger)
	if err != nil {
		return nil, fmt.Errorf("build authz enforcer: %w", err)
	}

	keyRing := secrets.NewKeyRing()
	if err := keyRing.Generate(cfg.Secrets.InitialKeyID); err != nil {
		return nil, fmt.Errorf("generate initial MEK: %w", err)
	}

	renderPool, err := render.NewPool(ctx, render.Caps{
		Workers:     cfg.Render.Workers,
		MaxTime:     time.Duration(cfg.Render.MaxTimeMS) * time.Millisecond,
		MemoryLimit: cfg.Render.MemoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("start render pool: %w", err)
	}

	clients, transports := buildBackends(cfg.Backends, cfg.Redis)

	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookHeaders)
	machine := statemachine.New(st, notifier, func(string) bool { return cfg.Notify.WebhookURL != "" })

	admissionBase := admission.Options{
		Engine:        render.NewEngine(),
		StaticCache:   admission.NewStaticAssertionCache(render.NewEngine()),
		SecurityCache: admission.NewPodSecurityCache(),
		Registry: admission.NewRegistryValidator(
			nil,
			ratelimit.NewTokenBucket(cfg.Admission.RegistryBurst, cfg.Admission.RegistryRateLimit),
			cfg.Admission.RegistryDisableHosts,
		),
		CredentialLookup: st,
		UserLimits: admission.UserWorkflowLimits{
			MaxNumWorkflows: cfg.Admission.DefaultMaxWorkflows,
			MaxNumTasks:     cfg.Admission.DefaultMaxTasks,
		},
	}

	eng := engine.New(
		st, cs, keyRing, renderPool, machine,
		applierFor(cfg.Backends, clients),
		backendFor(clients),
		admissionBase,
		enforcer,
		logger,
	)

	return &Built{Engine: eng, Transports: transports, Logger: logger}, nil
}

func buildBackends(cfgs []BackendConfig, redisCfg RedisConfig) (clients map[string]*backend.Client, transports map[string]backend.Transport) {
	channel := backend.RedisActionChannels{Redis: backend.GoRedisClient{Client: redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})}}

	clients = make(map[string]*backend.Client, len(cfgs))
	transports = make(map[string]backend.Transport, len(cfgs))
	for _, b := range cfgs {
		transport := backend.NewHTTPTransport(backend.HTTPTransportConfig{
			BaseURL:            b.BaseURL,
			InsecureSkipVerify: b.InsecureSkipVerify,
		})
		clients[b.Name] = backend.NewClient(b.Name, transport, channel)
		transports[b.Name] = transport
	}
	return clients, transports
}

func applierFor(cfgs []BackendConfig, clients map[string]*backend.Client) engine.ApplierFor {
	caps := make(map[string]scheduler.BackendCapabilities, len(cfgs))
	for _, b := range cfgs {
		caps[b.Name] = scheduler.BackendCapabilities{
			Namespace:        b.Namespace,
			SchedulerName:    b.SchedulerName,
			QueueLabel:       b.QueueLabel,
			SupportsPriority: b.SupportsPriority,
		}
	}
	return func(name string) (scheduler.Applier, scheduler.BackendCapabilities, error) {
		client, ok := clients[name]
		if !ok {
			return nil, scheduler.BackendCapabilities{}, fmt.Errorf("unknown backend %q", name)
		}
		return client, caps[name], nil
	}
}

func backendFor(clients map[string]*backend.Client) engine.BackendFor {
	return func(name string) (backend.Backend, error) {
		client, ok := clients[name]
		if !ok {
			return nil, fmt.Errorf("unknown backend %q", name)
		}
		return client, nil
	}
}
