package main

import (
	"fmt"
	"time"

	"github.com/JoshuaSeidel/taskbridge/internal/config"
	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/provider/boardcard"
	"github.com/JoshuaSeidel/taskbridge/internal/provider/boarditem"
	"github.com/JoshuaSeidel/taskbridge/internal/provider/issuetracker"
	"github.com/JoshuaSeidel/taskbridge/internal/provider/todolist"
	"github.com/JoshuaSeidel/taskbridge/internal/store"
	"github.com/JoshuaSeidel/taskbridge/internal/sync"
)

// app wires the store, adapters and sync engine from configuration. Adapters
// are always registered; an unconfigured one reports itself disconnected
// rather than disappearing from the provider list.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *sync.Engine
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}

	timeout := time.Duration(cfg.Sync.TimeoutSeconds) * time.Second
	registry := provider.NewRegistry(
		issuetracker.New(cfg.Providers.IssueTracker, timeout),
		todolist.New(cfg.Providers.TodoList, timeout),
		boardcard.New(cfg.Providers.BoardCard, timeout),
		boarditem.New(cfg.Providers.BoardItem, timeout),
	)

	return &app{
		cfg:    cfg,
		store:  st,
		engine: sync.NewEngine(st, registry, timeout),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}
