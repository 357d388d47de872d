package main

import (
	"os"

	"github.com/dabstractor/jin-sub008/internal/audit"
	"github.com/dabstractor/jin-sub008/internal/config"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

// env bundles the resolved process-wide state every subcommand needs:
// the workspace root, the object store, its transaction manager, the
// active context, and the config it was all built from.
type env struct {
	root string
	cfg  *config.Config
	s    *store.Store
	mgr  *txn.Manager
	ctx  *layer.Context
	al   *audit.Logger
}

// loadEnv resolves the workspace root to the current directory, loads
// config, opens the object store, and loads the workspace's selected
// context, the setup every command below runs before doing anything
// command-specific.
func loadEnv() (*env, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.StoreHome)
	if err != nil {
		return nil, err
	}
	mgr := txn.NewManager(s, root)
	if _, err := mgr.Recover(); err != nil {
		return nil, err
	}
	ctx, err := workspace.LoadContext(root)
	if err != nil {
		return nil, err
	}
	al, err := audit.Open(cfg.AuditLogDir, nil)
	if err != nil {
		return nil, err
	}
	return &env{root: root, cfg: cfg, s: s, mgr: mgr, ctx: ctx, al: al}, nil
}
