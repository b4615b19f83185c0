package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lemonberrylabs/numberhub/pkg/config"
	"github.com/lemonberrylabs/numberhub/pkg/store"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

// backend is everything built from the configuration.
type backend struct {
	svc      *units.Service
	currency *units.Currency
	rates    *units.FileRates
	repo     store.Repository
}

func (r *backend) Close() error {
	return r.repo.Close()
}

// build wires the repository, rate source and converter from cfg.
func build(ctx context.Context, cfg *config.Config) (*backend, error) {
	logger := slog.Default()

	mode, err := cfg.Calc.Angle()
	if err != nil {
		return nil, err
	}

	var repo store.Repository
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := store.NewSQLite(ctx, cfg.Store.Path, logger)
		if err != nil {
			return nil, err
		}
		repo = db
	default:
		repo = store.NewMemory()
	}

	rt := &backend{repo: repo}

	var source units.RateSource
	if cfg.Rates.File != "" {
		fr, err := units.NewFileRates(cfg.Rates.File)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to load rates: %w", err)
		}
		rt.rates = fr
		source = fr
	}

	currencyOpts := []units.CurrencyOption{units.WithCurrencyLogger(logger)}
	if cfg.Rates.Cache != "" {
		currencyOpts = append(currencyOpts, units.WithDiskCache(units.NewDiskRateCache(cfg.Rates.Cache)))
	}
	rt.currency = units.NewCurrency(source, currencyOpts...)

	catalog, err := units.DefaultCatalog()
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	rt.svc = units.NewService(catalog,
		units.WithRepository(repo),
		units.WithCurrency(rt.currency),
		units.WithAngleMode(mode),
		units.WithPrecision(cfg.Calc.Precision),
		units.WithLogger(logger),
	)
	return rt, nil
}
