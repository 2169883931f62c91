package container

import (
	"fmt"

	"procsight/app"
	"procsight/domain/core"
	"procsight/internal/causality"
	"procsight/internal/config"
	"procsight/internal/dataset"
	"procsight/internal/fuzzy"
	"procsight/internal/stepdetect"
	"procsight/internal/sysid"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config   *config.Config
	Store    *dataset.Store
	Analysis *app.AnalysisService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	store := dataset.NewStore()

	detector := stepdetect.NewDetector()
	detector.Distance = cfg.Analysis.PeakDistance
	detector.ThresholdFloor = cfg.Analysis.ThresholdFloor

	analysis := app.NewAnalysisService(
		causality.NewRanker(cfg.Analysis.MaxLagCap),
		fuzzy.NewMiner(cfg.Analysis.TopRules),
		sysid.NewRunner(detector, sysid.NewIdentifier()),
		func(key core.SeriesKey) string { return store.ShortName(key) },
	)

	return &Container{
		Config:   cfg,
		Store:    store,
		Analysis: analysis,
	}, nil
}
