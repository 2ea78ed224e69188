package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/continuity/internal/adapters/embed"
	"github.com/bnema/continuity/internal/adapters/journal"
	"github.com/bnema/continuity/internal/adapters/repo/jsonfile"
	"github.com/bnema/continuity/internal/application"
	"github.com/bnema/continuity/internal/config"
	"github.com/bnema/continuity/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	cfg       config.Config
	tracker   *application.TrackerService
	data      *application.DataService
	assembler *application.Assembler
	journal   *journal.Journal
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire config: %w", err)
	}

	indexRepo, err := jsonfile.NewIndexRepository(cfg.Storage.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("wire session index: %w", err)
	}
	dataRepo, err := jsonfile.NewDataRepository(cfg.Storage.SessionDataDir)
	if err != nil {
		return nil, fmt.Errorf("wire session data: %w", err)
	}

	clock := ports.SystemClock{}
	tracker := application.NewTrackerService(indexRepo, clock, application.TrackerConfig{
		SessionTimeout: cfg.Session.Timeout,
	})
	data := application.NewDataService(tracker, dataRepo, clock)

	embedder, err := embed.NewClient(embed.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Dim:     cfg.Embedding.Dim,
		Timeout: cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("wire embedding client: %w", err)
	}

	providers := []ports.Provider{
		application.NewSessionProvider(tracker, data),
		application.NewBoundaryProvider(tracker),
		application.NewSemanticProvider(embedder),
	}
	assembler, err := application.NewAssembler(providers, data, embedder, clock, application.AssemblerConfig{
		CacheTTL:          cfg.Assembler.CacheTTL,
		CompressionMaxLen: cfg.Assembler.CompressionMaxLen,
	})
	if err != nil {
		return nil, fmt.Errorf("wire assembler: %w", err)
	}

	var j *journal.Journal
	retry := application.DefaultRetryPolicy()
	if err := retry.Do(context.Background(), "open journal", func() error {
		var openErr error
		j, openErr = journal.New(journal.Config{
			ChunksPath:     cfg.Storage.ChunksPath,
			EmbeddingsPath: cfg.Storage.EmbeddingsPath,
			BinaryDir:      cfg.Storage.BinaryDir,
			BinaryVectors:  cfg.Storage.BinaryVectors,
			BufferMax:      cfg.Journal.BufferMax,
			MaxBatchSize:   cfg.Journal.MaxBatchSize,
			FlushInterval:  cfg.Journal.FlushInterval,
		}, clock)
		return openErr
	}); err != nil {
		return nil, fmt.Errorf("wire journal: %w", err)
	}

	return &app{
		cfg:       cfg,
		tracker:   tracker,
		data:      data,
		assembler: assembler,
		journal:   j,
	}, nil
}
