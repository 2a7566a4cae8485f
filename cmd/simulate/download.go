package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	appconfig "github.com/wolfman30/patientsim/internal/config"
	"github.com/wolfman30/patientsim/internal/dataset"
	"github.com/wolfman30/patientsim/internal/persona"
	"github.com/wolfman30/patientsim/pkg/logging"
)

func cmdDownload(ctx context.Context, cmd *cli.Command) error {
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	version := cfg.DatasetVersion
	if cmd.IsSet("version") {
		version = cmd.String("version")
	}
	dir := cfg.DatasetDir
	if cmd.IsSet("dir") {
		dir = cmd.String("dir")
	}

	d := dataset.NewDownloader(cfg.PhysioNetUsername, cfg.PhysioNetPassword, dataset.WithLogger(logger))
	path, err := d.DownloadProfileTo(ctx, version, dir)
	if err != nil {
		return err
	}

	profiles, err := dataset.LoadProfiles(path)
	if err != nil {
		return fmt.Errorf("downloaded file is not a valid dataset: %w", err)
	}
	fmt.Printf("%s (%d profiles)\n", path, len(profiles))
	return nil
}

func cmdVisits(_ context.Context, _ *cli.Command) error {
	for _, v := range persona.VisitTypes() {
		visit, _ := v.Describe()
		fmt.Printf("%-22s %s\n", v, visit.Label)
	}
	return nil
}
