package main

import (
	"github.com/urfave/cli/v3"
)

// version is set via ldflags at build time.
var version = "dev"

// newApp creates the CLI application with all flags and commands.
func newApp() *cli.Command {
	return &cli.Command{
		Name:        "patientsim",
		Usage:       "Simulate doctor-patient consultations between two LLM agents",
		Version:     version,
		UsageText:   "patientsim command [command options]",
		Description: "Settings are read from the environment (and .env); flags override them.",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run one simulated consultation",
				Flags:  runFlags(),
				Action: cmdRun,
			},
			{
				Name:  "download",
				Usage: "Download patient_profile.json from PhysioNet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "version", Usage: "Dataset version (default: DATASET_VERSION)"},
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Destination directory (default: DATASET_DIR)"},
				},
				Action: cmdDownload,
			},
			{
				Name:   "visits",
				Usage:  "List supported visit types",
				Action: cmdVisits,
			},
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "visit-type", Aliases: []string{"t"}, Usage: "emergency_department or outpatient"},
		&cli.StringFlag{Name: "patient-model", Usage: "Model backing the patient agent"},
		&cli.StringFlag{Name: "doctor-model", Usage: "Model backing the doctor, or the reception staff for outpatient visits"},
		&cli.StringFlag{Name: "profile-id", Aliases: []string{"p"}, Usage: "hadm_id of the profile to simulate (default: pick by seed)"},
		&cli.StringFlag{Name: "dataset", Usage: "Path to patient_profile.json"},
		&cli.IntFlag{Name: "max-turns", Aliases: []string{"n"}, Usage: "Maximum number of turns"},
		&cli.Int64Flag{Name: "seed", Usage: "Seed for sampling and profile selection"},
		&cli.BoolFlag{Name: "random-persona", Usage: "Draw persona traits from the seed"},
		&cli.BoolFlag{Name: "random-sampling", Usage: "Do not send a seed to the provider"},
		&cli.DurationFlag{Name: "turn-delay", Usage: "Pause between turns"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the transcript as JSON to this file"},
		&cli.BoolFlag{Name: "plain", Usage: "Print turns without colour"},
	}
}
