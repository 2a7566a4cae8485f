package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/patientsim/cmd/mainconfig"
	appconfig "github.com/wolfman30/patientsim/internal/config"
	"github.com/wolfman30/patientsim/internal/llm"
	"github.com/wolfman30/patientsim/pkg/logging"
)

// llmtest sends one short patient exchange to each model named on the
// command line (or PATIENT_MODEL and DOCTOR_MODEL) and prints the reply.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	models := os.Args[1:]
	if len(models) == 0 {
		models = []string{cfg.PatientModel, cfg.DoctorModel}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	provider := cfg.ProviderConfig()
	req := llm.Request{
		System: "You are a patient in an emergency department. Answer in one sentence.",
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: "Hello, how can I help you?"},
		},
		Temperature: float32(cfg.PatientTemperature),
		MaxTokens:   200,
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("LLM Provider Test")
	fmt.Println(strings.Repeat("=", 60))

	failed := 0
	for i, model := range models {
		fmt.Printf("\n[%d] %s\n", i+1, model)
		family, err := llm.ResolveFamily(model, cfg.Routing())
		if err != nil {
			fmt.Printf("    unsupported: %v\n", err)
			failed++
			continue
		}
		if family == llm.FamilyBedrock && provider.AWS == nil {
			awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				fmt.Printf("    AWS config: %v\n", err)
				failed++
				continue
			}
			provider.AWS = &awsCfg
		}
		client, err := llm.NewClient(ctx, family, provider, logger)
		if err != nil {
			fmt.Printf("    %s client: %v\n", family, err)
			failed++
			continue
		}

		req.Model = model
		if family.SupportsSeed() {
			seed := cfg.Seed
			req.Seed = &seed
		} else {
			req.Seed = nil
		}

		start := time.Now()
		resp, err := client.Complete(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("    %s error: %v\n", family, err)
			failed++
			continue
		}
		fmt.Printf("    %s response (%v):\n", family, elapsed.Round(time.Millisecond))
		fmt.Printf("    %s\n", strings.TrimSpace(resp.Text))
		fmt.Printf("    Tokens: in=%d, out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("%d of %d models responded\n", len(models)-failed, len(models))
	if failed > 0 {
		os.Exit(1)
	}
}
