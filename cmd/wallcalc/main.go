package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/oakmere/wallcal/client"
	"github.com/oakmere/wallcal/pkg/models"
)

var (
	logger    *slog.Logger
	serverURL string
)

func init() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	flag.StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the wallcal server")
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: wallcalc [flags] <command> [args]

Commands:
  login                      Authenticate (reads ADMIN_PASSWORD env) and print a token
  get <year>                 Print the calendar document for a year
  save <year> <file.json>    Replace the calendar document for a year (needs WALLCAL_TOKEN)
  config get                 Print the current configuration
  config set <file.json>     Replace the configuration (needs WALLCAL_TOKEN)
  watch                      Stream broadcast events until interrupted

Flags:
`)
	flag.PrintDefaults()
}

func getClient() (*client.Client, error) {
	c, err := client.NewClient(&client.Config{
		BaseURL: serverURL,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if token := os.Getenv("WALLCAL_TOKEN"); token != "" {
		c.SetToken(token)
	}
	return c, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	c, err := getClient()
	if err != nil {
		logger.Error("Failed to create client", "error", err)
		os.Exit(1)
	}

	switch args[0] {
	case "login":
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			logger.Error("ADMIN_PASSWORD env var is required for login")
			os.Exit(1)
		}
		token, err := c.Login(password)
		if err != nil {
			logger.Error("Login failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)

	case "get":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		year, err := strconv.Atoi(args[1])
		if err != nil {
			logger.Error("Invalid year", "arg", args[1])
			os.Exit(1)
		}
		doc, err := c.GetCalendar(year)
		if err != nil {
			logger.Error("Failed to fetch document", "year", year, "error", err)
			os.Exit(1)
		}
		if err := printJSON(doc); err != nil {
			logger.Error("Failed to print document", "error", err)
			os.Exit(1)
		}

	case "save":
		if len(args) < 3 {
			usage()
			os.Exit(1)
		}
		year, err := strconv.Atoi(args[1])
		if err != nil {
			logger.Error("Invalid year", "arg", args[1])
			os.Exit(1)
		}
		raw, err := os.ReadFile(args[2])
		if err != nil {
			logger.Error("Failed to read document file", "path", args[2], "error", err)
			os.Exit(1)
		}
		var doc models.CalendarDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Error("Document file is not valid JSON", "path", args[2], "error", err)
			os.Exit(1)
		}
		if err := c.SaveCalendar(year, &doc); err != nil {
			logger.Error("Failed to save document", "year", year, "error", err)
			os.Exit(1)
		}
		logger.Info("Document saved", "year", year)

	case "config":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		switch args[1] {
		case "get":
			cfg, err := c.GetConfig()
			if err != nil {
				logger.Error("Failed to fetch configuration", "error", err)
				os.Exit(1)
			}
			if err := printJSON(cfg); err != nil {
				logger.Error("Failed to print configuration", "error", err)
				os.Exit(1)
			}
		case "set":
			if len(args) < 3 {
				usage()
				os.Exit(1)
			}
			raw, err := os.ReadFile(args[2])
			if err != nil {
				logger.Error("Failed to read configuration file", "path", args[2], "error", err)
				os.Exit(1)
			}
			var cfg models.Configuration
			if err := json.Unmarshal(raw, &cfg); err != nil {
				logger.Error("Configuration file is not valid JSON", "path", args[2], "error", err)
				os.Exit(1)
			}
			if err := c.SaveConfig(&cfg); err != nil {
				logger.Error("Failed to save configuration", "error", err)
				os.Exit(1)
			}
			logger.Info("Configuration saved")
		default:
			usage()
			os.Exit(1)
		}

	case "watch":
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger.Info("Watching for broadcasts", "server", serverURL)
		err := c.Subscribe(ctx, func(envelope models.Envelope) {
			fmt.Printf("%s %s\n", envelope.Kind, string(envelope.Payload))
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Subscription ended", "error", err)
			os.Exit(1)
		}

	default:
		usage()
		os.Exit(1)
	}
}
