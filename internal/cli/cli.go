package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tripdesk/internal/api"
	"tripdesk/internal/app"
	"tripdesk/internal/chat"
	"tripdesk/internal/trip"
	"tripdesk/internal/tui"
	"tripdesk/internal/utils"
)

func Run() int {
	if len(os.Args) < 2 {
		return runTUI(os.Args[1:])
	}
	cmd := os.Args[1]
	if len(cmd) > 0 && cmd[0] == '-' {
		return runTUI(os.Args[1:])
	}
	switch cmd {
	case "tui":
		return runTUI(os.Args[2:])
	case "send":
		return runSend(os.Args[2:])
	case "health":
		return runHealth(os.Args[2:])
	case "trips":
		return runTrips(os.Args[2:])
	default:
		usage()
		return 1
	}
}

func usage() {
	fmt.Println("tripdesk <command> [options]")
	fmt.Println("Commands: tui, send, health, trips")
}

func parseConfig(fs *flag.FlagSet, args []string) (app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return cfg, err
	}
	apiURL := fs.String("api-url", cfg.APIURL, "backend base URL")
	dataDir := fs.String("data-dir", cfg.DataDir, "local state directory")
	userID := fs.String("user", cfg.UserID, "user id sent to the backend")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.APIURL = *apiURL
	cfg.DataDir = *dataDir
	cfg.UserID = *userID
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	cfg, err := parseConfig(fs, args)
	if err != nil {
		return 1
	}
	logger := utils.NewLogger(cfg.Logging.Level)
	if err := tui.Run(cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// runSend performs a single chat turn against the active trip and prints the
// reply. Useful for scripting and for poking the backend without the TUI.
func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	cfg, err := parseConfig(fs, args)
	if err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Println("usage: tripdesk send \"message\"")
		return 1
	}
	logger := utils.NewLogger(cfg.Logging.Level)
	repo := trip.NewRepository(trip.NewStore(cfg.DataDir, logger))
	ctrl := chat.NewController(repo, api.NewClient(cfg.APIURL, logger), cfg.UserID, logger)

	turn := ctrl.Send(repo.ActiveID(), fs.Arg(0))
	if turn.Err != nil {
		fmt.Fprintln(os.Stderr, turn.Err.Error())
		return 1
	}
	if turn.Message != nil {
		fmt.Println(chat.DisplayText(turn.Message.Text))
	}
	return 0
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	cfg, err := parseConfig(fs, args)
	if err != nil {
		return 1
	}
	logger := utils.NewLogger(cfg.Logging.Level)
	client := api.NewClient(cfg.APIURL, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		fmt.Println("backend not responding:", err)
		return 1
	}
	fmt.Println("ok")
	return 0
}

func runTrips(args []string) int {
	fs := flag.NewFlagSet("trips", flag.ContinueOnError)
	cfg, err := parseConfig(fs, args)
	if err != nil {
		return 1
	}
	logger := utils.NewLogger(cfg.Logging.Level)
	repo := trip.NewRepository(trip.NewStore(cfg.DataDir, logger))
	active := repo.ActiveID()
	for _, t := range repo.List() {
		marker := "  "
		if t.ID == active {
			marker = "* "
		}
		fmt.Printf("%s%s  %s  (%d messages, updated %s)\n",
			marker, t.ID[:8], t.Title, len(t.Messages), t.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return 0
}
