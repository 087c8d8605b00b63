package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubops/pobot/internal/bus"
	"github.com/clubops/pobot/internal/config"
	"github.com/clubops/pobot/internal/flow"
	"github.com/clubops/pobot/internal/gateway"
	"github.com/clubops/pobot/internal/ledger"
	"github.com/clubops/pobot/internal/notify"
	"github.com/clubops/pobot/internal/roles"
	"github.com/clubops/pobot/internal/session"
)

// Responder answers a single inbound message (allows injection in tests)
type Responder func(ctx context.Context, msg bus.InboundMessage) (string, error)

// ChatOptions for running the local chat REPL with custom dependencies
type ChatOptions struct {
	Responder Responder
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "pobot",
	Short: "pobot - purchase-order intake bot for the club's budget ledger",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (chat webhook + telegram + maintenance jobs)",
	RunE:  runGateway,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the intake flow locally against the real ledger",
	RunE:  runChat,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a starter config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pobot configuration status",
	RunE:  runStatus,
}

var (
	asFlag   string
	nameFlag string
)

func init() {
	chatCmd.Flags().StringVar(&asFlag, "as", "local@pobot", "Identity to chat as (determines role)")
	chatCmd.Flags().StringVar(&nameFlag, "name", "Local User", "Display name to chat as")
	rootCmd.AddCommand(gatewayCmd, chatCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{})
}

// runChatWithOptions runs the REPL with injectable dependencies for testing
func runChatWithOptions(opts ChatOptions) error {
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	respond := opts.Responder
	if respond == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		repo, err := ledger.NewSheetsLedger(context.Background(), cfg.Ledger)
		if err != nil {
			return fmt.Errorf("create sheets ledger: %w", err)
		}
		engine := flow.NewEngine(repo, session.NewStore(), roles.NewResolver(cfg.Intake),
			notify.NewService(cfg.Notify), cfg.Intake)
		respond = engine.Handle
	}

	ctx := context.Background()

	fmt.Fprintf(stdout, "pobot chat as %s (type 'exit' to quit, '/attach <name>' to send a quote)\n", asFlag)
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		msg := bus.InboundMessage{
			Channel:     "cli",
			Sender:      asFlag,
			DisplayName: nameFlag,
			ChatID:      "cli",
			Timestamp:   time.Now(),
		}
		if name, ok := strings.CutPrefix(input, "/attach "); ok {
			name = strings.TrimSpace(name)
			msg.Attachment = &bus.Attachment{
				Name:        name,
				DownloadURI: "file://" + name,
			}
		} else {
			msg.Text = input
		}

		reply, err := respond(ctx, msg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		if reply != "" {
			fmt.Fprintln(stdout, reply)
		}
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s: set ledger.spreadsheetId and ledger.serviceAccountPath\n", cfgPath)
	fmt.Println("  2. Enable a channel under channels (googleChat or telegram)")
	fmt.Println("  3. Run 'pobot chat --as you@club.test' to test against the ledger")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Spreadsheet: %s\n", valueOrUnset(cfg.Ledger.SpreadsheetID))
	fmt.Printf("Budget tab: %s  Actuals tab: %s\n", cfg.Ledger.BudgetTab, cfg.Ledger.ActualsTab)
	fmt.Printf("Google Chat: enabled=%v\n", cfg.Channels.GoogleChat.Enabled)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Departments: %d\n", len(cfg.Intake.Departments))
	fmt.Printf("Admins: %d  Dept-bound: %d  Default: %s\n",
		len(cfg.Intake.Admins), len(cfg.Intake.DeptBound), cfg.Intake.DefaultDepartment)
	if cfg.Notify.WebhookURL != "" {
		fmt.Println("Notify: chat webhook configured")
	} else if cfg.Notify.SMTP.Enabled() {
		fmt.Println("Notify: smtp configured")
	} else {
		fmt.Println("Notify: not configured")
	}

	return nil
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
