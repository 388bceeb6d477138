package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/engine"
	"github.com/voxgate/voxgate/internal/gateway"
	"github.com/voxgate/voxgate/internal/guard"
	"github.com/voxgate/voxgate/internal/llm"
	"github.com/voxgate/voxgate/internal/notify"
	"github.com/voxgate/voxgate/internal/store"
	"github.com/voxgate/voxgate/internal/voice"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Block until SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Conversation store and call log, SQLite or in-memory.
			var (
				sessions store.Store
				callLog  store.CallLog
			)
			if cfg.Session.Store == "sqlite" {
				dbPath := cfg.Session.DBPath
				if !filepath.IsAbs(dbPath) {
					dbPath = filepath.Join(paths.Data, dbPath)
				}
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteStore(db)
				callLog = store.NewSQLiteCallLog(db)
				log.Info().Str("path", dbPath).Msg("using SQLite conversation store")
			} else {
				sessions = store.NewMemoryStore()
				callLog = store.NewMemoryCallLog()
				log.Info().Msg("using in-memory conversation store")
			}

			// Inbound guard with its background sweeper.
			g := guard.New(
				time.Duration(cfg.Guard.DedupeWindowMinutes)*time.Minute,
				time.Duration(cfg.Guard.MinIntervalSeconds)*time.Second,
				log,
			)
			go g.Run(ctx, time.Duration(cfg.Guard.SweepMinutes)*time.Minute)

			client := llm.NewOpenAIClient(llm.OpenAIConfig{
				BaseURL:     cfg.LLM.BaseURL,
				APIKey:      cfg.LLM.APIKey,
				Model:       cfg.LLM.Model,
				AssistantID: cfg.LLM.AssistantID,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
			}, log)
			var threads llm.ThreadClient
			if cfg.LLM.AssistantID != "" {
				threads = client
				log.Info().Str("assistantId", cfg.LLM.AssistantID).Msg("using hosted-thread completions")
			}

			// Outbound delivery, direct or relayed.
			var (
				notifier notify.Notifier
				relay    notify.EventRelay
			)
			if cfg.Delivery.Mode == "relay" {
				rn := notify.NewRelayNotifier(cfg.Delivery.RelayURL, log)
				notifier = rn
				relay = rn
				log.Info().Str("url", cfg.Delivery.RelayURL).Msg("using relay delivery")
			} else {
				notifier = notify.NewDirectNotifier(notify.DirectConfig{
					AccountSID: cfg.Delivery.Twilio.AccountSID,
					AuthToken:  cfg.Delivery.Twilio.AuthToken,
					FromNumber: cfg.Delivery.Twilio.FromNumber,
				}, log)
				log.Info().Msg("using direct delivery")
			}

			hub := gateway.NewHub(log.Sub("observers"))

			eng := engine.New(engine.Config{
				SystemPrompt: cfg.LLM.SystemPrompt,
				FromNumber:   cfg.Delivery.Twilio.FromNumber,
				Threaded:     cfg.LLM.AssistantID != "",
				EndKeywords:  cfg.LLM.EndKeywords,
			}, sessions, g, client, threads, notifier, hub, log)

			opts := []gateway.ServerOption{
				gateway.WithHub(hub),
				gateway.WithCallLog(callLog),
			}
			if relay != nil {
				opts = append(opts, gateway.WithRelay(relay))
			}

			if cfg.Voice.Enabled {
				bridge := voice.NewBridge(voice.Config{
					APIKey:       cfg.LLM.APIKey,
					RealtimeURL:  cfg.Voice.RealtimeURL,
					VoiceProfile: cfg.Voice.VoiceProfile,
					Instructions: cfg.Voice.Instructions,
					Greeting:     cfg.Voice.Greeting,
				}, client, callLog, log)
				bridge.Outcome = eng.RecordCallOutcome
				bridge.Observer = hub
				bridge.Relay = relay
				opts = append(opts, gateway.WithBridge(bridge))
			}

			srv := gateway.New(cfg, eng, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	cmd.Flags().StringVar(&host, "host", "", "override server.host")
	return cmd
}
