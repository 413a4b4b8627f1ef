package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/command/core"
	musiccmd "github.com/keshon/groovebox/internal/command/music"
	"github.com/keshon/groovebox/internal/config"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/internal/logging"
	"github.com/keshon/groovebox/internal/metrics"
	"github.com/keshon/groovebox/internal/middleware"
	"github.com/keshon/groovebox/internal/music"
	"github.com/keshon/groovebox/internal/music/resolver"
	"github.com/keshon/groovebox/internal/playback"
	"github.com/keshon/groovebox/internal/storage"
	"github.com/keshon/groovebox/internal/version"
	"github.com/keshon/groovebox/internal/voice"
	"github.com/keshon/groovebox/pkg/cmd"
	"github.com/keshon/groovebox/pkg/jobmgr"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var envFile string
	c := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve music commands",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, envFile)
		},
	}
	c.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	return c
}

func run(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := logging.Setup(cfg.LogLevel)
	log.Info("Starting", slog.String("app", version.AppName), slog.String("version", version.String()))

	store, err := storage.New(cfg.StoragePath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()

	reg := playback.NewRegistry(cfg.RegistryShards, playback.WithLogger(log), playback.WithObserver(m))
	disp := playback.NewDispatcher(reg, cfg.DispatchWorkers, playback.WithLogger(log), playback.WithObserver(m))

	res := resolver.New(resolver.Config{
		Attempts: cfg.ResolveAttempts,
		RPS:      cfg.ResolveRPS,
		Proxy:    cfg.YouTubeProxy,
	}, log)

	commands := cmd.NewRegistry()
	bot, err := discord.NewBot(commands, discord.Options{
		Token:             cfg.DiscordToken,
		InitSlashCommands: cfg.InitSlashCommands,
		Logger:            log,
	})
	if err != nil {
		return err
	}

	engine := voice.New(bot.Session(), res, voice.WithLogger(log))
	defer engine.Close()

	svc := music.NewService(reg, disp, res, engine, engine,
		music.WithLogger(log),
		music.WithRecorder(m))
	disp.OnFailure(svc.AdvanceFailed)

	if err := registerCommands(commands, bot, svc, store, m, log); err != nil {
		return err
	}

	jobsLog := log.With(slog.String("component", "jobs"))
	jobs := jobmgr.NewManager(ctx, func(msg string) {
		if strings.HasPrefix(msg, "error:") {
			jobsLog.Error(msg)
			return
		}
		jobsLog.Info(msg)
	})
	defer jobs.StopAll()

	if err := jobs.StartAsync("dispatcher", disp.Run); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		if err := jobs.StartAsync("metrics", func(ctx context.Context) error {
			return m.Serve(ctx, cfg.MetricsAddr, log)
		}); err != nil {
			return err
		}
	}

	err = bot.Run(ctx)
	leaveAll(reg, svc, log)
	return err
}

func registerCommands(commands *cmd.Registry, bot *discord.Bot, svc *music.Service, store *storage.Storage, m *metrics.Metrics, log *slog.Logger) error {
	logged := middleware.WithCommandLogger(store, m, log)

	for _, c := range []command.DiscordCommand{
		&musiccmd.MusicCommand{Music: svc, Voice: bot, Log: log},
		&core.HistoryCommand{Storage: store},
	} {
		if err := command.RegisterCommand(commands, c, middleware.WithGuildOnly(), logged); err != nil {
			return err
		}
	}
	for _, c := range []command.DiscordCommand{
		&core.PingCommand{},
		&core.HelpCommand{Commands: commands},
	} {
		if err := command.RegisterCommand(commands, c, logged); err != nil {
			return err
		}
	}
	return nil
}

// leaveAll drops every guild's queue and stops its tracks before the voice
// connections close.
func leaveAll(reg *playback.Registry, svc *music.Service, log *slog.Logger) {
	var guilds []playback.GuildID
	reg.Range(func(id playback.GuildID, _ *playback.GuildState) bool {
		guilds = append(guilds, id)
		return true
	})
	for _, id := range guilds {
		n, err := svc.Leave(context.Background(), id)
		if err != nil && !errors.Is(err, music.ErrNotConnected) {
			log.Warn("Leave on shutdown failed", slog.String("guild", id.String()), slog.Int("tracks", n), slog.Any("err", err))
		}
	}
}
