package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"

	"article-valet/handler"
	"article-valet/internal/audiotag"
	"article-valet/internal/integrations/azuretts"
	"article-valet/internal/integrations/paramstore"
	"article-valet/internal/integrations/readability"
	"article-valet/internal/integrations/telegraph"
	"article-valet/internal/integrations/unshorten"
	"article-valet/internal/lifecycle"
	"article-valet/internal/normalize"
	"article-valet/internal/repository"
	"article-valet/internal/transport/telegram"
	"article-valet/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	speechRegion := mustEnv("SPEECH_REGION")
	speechVoice := envStr("SPEECH_VOICE", "en-GB-SoniaNeural")
	mirrorOrigin := envStr("BYPASS_MIRROR_ORIGIN", "https://scribe.rip")
	bypassDomains := envList("BYPASS_DOMAINS", "medium.com")
	shortenerHosts := envList("SHORTENER_HOSTS", "link.medium.com")
	sessionMaxIdle := time.Duration(envInt("SESSION_MAX_IDLE_MINUTES", 60)) * time.Minute

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	transport, err := telegram.New(ctx, ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to connect to Telegram", "err", err)
		os.Exit(1)
	}

	prompter, err := lifecycle.New(transport)
	if err != nil {
		slog.Error("failed to create lifecycle manager", "err", err)
		os.Exit(1)
	}

	normalizer, err := normalize.New(unshorten.NewClient(), mirrorOrigin, bypassDomains, shortenerHosts)
	if err != nil {
		slog.Error("failed to create url normalizer", "err", err)
		os.Exit(1)
	}

	publisher, err := telegraph.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create telegraph client", "err", err)
		os.Exit(1)
	}

	synthesizer, err := azuretts.NewClient(ssmClient, paramPrefix, speechRegion, azuretts.WithVoice(speechVoice))
	if err != nil {
		slog.Error("failed to create speech client", "err", err)
		os.Exit(1)
	}

	sessions := repository.NewSessionStore()

	// ---- Conversation engine ----
	service, err := usecase.NewConversationService(
		sessions,
		normalizer,
		publisher,
		readability.NewExtractor(),
		synthesizer,
		audiotag.NewTagger(),
		transport,
		prompter,
	)
	if err != nil {
		slog.Error("failed to create conversation service", "err", err)
		os.Exit(1)
	}

	dispatcher, err := handler.NewDispatcher(service)
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	slog.Info("article-valet started", "mirror_origin", mirrorOrigin, "bypass_domains", bypassDomains)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx, transport.Updates(gctx))
	})
	g.Go(func() error {
		ticker := time.NewTicker(sessionMaxIdle / 4)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if n := sessions.PruneIdle(sessionMaxIdle); n > 0 {
					slog.Info("pruned idle sessions", "count", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run loop exited", "err", err)
		os.Exit(1)
	}
	slog.Info("article-valet stopped")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envList(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
