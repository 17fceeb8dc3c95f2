package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftchat/driftchat/internal/ai"
	"github.com/driftchat/driftchat/internal/chat"
	"github.com/driftchat/driftchat/internal/config"
	"github.com/driftchat/driftchat/internal/db"
	"github.com/driftchat/driftchat/internal/httpapi"
	"github.com/driftchat/driftchat/internal/store/rabbitmq"
	"github.com/driftchat/driftchat/internal/store/redisstore"
	"github.com/driftchat/driftchat/internal/stream"
)

func buildRegistry(cfg config.Config) *ai.Registry {
	switch cfg.AIProvider {
	case "", "ollama":
		chatModel := ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel)
		titleModel := ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaTitleModel)
		return ai.NewRegistry(map[string]ai.Provider{
			ai.ModelChat:          chatModel,
			ai.ModelChatReasoning: chatModel,
			ai.ModelTitle:         titleModel,
		})
	case "openrouter":
		p := ai.NewOpenRouterProvider(
			cfg.OpenRouterBaseURL,
			cfg.OpenRouterAPIKey,
			cfg.OpenRouterModel,
			cfg.OpenRouterSiteURL,
			cfg.OpenRouterAppName,
		)
		return ai.NewRegistry(map[string]ai.Provider{
			ai.ModelChat:          p,
			ai.ModelChatReasoning: p,
			ai.ModelTitle:         p,
		})
	default:
		log.Fatalf("unsupported AI_PROVIDER=%q", cfg.AIProvider)
		return nil
	}
}

func buildRelay(cfg config.Config) stream.Relay {
	switch cfg.RelayBackend {
	case "", "memory":
		return stream.NewHub()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstore.NewRelay(client)
	default:
		log.Fatalf("unsupported RELAY_BACKEND=%q", cfg.RelayBackend)
		return nil
	}
}

// rabbitSink adapts the AMQP publisher to the chat event contract.
type rabbitSink struct {
	pub *rabbitmq.Publisher
}

func (s rabbitSink) PublishTurn(ctx context.Context, ev chat.TurnEvent) error {
	return s.pub.PublishTurnEvent(ctx, rabbitmq.TurnEvent{
		Type:      ev.Type,
		ChatID:    ev.ChatID,
		UserID:    ev.UserID,
		StreamID:  ev.StreamID,
		MessageID: ev.MessageID,
		Error:     ev.Error,
	})
}

func main() {
	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	var events chat.EventSink
	if cfg.RabbitEnabled {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit dial: %v", err)
		}
		defer pub.Close()
		events = rabbitSink{pub: pub}
	}

	svc := chat.NewService(chat.NewRepo(gdb), buildRegistry(cfg), buildRelay(cfg), chat.ServiceConfig{
		ContextWindow:   cfg.ChatContextWindowSize,
		StreamTimeout:   time.Duration(cfg.StreamTimeoutSeconds) * time.Second,
		ResumeFreshness: time.Duration(cfg.ResumeFreshnessSecs) * time.Second,
		QuotaPerDay:     cfg.QuotaMessagesPerDay,
		Events:          events,
	})

	router := httpapi.NewRouter(cfg, svc)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
