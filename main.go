package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/schema"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cyber-bartender/server/internal/agent/graph"
	"github.com/cyber-bartender/server/internal/agent/graph/conversations"
	"github.com/cyber-bartender/server/internal/agent/graph/nodes"
	"github.com/cyber-bartender/server/internal/agent/graph/tools"
	"github.com/cyber-bartender/server/internal/agent/model"
	"github.com/cyber-bartender/server/internal/agent/repo"
	"github.com/cyber-bartender/server/internal/core"
	errx "github.com/cyber-bartender/server/internal/core/error"
	"github.com/cyber-bartender/server/internal/retrieval/embedding"
	"github.com/cyber-bartender/server/internal/retrieval/qa"
	"github.com/cyber-bartender/server/internal/retrieval/selfquery"
	"github.com/cyber-bartender/server/internal/retrieval/vectorstore"
	"github.com/cyber-bartender/server/pkg/cocktaildb"
	logx "github.com/cyber-bartender/server/pkg/logger"
	pkgredis "github.com/cyber-bartender/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the bartender,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Agent        model.AgentModelConfig
	Loop         model.AgentLoopConfig
	Conversation model.ConversationConfig
	Memory       model.MemoryConfig

	// Tools
	Retrieval model.RetrievalConfig
	Embedding embedding.Config
	Cocktail  cocktaildb.Config
}

const greeting = "Hello"

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, closeFn, err := build(ctx, envCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build bartender")
	}
	defer closeFn()

	if err := chat(ctx, runner, envCfg.Conversation.DefaultID, os.Stdin); err != nil {
		logx.Error().Err(err).Msg("Chat session ended with error")
	}
}

// build wires models, retrieval, tools and memory into a runner.
func build(ctx context.Context, cfg AppConfig) (*graph.Runner, func(), error) {
	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Agent:   &cfg.Agent,
	})
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.NewGeminiEmbedder(cms.Client, cfg.Embedding)
	if err != nil {
		return nil, nil, err
	}

	store, records, err := vectorstore.Load(ctx, cfg.Retrieval.CorpusPath, embedder)
	if err != nil {
		return nil, nil, err
	}
	if store.Len() == 0 {
		return nil, nil, fmt.Errorf("beer corpus %q is empty", cfg.Retrieval.CorpusPath)
	}
	if cfg.Retrieval.Persist {
		if err := vectorstore.Persist(cfg.Retrieval.CorpusPath, records); err != nil {
			logx.Warn().Err(err).Str("path", cfg.Retrieval.CorpusPath).Msg("Could not persist corpus embeddings")
		}
	}

	constructor, err := selfquery.NewConstructor(cms.Agent, selfquery.DocumentContentDescription, selfquery.BeerAttributes)
	if err != nil {
		return nil, nil, err
	}
	chain, err := qa.NewChain(selfquery.NewRetriever(constructor, store, cfg.Retrieval.TopK), cms.Agent)
	if err != nil {
		return nil, nil, err
	}
	recipes := cocktaildb.NewClient(cfg.Cocktail, nil)

	registry, err := tools.NewRegistry(ctx, tools.GetAgentTools(chain, recipes)...)
	if err != nil {
		return nil, nil, err
	}

	conversationRepo, closeFn, err := newConversationRepo(cfg)
	if err != nil {
		return nil, nil, err
	}

	mm := conversations.NewMessagesManager(conversationRepo, conversations.NewLLMSummarizer(cms.Agent), cfg.Memory)

	runner, err := graph.NewRunner(ctx, &graph.GraphConfig{
		ChatModel:       cms.Agent,
		ModelName:       cms.AgentModelName,
		MessagesManager: mm,
		Registry:        registry,
		Loop:            cfg.Loop,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return runner, closeFn, nil
}

func newConversationRepo(cfg AppConfig) (model.ConversationRepository, func(), error) {
	if !cfg.Redis.Enabled() {
		logx.Info().Msg("REDIS_URL not set; conversations are kept in memory")
		return repo.NewInMemoryConversationRepository(), func() {}, nil
	}

	ttl, err := cfg.Conversation.ParseTTL()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise Redis client: %w", err)
	}
	logx.Info().Msg("Connected to Redis successfully")
	return repo.NewRedisConversationRepository(rdb, ttl), func() { _ = rdb.Close() }, nil
}

func chat(ctx context.Context, runner *graph.Runner, conversationID string, in *os.File) error {
	empty, err := runner.IsEmpty(ctx, conversationID)
	if err != nil {
		return err
	}
	if empty {
		say(ctx, runner, conversationID, greeting)
	} else {
		printHistory(ctx, runner, conversationID)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("you: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			printHistory(ctx, runner, conversationID)
			continue
		case "/reset":
			if err := runner.Reset(ctx, conversationID); err != nil {
				logx.Error().Err(err).Msg("Error resetting conversation")
				continue
			}
			say(ctx, runner, conversationID, greeting)
			continue
		}
		say(ctx, runner, conversationID, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func say(ctx context.Context, runner *graph.Runner, conversationID, query string) {
	answer, err := runner.Turn(ctx, model.QueryInput{ConversationID: conversationID, Query: query})
	switch {
	case errors.Is(err, errx.ErrTurnTimeout):
		logx.Warn().Err(err).Int("status", errx.StatusOf(err)).Str("conversation_id", conversationID).Msg("Turn timed out")
		fmt.Println("assistant: Sorry, that took too long. Please try again.")
	case err != nil:
		logx.Error().Err(err).Int("status", errx.StatusOf(err)).Str("conversation_id", conversationID).Msg("Turn failed")
		fmt.Println("assistant: Sorry, something went wrong. Please try again.")
	default:
		fmt.Printf("assistant: %s\n", answer)
	}
}

func printHistory(ctx context.Context, runner *graph.Runner, conversationID string) {
	msgs, err := runner.History(ctx, conversationID)
	if err != nil {
		logx.Error().Err(err).Msg("Error loading history")
		return
	}
	for _, m := range msgs {
		speaker := "assistant"
		if m.Role == schema.User {
			speaker = "you"
		}
		fmt.Printf("%s: %s\n", speaker, m.Content)
	}
}
