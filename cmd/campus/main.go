package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"

	"campuschat/blob"
	"campuschat/directory"
	"campuschat/domain"
	"campuschat/identity"
	"campuschat/internal"
	"campuschat/moderation"
	"campuschat/profile"
	"campuschat/runtime/workers"
	"campuschat/search"
	"campuschat/session"
	"campuschat/store"
	"campuschat/stream"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// Thin wrapper: run() owns the lifecycle so defers always execute
	// before the process exits.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "campus terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		database.StartDebugServer(db, config.DebugPort, "/inspect", documentMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Core components
	docs := store.New(db, logger)
	signer := identity.NewTokenSigner(config.JWTSecret, config.AuthTokenDuration)
	provider := identity.NewProvider(db, logger, signer)
	keys := session.NewKeystore(db)
	manager := session.NewManager(docs, provider, keys, logger, config.SessionTimeout)

	blobs := blob.NewDiskStore(config.BlobRoot, config.BlobBaseURL)
	profiles := profile.NewService(docs, blobs, logger)
	dir := directory.New(docs, profiles, logger)
	defer dir.Stop()

	var moderator *moderation.Moderator
	if len(config.CensoredWords) > 0 {
		moderator, err = moderation.NewModerator(config.CensoredWords, replacement)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation word list: %w", err)
		}
	}
	index := search.NewIndex(blugeWriter, logger)
	msgs := stream.New(docs, logger, moderator, index)

	manager.OnRevoked(func(reason string) {
		logger.Warn("Forced logout", "reason", reason)
		stop()
	})

	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(workers.NewHeartbeatWorker(logger, config.HeartbeatInterval))

	// 4. Session: headless login when credentials are provided, otherwise
	// re-bind the revocation watch of the previous run.
	indexer := newRoomIndexer(msgs, index, logger)
	defer indexer.stop()

	if creds := loginCredentials(); creds != nil {
		id, err := manager.Login(ctx, creds.email, creds.password, creds.regNo)
		if err != nil {
			return exitRuntime, fmt.Errorf("login failed: %w", err)
		}
		logger.Info("Session established", "uid", id.UID, "regNo", creds.regNo)

		dir.Start(id.UID, func(snap directory.Snapshot) {
			logger.Info("Directory snapshot",
				"contacts", len(snap.Contacts), "channels", len(snap.Channels))
			indexer.sync(snap)
		})
		supervisor.Add(directory.NewSweepWorker(docs, id.UID, config.SweepInterval, logger))
	} else if err := manager.Resume(); err != nil {
		logger.Warn("Could not resume previous session", "error", err)
	}

	// 5. Blocks until SIGINT/SIGTERM or forced logout.
	supervisor.Run(ctx)
	logger.Info("Shutdown complete")
	return exitOK, nil
}

// roomIndexer keeps the local search index fed: one message subscription
// per room currently visible in the directory. Snapshot deliveries are
// serial; the mutex only orders the final stop against a late sync.
type roomIndexer struct {
	msgs  *stream.Stream
	index *search.Index
	log   *slog.Logger
	subs  map[string]func()
	mu    sync.Mutex
}

func newRoomIndexer(msgs *stream.Stream, index *search.Index, log *slog.Logger) *roomIndexer {
	return &roomIndexer{msgs: msgs, index: index, log: log, subs: make(map[string]func())}
}

func (ri *roomIndexer) sync(snap directory.Snapshot) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	seen := make(map[string]bool)
	for _, roomID := range snapshotRoomIDs(snap) {
		seen[roomID] = true
		if _, ok := ri.subs[roomID]; ok {
			continue
		}
		id := roomID
		ri.subs[id] = ri.msgs.Subscribe(id, func(history []domain.Message) {
			for _, msg := range history {
				if err := ri.index.Add(msg.ID, id, msg.SenderUID, msg.Text, msg.CreatedAt); err != nil {
					ri.log.Warn("Message indexing failed", "message", msg.ID, "error", err)
				}
			}
		})
	}

	for roomID, unsubscribe := range ri.subs {
		if !seen[roomID] {
			unsubscribe()
			delete(ri.subs, roomID)
		}
	}
}

func (ri *roomIndexer) stop() {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	for roomID, unsubscribe := range ri.subs {
		unsubscribe()
		delete(ri.subs, roomID)
	}
}

func snapshotRoomIDs(snap directory.Snapshot) []string {
	ids := make([]string, 0, len(snap.Contacts)+len(snap.Channels))
	for _, c := range snap.Contacts {
		ids = append(ids, c.RoomID)
	}
	for _, ch := range snap.Channels {
		ids = append(ids, ch.RoomID)
	}
	return ids
}

// documentMapper renders a stored JSON document for the debug inspector.
// Credential and recovery keys hold no JSON body worth showing.
func documentMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "doc:"):
		row.Type = "DOC"
	case strings.HasPrefix(key, "sub:"):
		row.Type = "SUB"
	default:
		row.Type = "RAW"
		return row
	}

	var fields map[string]any
	if err := json.Unmarshal(val, &fields); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Detail = fmt.Sprintf("%d fields", len(fields))
	if name, ok := fields["name"].(string); ok && name != "" {
		row.Detail = name
	}
	return row
}

type credentials struct {
	email, password, regNo string
}

// loginCredentials reads the optional headless-login triple; all three
// must be present for a login attempt.
func loginCredentials() *credentials {
	c := credentials{
		email:    os.Getenv("LOGIN_EMAIL"),
		password: os.Getenv("LOGIN_PASSWORD"),
		regNo:    os.Getenv("LOGIN_REG_NO"),
	}
	if c.email == "" || c.password == "" || c.regNo == "" {
		return nil
	}
	return &c
}
