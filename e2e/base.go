package e2e

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"campuschat/blob"
	"campuschat/directory"
	"campuschat/identity"
	"campuschat/moderation"
	"campuschat/profile"
	"campuschat/resolver"
	"campuschat/search"
	"campuschat/session"
	"campuschat/store"
	"campuschat/stream"
)

// BaseSuite wires a complete in-process chat core against a throwaway
// BadgerDB and Bluge index, one stack shared by every step of a scenario.
type BaseSuite struct {
	suite.Suite
	Config Config

	Log      *slog.Logger
	DB       *badger.DB
	Store    *store.Store
	Provider *identity.Provider
	Profiles *profile.Service
	Stream   *stream.Stream
	Resolver *resolver.Resolver
	Index    *search.Index

	writer *bluge.Writer
}

func (s *BaseSuite) SetupSuite() {
	cfg, err := LoadConfig()
	s.Require().NoError(err)
	s.Config = cfg

	s.Log = logs.GetLoggerFromLevel(slog.LevelWarn)

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)
	s.DB = db

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)
	s.writer = writer

	s.Store = store.New(db, s.Log)
	s.Provider = identity.NewProvider(db, s.Log, identity.NewTokenSigner("e2e-secret", time.Hour))

	blobs := blob.NewDiskStore(s.T().TempDir(), "https://blobs.e2e")
	s.Profiles = profile.NewService(s.Store, blobs, s.Log)

	moderator, err := moderation.NewModerator([]string{"stupid"}, '*')
	s.Require().NoError(err)

	s.Index = search.NewIndex(writer, s.Log)
	s.Stream = stream.New(s.Store, s.Log, moderator, s.Index)
	s.Resolver = resolver.New(s.Store, s.Log)
}

func (s *BaseSuite) TearDownSuite() {
	if s.writer != nil {
		_ = s.writer.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// NewManager builds a per-device session manager on the shared backend.
// Each simulated device gets its own, the way each browser tab would.
func (s *BaseSuite) NewManager() *session.Manager {
	return session.NewManager(s.Store, s.Provider, session.NewKeystore(s.DB), s.Log, s.Config.SessionTimeout)
}

// NewDirectory builds a directory bound to the shared profile service.
func (s *BaseSuite) NewDirectory() *directory.Directory {
	return directory.New(s.Store, s.Profiles, s.Log)
}

// Step prints a colorized scenario header so failures are easy to place.
func (s *BaseSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("=== %s ===", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)
	s.Run(name, fn)
}
