package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campuschat/directory"
	"campuschat/domain"
	"campuschat/errors"
	"campuschat/resolver"
	"campuschat/search"
	"campuschat/store"
)

type campusChatSuite struct {
	BaseSuite
}

func TestCampusChatSuite(t *testing.T) {
	suite.Run(t, &campusChatSuite{})
}

func (s *campusChatSuite) TestFullCampusChatFlow() {
	ctx := context.Background()

	// Two whitelisted students, one simulated device each.
	aliceDevice := s.NewManager()
	bobDevice := s.NewManager()
	var alice, bob domain.Identity

	s.Step("Whitelist students", func() {
		for _, regNo := range []string{"CS101", "CS102"} {
			err := s.Store.Set(ctx, store.Students, regNo, map[string]any{
				"isRegistered": false,
			}, false)
			s.Require().NoError(err)
		}
	})

	s.Step("Sign up both students", func() {
		var err error
		alice, err = aliceDevice.Signup(ctx, "alice@campus.edu", "ComplexPass123!", "CS101")
		s.Require().NoError(err)
		s.Require().NotEmpty(alice.UID)

		bob, err = bobDevice.Signup(ctx, "bob@campus.edu", "OtherComplex456!", "CS102")
		s.Require().NoError(err)
	})

	s.Step("A second device is locked out while the session is active", func() {
		intruder := s.NewManager()
		_, err := intruder.Login(ctx, "alice@campus.edu", "ComplexPass123!", "CS101")
		s.Require().ErrorIs(err, errors.ErrSessionActive)
	})

	s.Step("Fill in profiles", func() {
		s.Require().NoError(s.Profiles.Save(ctx, domain.Profile{
			UID: alice.UID, Name: "Alice", RegNo: "CS101", Branch: "CSE", Year: "3",
		}))
		s.Require().NoError(s.Profiles.Save(ctx, domain.Profile{
			UID: bob.UID, Name: "Bob", RegNo: "CS102", Branch: "ECE", Year: "2",
		}))
	})

	var roomID string
	s.Step("Bob opens a direct room with Alice", func() {
		sel, err := s.Resolver.OpenDirect(ctx, bob.UID, resolver.CounterpartInfo{
			UID: alice.UID, Name: "Alice",
		})
		s.Require().NoError(err)
		s.Require().Equal(resolver.TabPrivate, sel.Tab)
		roomID = sel.RoomID

		// Opening from the other side lands in the same room.
		again, err := s.Resolver.OpenDirect(ctx, alice.UID, resolver.CounterpartInfo{UID: bob.UID})
		s.Require().NoError(err)
		s.Require().Equal(roomID, again.RoomID)
	})

	aliceRooms := s.NewDirectory()
	defer aliceRooms.Stop()
	var dirMu sync.Mutex
	var dirSnap directory.Snapshot
	latestSnapshot := func() directory.Snapshot {
		dirMu.Lock()
		defer dirMu.Unlock()
		return dirSnap
	}

	s.Step("Alice's directory lists the enriched contact", func() {
		aliceRooms.Start(alice.UID, func(snap directory.Snapshot) {
			dirMu.Lock()
			dirSnap = snap
			dirMu.Unlock()
		})

		s.Require().Eventually(func() bool {
			snap := latestSnapshot()
			return len(snap.Contacts) == 1 && snap.Contacts[0].Name == "Bob"
		}, s.Config.StepTimeout, 10*time.Millisecond)

		s.Require().Equal("Start a conversation", latestSnapshot().Contacts[0].LastMsg)
	})

	s.Step("A sent message reaches the other side censored", func() {
		var msgMu sync.Mutex
		var msgs []domain.Message
		unsubscribe := s.Stream.Subscribe(roomID, func(m []domain.Message) {
			msgMu.Lock()
			msgs = m
			msgMu.Unlock()
		})
		defer unsubscribe()

		s.Stream.Send(roomID, alice.UID, "that assignment was stupid hard")

		s.Require().Eventually(func() bool {
			msgMu.Lock()
			defer msgMu.Unlock()
			return len(msgs) == 1 && msgs[0].Text == "that assignment was ****** hard"
		}, s.Config.StepTimeout, 10*time.Millisecond)

		// The directory row follows the room preview.
		s.Require().Eventually(func() bool {
			snap := latestSnapshot()
			return len(snap.Contacts) == 1 &&
				snap.Contacts[0].LastMsg == "that assignment was ****** hard"
		}, s.Config.StepTimeout, 10*time.Millisecond)
	})

	s.Step("The message is searchable", func() {
		s.Require().Eventually(func() bool {
			hits, err := s.Index.Search(ctx, search.ParseQuery("/find assignment --room "+roomID))
			return err == nil && len(hits) == 1
		}, s.Config.StepTimeout, 10*time.Millisecond)
	})

	s.Step("An ephemeral group appears and self-destructs", func() {
		groupID, err := s.Resolver.CreateGroup(ctx, "Exam cram",
			[]string{alice.UID, bob.UID}, alice.UID, 300*time.Millisecond)
		s.Require().NoError(err)

		s.Require().Eventually(func() bool {
			snap := latestSnapshot()
			return len(snap.Channels) == 1 && snap.Channels[0].Name == "Exam cram"
		}, s.Config.StepTimeout, 10*time.Millisecond)

		// The expiry timer deletes the room and the directory drops it.
		s.Require().Eventually(func() bool {
			_, err := s.Store.Get(ctx, store.Rooms, groupID)
			return err != nil
		}, s.Config.StepTimeout, 10*time.Millisecond)
		s.Require().Eventually(func() bool {
			return len(latestSnapshot().Channels) == 0
		}, s.Config.StepTimeout, 10*time.Millisecond)
	})

	s.Step("An admin revocation forces Bob out", func() {
		var revMu sync.Mutex
		var reason string
		bobDevice.OnRevoked(func(r string) {
			revMu.Lock()
			reason = r
			revMu.Unlock()
		})

		err := s.Store.Set(ctx, store.Students, "CS102", map[string]any{
			"isRegistered": false,
		}, true)
		s.Require().NoError(err)

		s.Require().Eventually(func() bool {
			revMu.Lock()
			defer revMu.Unlock()
			return reason != "" && !bobDevice.Active()
		}, s.Config.StepTimeout, 10*time.Millisecond)
	})

	s.Step("Alice logs out and frees her seat", func() {
		s.Require().NoError(aliceDevice.Logout(ctx, "CS101"))

		relogin := s.NewManager()
		_, err := relogin.Login(ctx, "alice@campus.edu", "ComplexPass123!", "CS101")
		s.Require().NoError(err)
		s.Require().NoError(relogin.Logout(ctx, "CS101"))
	})
}
