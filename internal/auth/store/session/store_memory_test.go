package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"joblinker/internal/auth/models"

	"github.com/stretchr/testify/suite"
)

type SessionStoreSuite struct {
	suite.Suite
	store *InMemorySessionStore
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = New()
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
func rolePtr(v models.Role) *models.Role {
	return &v
}

func (s *SessionStoreSuite) TestInitialRecord() {
	s.Equal(models.Session{}, s.store.CurrentUser())
	s.False(s.store.CurrentUser().IsAuthenticated())
}

func (s *SessionStoreSuite) TestSetCredentials() {
	s.Run("merges only present fields", func() {
		store := New()
		store.SetCredentials(models.SessionUpdate{AccessToken: strPtr("tok-1"), Role: rolePtr(models.RoleCandidate)})
		got := store.SetCredentials(models.SessionUpdate{IsRefreshed: boolPtr(true)})

		s.Equal(models.Session{AccessToken: "tok-1", Role: models.RoleCandidate, IsRefreshed: true}, got)
	})

	s.Run("equals ordered shallow merge of all partials", func() {
		store := New()
		updates := []models.SessionUpdate{
			{IsRefreshing: boolPtr(true)},
			{AccessToken: strPtr("a"), Role: rolePtr(models.RoleRecruiter)},
			{AccessToken: strPtr("b"), IsRefreshing: boolPtr(false), IsRefreshed: boolPtr(true)},
			{Name: strPtr("Ada")},
		}

		want := models.Session{}
		for _, u := range updates {
			store.SetCredentials(u)
			want = u.Apply(want)
		}

		s.Equal(want, store.CurrentUser())
		s.Equal(models.Session{AccessToken: "b", Role: models.RoleRecruiter, Name: "Ada", IsRefreshed: true}, want)
	})

	s.Run("order of partials matters", func() {
		first, second := New(), New()
		a := models.SessionUpdate{AccessToken: strPtr("a")}
		b := models.SessionUpdate{AccessToken: strPtr("b")}

		first.SetCredentials(a)
		first.SetCredentials(b)
		second.SetCredentials(b)
		second.SetCredentials(a)

		s.Equal("b", first.CurrentUser().AccessToken)
		s.Equal("a", second.CurrentUser().AccessToken)
	})
}

func (s *SessionStoreSuite) TestClearCredentials() {
	s.store.SetCredentials(models.SessionUpdate{
		AccessToken:  strPtr("tok"),
		Role:         rolePtr(models.RoleCandidate),
		Name:         strPtr("Grace"),
		IsRefreshing: boolPtr(true),
		IsRefreshed:  boolPtr(true),
	})

	s.store.ClearCredentials()
	s.Equal(models.Session{}, s.store.CurrentUser())

	s.store.ClearCredentials()
	s.Equal(models.Session{}, s.store.CurrentUser(), "clearing twice still yields the initial record")
}

func (s *SessionStoreSuite) TestConditionalWrites() {
	s.Run("merge applies while the token is unchanged", func() {
		store := New()
		store.SetCredentials(models.SessionUpdate{AccessToken: strPtr("old"), IsRefreshing: boolPtr(true)})

		got, applied := store.SetCredentialsIf("old", models.SessionUpdate{AccessToken: strPtr("new"), IsRefreshing: boolPtr(false)})
		s.True(applied)
		s.Equal(models.Session{AccessToken: "new"}, got)
	})

	s.Run("merge only settles once the token was replaced", func() {
		store := New()
		store.SetCredentials(models.SessionUpdate{AccessToken: strPtr("login"), Role: rolePtr(models.RoleCandidate), IsRefreshing: boolPtr(true)})

		got, applied := store.SetCredentialsIf("", models.SessionUpdate{AccessToken: strPtr("late"), Role: rolePtr(models.RoleRecruiter)})
		s.False(applied)
		s.Equal(models.Session{AccessToken: "login", Role: models.RoleCandidate}, got)
	})

	s.Run("clear applies while the token is unchanged", func() {
		store := New()
		store.SetCredentials(models.SessionUpdate{AccessToken: strPtr("stale"), IsRefreshing: boolPtr(true)})

		got, cleared := store.ClearCredentialsIf("stale")
		s.True(cleared)
		s.Equal(models.Session{}, got)
	})

	s.Run("clear only settles once the token was replaced", func() {
		store := New()
		store.SetCredentials(models.SessionUpdate{AccessToken: strPtr("login"), IsRefreshing: boolPtr(true)})
		changed := store.Changed()

		got, cleared := store.ClearCredentialsIf("")
		s.False(cleared)
		s.Equal(models.Session{AccessToken: "login"}, got)
		select {
		case <-changed:
		default:
			s.Fail("settling must wake waiters")
		}
	})
}

func (s *SessionStoreSuite) TestChangedClosesOnMutation() {
	changed := s.store.Changed()
	select {
	case <-changed:
		s.Fail("channel closed before any mutation")
	default:
	}

	s.store.SetCredentials(models.Refreshing())

	select {
	case <-changed:
	case <-time.After(time.Second):
		s.Fail("channel not closed after mutation")
	}
}

func (s *SessionStoreSuite) TestWaitSettled() {
	s.Run("returns immediately when nothing is refreshing", func() {
		got, err := New().WaitSettled(context.Background())
		s.Require().NoError(err)
		s.Equal(models.Session{}, got)
	})

	s.Run("blocks until refresh resolves", func() {
		store := New()
		store.SetCredentials(models.Refreshing())

		done := make(chan models.Session, 1)
		go func() {
			got, _ := store.WaitSettled(context.Background())
			done <- got
		}()

		select {
		case <-done:
			s.Fail("WaitSettled returned while refreshing")
		case <-time.After(20 * time.Millisecond):
		}

		store.SetCredentials(models.FromCredentials(models.Credentials{JWT: "fresh"}, true))

		select {
		case got := <-done:
			s.Equal("fresh", got.AccessToken)
			s.False(got.IsRefreshing)
		case <-time.After(time.Second):
			s.Fail("WaitSettled did not return after settle")
		}
	})

	s.Run("honors context deadline", func() {
		store := New()
		store.SetCredentials(models.Refreshing())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		got, err := store.WaitSettled(ctx)
		s.ErrorIs(err, context.DeadlineExceeded)
		s.True(got.IsRefreshing)
	})
}

func (s *SessionStoreSuite) TestConcurrentMerges() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.store.SetCredentials(models.SessionUpdate{AccessToken: strPtr("tok")})
		}()
		go func() {
			defer wg.Done()
			_ = s.store.CurrentUser()
		}()
	}
	wg.Wait()
	s.Equal("tok", s.store.CurrentUser().AccessToken)
}
