//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"identify/internal/contact/models"
	"identify/internal/contact/store"
	"identify/pkg/platform/sentinel"
	"identify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	tx       *store.PostgresTx
	base     time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
	s.tx = store.NewPostgresTx(s.postgres.DB, 0)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "contacts")
	s.Require().NoError(err)
	s.base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
}

func strPtr(v string) *string { return &v }

func (s *PostgresStoreSuite) primary(email, phone *string, offset time.Duration) *models.Contact {
	c, err := models.NewPrimary(email, phone, s.base.Add(offset))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), c))
	return c
}

func contactIDs(contacts []*models.Contact) []int64 {
	out := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.ID)
	}
	return out
}

func (s *PostgresStoreSuite) TestCreateAndFindByID() {
	ctx := context.Background()
	c := s.primary(strPtr("a@x.com"), nil, 0)
	s.NotZero(c.ID)

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("a@x.com", *found.Email)
	s.Nil(found.PhoneNumber)
	s.Nil(found.LinkedID)
	s.True(found.CreatedAt.Equal(c.CreatedAt))

	_, err = s.store.FindByID(ctx, c.ID+1000)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindMatchingOrdersOldestFirst() {
	ctx := context.Background()
	later := s.primary(nil, strPtr("123"), 2*time.Minute)
	earlier := s.primary(strPtr("a@x.com"), nil, time.Minute)
	s.primary(strPtr("z@x.com"), strPtr("999"), 3*time.Minute)

	got, err := s.store.FindMatching(ctx, models.Match{
		Emails:       []string{"a@x.com"},
		PhoneNumbers: []string{"123"},
	})
	s.Require().NoError(err)
	s.Equal([]int64{earlier.ID, later.ID}, contactIDs(got))

	got, err = s.store.FindMatching(ctx, models.Match{Emails: []string{"a@x.com"}})
	s.Require().NoError(err)
	s.Equal([]int64{earlier.ID}, contactIDs(got), "an empty phone list must not match NULL phones")
}

func (s *PostgresStoreSuite) TestRelinkInsideTransaction() {
	ctx := context.Background()
	p1 := s.primary(strPtr("a@x.com"), nil, 0)
	p2 := s.primary(nil, strPtr("123"), time.Minute)

	child, err := models.NewSecondary(strPtr("c@x.com"), strPtr("123"), p2, s.base.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, child))

	now := s.base.Add(time.Hour)
	var relinked int64
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.store.Relink(txCtx, models.RelinkScope{
			Match:    models.Match{Emails: []string{"a@x.com"}, PhoneNumbers: []string{"123"}},
			LinkedTo: []int64{p2.ID},
			IDs:      []int64{p2.ID},
		}, p1.ID, now)
		relinked = n
		return err
	})
	s.Require().NoError(err)
	s.Equal(int64(2), relinked)

	linked, err := s.store.FindLinked(ctx, p1.ID)
	s.Require().NoError(err)
	s.Equal([]int64{p2.ID, child.ID}, contactIDs(linked))
	for _, c := range linked {
		s.Equal(models.LinkPrecedenceSecondary, c.LinkPrecedence)
	}
}

func (s *PostgresStoreSuite) TestRollbackDiscardsWrites() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := models.NewPrimary(strPtr("gone@x.com"), nil, s.base)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(txCtx, c))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestSchemaRejectsSelfLink() {
	ctx := context.Background()
	c := s.primary(strPtr("a@x.com"), nil, 0)

	_, err := s.postgres.Exec(ctx,
		`UPDATE contacts SET link_precedence = 'secondary', linked_id = id WHERE id = $1`, c.ID)
	s.Require().Error(err)
}

// TestConcurrentCreates verifies the sequence hands out unique IDs under load.
func (s *PostgresStoreSuite) TestConcurrentCreates() {
	ctx := context.Background()
	const goroutines = 25

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{}, goroutines)
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := models.NewPrimary(strPtr("load@x.com"), nil, s.base.Add(time.Duration(i)*time.Millisecond))
			if err != nil {
				return
			}
			if err := s.store.Create(ctx, c); err != nil {
				return
			}
			mu.Lock()
			ids[c.ID] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	s.Len(ids, goroutines)
	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(goroutines, n)
}
