package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
)

func TestRunCycle_DailyEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)
	now := at(2024, 1, 10, 9, 0)

	seedUser(t, repo, dailyProfile("alice", at(2024, 1, 9, 6, 0)), 1, 0)
	for i := range 15 {
		seedArticle(t, repo, fmt.Sprintf("%d", 1000+i), fmt.Sprintf("Story %d", i), 1, float32(i)*0.05)
	}
	gt.NoError(t, repo.Profile().AppendSentHistory(ctx, "alice", []string{"1000", "1001"})).Required()

	delivery := &mockDelivery{}
	uc := usecase.New(repo, usecase.WithDelivery(delivery))

	results, err := uc.Digest.RunCycle(ctx, now)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()

	result := results[0]
	gt.Value(t, result.UserID).Equal("alice")
	gt.Value(t, result.Status).Equal(types.DigestStatusSent)
	gt.Value(t, result.Error).Nil()
	gt.Array(t, result.ArticleIDs).Length(model.DefaultSentCount)
	gt.Value(t, result.ArticleIDs[0]).Equal("1002")

	gt.Array(t, delivery.sent).Length(1).Required()
	gt.Value(t, delivery.sent[0].Email).Equal("alice@example.com")
	gt.Value(t, delivery.sent[0].Articles[0].Title).Equal("Story 2")
	gt.Value(t, delivery.sent[0].Articles[0].Summary).Equal("Summary of 1002")

	profile, err := repo.Profile().Get(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Bool(t, profile.LastUpdated.Equal(at(2024, 1, 10, 8, 0))).True()

	sent, err := repo.Profile().SentHistory(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, sent.IDs()).Length(2 + model.DefaultSentCount)
	for _, id := range result.ArticleIDs {
		gt.Bool(t, sent.Has(id)).True()
	}

	// The user is no longer due in the same window
	again, err := uc.Digest.RunCycle(ctx, now.Add(time.Hour))
	gt.NoError(t, err).Required()
	gt.Array(t, again).Length(0)
	gt.Array(t, delivery.sent).Length(1)
}

func TestRunCycle_NoCandidatesLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)
	last := at(2024, 1, 9, 6, 0)

	seedUser(t, repo, dailyProfile("alice", last), 1, 0)
	seedArticle(t, repo, "1", "Only story", 1, 0)
	gt.NoError(t, repo.Profile().AppendSentHistory(ctx, "alice", []string{"1"})).Required()

	delivery := &mockDelivery{}
	uc := usecase.New(repo, usecase.WithDelivery(delivery))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Status).Equal(types.DigestStatusNoCandidates)
	gt.Array(t, delivery.sent).Length(0)

	profile, err := repo.Profile().Get(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Bool(t, profile.LastUpdated.Equal(last)).True()

	sent, err := repo.Profile().SentHistory(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, sent.IDs()).Equal([]string{"1"})
}

func TestRunCycle_DeliveryFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)
	last := at(2024, 1, 9, 6, 0)

	seedUser(t, repo, dailyProfile("alice", last), 1, 0)
	seedArticle(t, repo, "1", "Story", 1, 0)

	delivery := &mockDelivery{
		sendFn: func(ctx context.Context, digest *model.Digest) error {
			return errors.New("smtp: 421 try later")
		},
	}
	uc := usecase.New(repo, usecase.WithDelivery(delivery))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Status).Equal(types.DigestStatusDeliveryFailed)
	gt.Error(t, results[0].Error).Is(usecase.ErrDeliveryFailed)
	gt.Array(t, results[0].ArticleIDs).Length(0)

	profile, err := repo.Profile().Get(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Bool(t, profile.LastUpdated.Equal(last)).True()

	sent, err := repo.Profile().SentHistory(ctx, "alice")
	gt.NoError(t, err).Required()
	gt.Array(t, sent.IDs()).Length(0)
}

func TestRunCycle_PerUserFailuresDoNotAbortCycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)

	seedUser(t, repo, dailyProfile("alice", time.Time{}), 1, 0)
	seedArticle(t, repo, "1", "Story", 1, 0)

	// bob has a profile but no vector
	_, err := repo.Profile().Create(ctx, dailyProfile("bob", time.Time{}))
	gt.NoError(t, err).Required()

	// carol has a broken schedule
	carol := dailyProfile("carol", time.Time{})
	carol.Frequency = types.FrequencyWeekly
	carol.DayOfWeek = time.Weekday(8)
	seedUser(t, repo, carol, 1, 0)

	delivery := &mockDelivery{}
	uc := usecase.New(repo, usecase.WithDelivery(delivery))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(3).Required()

	// Results are sorted by user ID
	gt.Value(t, results[0].UserID).Equal("alice")
	gt.Value(t, results[0].Status).Equal(types.DigestStatusSent)

	gt.Value(t, results[1].UserID).Equal("bob")
	gt.Value(t, results[1].Status).Equal(types.DigestStatusFailed)
	gt.Error(t, results[1].Error).Is(usecase.ErrNotFound)

	gt.Value(t, results[2].UserID).Equal("carol")
	gt.Value(t, results[2].Status).Equal(types.DigestStatusFailed)
	gt.Error(t, results[2].Error).Is(usecase.ErrValidation)
}

func TestRunCycle_ManyUsersInParallel(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)

	for i := range 30 {
		seedUser(t, repo, dailyProfile(fmt.Sprintf("user-%02d", i), time.Time{}), 1, float32(i)*0.1)
	}
	for i := range 5 {
		seedArticle(t, repo, fmt.Sprintf("%d", i), fmt.Sprintf("Story %d", i), 1, float32(i)*0.2)
	}

	delivery := &mockDelivery{}
	uc := usecase.New(repo, usecase.WithDelivery(delivery), usecase.WithConcurrency(8))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(30)
	for _, r := range results {
		gt.Value(t, r.Status).Equal(types.DigestStatusSent)
		gt.Array(t, r.ArticleIDs).Length(5)
	}
	gt.Array(t, delivery.sent).Length(30)
}

func TestRunCycle_CanceledContextStartsNoUser(t *testing.T) {
	repo := newMemoryRepo(t)
	seedUser(t, repo, dailyProfile("alice", time.Time{}), 1, 0)
	seedArticle(t, repo, "1", "Story", 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delivery := &mockDelivery{}
	uc := usecase.New(repo, usecase.WithDelivery(delivery))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.Error(t, err).Is(context.Canceled)
	gt.Array(t, results).Length(0)
	gt.Array(t, delivery.sent).Length(0)

	profile, getErr := repo.Profile().Get(context.Background(), "alice")
	gt.NoError(t, getErr).Required()
	gt.Bool(t, profile.LastUpdated.IsZero()).True()
}

func TestRunCycle_CancelBetweenUsers(t *testing.T) {
	repo := newMemoryRepo(t)
	for i := range 5 {
		seedUser(t, repo, dailyProfile(fmt.Sprintf("user-%d", i), time.Time{}), 1, 0)
	}
	seedArticle(t, repo, "1", "Story", 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivery := &mockDelivery{
		sendFn: func(ctx context.Context, digest *model.Digest) error {
			cancel()
			return nil
		},
	}
	uc := usecase.New(repo, usecase.WithDelivery(delivery), usecase.WithConcurrency(1))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.Error(t, err).Is(context.Canceled)
	gt.Bool(t, len(results) < 5).True()
	gt.Number(t, len(results)).GreaterOrEqual(1)
}

func TestRunCycle_ArchivesSentDigests(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)
	seedUser(t, repo, dailyProfile("alice", time.Time{}), 1, 0)
	seedArticle(t, repo, "1", "Story", 1, 0)

	archiver := &mockArchiver{
		archiveFn: func(ctx context.Context, digest *model.Digest) error {
			return errors.New("bucket unavailable")
		},
	}
	uc := usecase.New(repo, usecase.WithDelivery(&mockDelivery{}), usecase.WithArchiver(archiver))

	results, err := uc.Digest.RunCycle(ctx, at(2024, 1, 10, 9, 0))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()

	// Archive failures never fail the digest
	gt.Value(t, results[0].Status).Equal(types.DigestStatusSent)
	gt.Array(t, archiver.archived).Length(1).Required()
	gt.Value(t, archiver.archived[0].ID).Equal(results[0].DigestID)
}

func TestRunCycle_SignedLinks(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)
	seedUser(t, repo, dailyProfile("alice", time.Time{}), 1, 0)
	seedArticle(t, repo, "1", "Story", 1, 0)

	links := usecase.NewLinkUseCase([]byte("test-secret"), "https://digest.example.com/", time.Hour)
	delivery := &mockDelivery{}
	uc := usecase.New(repo, usecase.WithDelivery(delivery), usecase.WithLinks(links))

	_, err := uc.Digest.RunCycle(ctx, time.Now())
	gt.NoError(t, err).Required()
	gt.Array(t, delivery.sent).Length(1).Required()

	link := delivery.sent[0].Articles[0].Link
	gt.Bool(t, strings.HasPrefix(link, "https://digest.example.com/r/")).True()

	userID, articleID, err := links.Resolve(strings.TrimPrefix(link, "https://digest.example.com/r/"))
	gt.NoError(t, err).Required()
	gt.Value(t, userID).Equal("alice")
	gt.Value(t, articleID).Equal("1")
}

func TestRunCycle_RequiresDelivery(t *testing.T) {
	uc := usecase.New(newMemoryRepo(t))
	_, err := uc.Digest.RunCycle(context.Background(), time.Now())
	gt.Error(t, err)
}

func TestRunCycle_ClickWaitsForSameUserDigest(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)
	now := at(2024, 1, 10, 9, 0)

	seedUser(t, repo, dailyProfile("alice", at(2024, 1, 9, 6, 0)), 1, 0)
	seedUser(t, repo, dailyProfile("bob", now), 1, 0)
	seedArticle(t, repo, "1000", "Story", 1, 0.2)

	entered := make(chan struct{})
	release := make(chan struct{})
	delivery := &mockDelivery{
		sendFn: func(ctx context.Context, digest *model.Digest) error {
			if digest.UserID == "alice" {
				close(entered)
				<-release
			}
			return nil
		},
	}
	uc := usecase.New(repo, usecase.WithDelivery(delivery))

	cycleDone := make(chan error, 1)
	go func() {
		_, err := uc.Digest.RunCycle(ctx, now)
		cycleDone <- err
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("digest for alice did not start")
	}

	aliceClick := make(chan error, 1)
	go func() { aliceClick <- uc.Preference.ApplyClickFeedback(ctx, "alice", "1000") }()

	// Other users are not held back by alice's digest
	bobClick := make(chan error, 1)
	go func() { bobClick <- uc.Preference.ApplyClickFeedback(ctx, "bob", "1000") }()
	select {
	case err := <-bobClick:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("click for another user was blocked")
	}

	select {
	case <-aliceClick:
		t.Fatal("click was applied while the digest held the user")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-aliceClick:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("click was not applied after the digest finished")
	}
	select {
	case err := <-cycleDone:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cycle did not finish")
	}
}
