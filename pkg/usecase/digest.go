package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/domain/types"
	"github.com/secmon-lab/hackernyous/pkg/utils/errutil"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is how many users a cycle processes in parallel
const DefaultConcurrency = 4

// DigestUseCase runs digest cycles: who is due, what to send, delivery and
// the state update that follows a confirmed send
type DigestUseCase struct {
	repo          interfaces.Repository
	selector      *SelectorUseCase
	schedule      Schedule
	delivery      interfaces.DeliveryChannel
	archiver      interfaces.Archiver
	links         *LinkUseCase
	locks         *UserLocker
	candidatePool int
	concurrency   int
}

// RunCycle sends a digest to every due user. Per-user failures are recorded in
// the results and never abort the cycle. When ctx is canceled no new user is
// started; the results gathered so far are returned with the context error.
func (uc *DigestUseCase) RunCycle(ctx context.Context, now time.Time) ([]*model.DigestResult, error) {
	if uc.delivery == nil {
		return nil, goerr.New("delivery channel is not configured")
	}

	cycleID := model.NewCycleID()
	logger := logging.From(ctx).With("cycle_id", cycleID)
	ctx = logging.With(ctx, logger)
	logger.Info("digest cycle started", "now", now)

	var (
		mu      sync.Mutex
		results []*model.DigestResult
	)
	record := func(r *model.DigestResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	}

	var eg errgroup.Group
	eg.SetLimit(max(uc.concurrency, 1))

	var cycleErr error
	for profile, err := range uc.schedule.SelectDueUsers(uc.repo.Profile().List(ctx), now) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			cycleErr = goerr.Wrap(ctxErr, "digest cycle canceled")
			break
		}

		if err != nil {
			if profile == nil {
				cycleErr = storeError(err, "failed to list profiles")
				break
			}
			record(&model.DigestResult{
				UserID: profile.UserID,
				Status: types.DigestStatusFailed,
				Error:  err,
			})
			continue
		}

		eg.Go(func() error {
			record(uc.processUser(ctx, profile, now))
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].UserID < results[j].UserID
	})

	counts := map[types.DigestStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	logger.Info("digest cycle finished",
		"users", len(results),
		"sent", counts[types.DigestStatusSent],
		"no_candidates", counts[types.DigestStatusNoCandidates],
		"delivery_failed", counts[types.DigestStatusDeliveryFailed],
		"failed", counts[types.DigestStatusFailed])

	return results, cycleErr
}

// processUser runs one user's step under the user's lock. State advances only
// after the delivery channel accepted the digest.
func (uc *DigestUseCase) processUser(ctx context.Context, profile *model.Profile, now time.Time) *model.DigestResult {
	unlock := uc.locks.Lock(profile.UserID)
	defer unlock()

	logger := logging.From(ctx).With("user_id", profile.UserID)
	result := &model.DigestResult{UserID: profile.UserID}
	fail := func(status types.DigestStatus, err error) *model.DigestResult {
		result.Status = status
		result.Error = err
		logger.Warn("digest not sent", "status", status, "error", err)
		return result
	}

	sent, err := uc.repo.Profile().SentHistory(ctx, profile.UserID)
	if err != nil {
		return fail(types.DigestStatusFailed, storeError(err, "failed to read sent history", goerr.V(UserIDKey, profile.UserID)))
	}

	vector, err := uc.repo.Vector().Fetch(ctx, model.NamespaceUsers, profile.UserID)
	if err != nil {
		return fail(types.DigestStatusFailed, storeError(err, "failed to fetch user vector", goerr.V(UserIDKey, profile.UserID)))
	}

	user := &model.User{Profile: profile, Values: vector.Values}
	matches, err := uc.selector.SelectForUser(ctx, user, uc.candidatePool, sent)
	if err != nil {
		return fail(types.DigestStatusFailed, err)
	}

	digest, err := uc.BuildDigest(ctx, profile, matches, now)
	if err != nil {
		return fail(types.DigestStatusFailed, err)
	}
	if len(digest.Articles) == 0 {
		result.Status = types.DigestStatusNoCandidates
		logger.Debug("no candidates for user")
		return result
	}
	result.DigestID = digest.ID

	if err := uc.delivery.Send(ctx, digest); err != nil {
		return fail(types.DigestStatusDeliveryFailed, goerr.Wrap(errors.Join(ErrDeliveryFailed, err), "failed to deliver digest",
			goerr.V(UserIDKey, profile.UserID),
			goerr.V("digest_id", digest.ID)))
	}
	result.ArticleIDs = digest.ArticleIDs()

	// A crash from here on resends this digest next cycle
	if err := uc.repo.Profile().AppendSentHistory(ctx, profile.UserID, result.ArticleIDs); err != nil {
		return fail(types.DigestStatusFailed, storeError(err, "failed to record sent articles", goerr.V(UserIDKey, profile.UserID)))
	}

	threshold, err := uc.schedule.ComputeSendThreshold(profile.Frequency, profile.DayOfWeek, now)
	if err != nil {
		return fail(types.DigestStatusFailed, err)
	}
	if _, err := uc.repo.Profile().Update(ctx, profile.UserID, &model.ProfileUpdate{LastUpdated: &threshold}); err != nil {
		return fail(types.DigestStatusFailed, storeError(err, "failed to advance last updated", goerr.V(UserIDKey, profile.UserID)))
	}

	if uc.archiver != nil {
		if err := uc.archiver.Archive(ctx, digest); err != nil {
			errutil.Handle(ctx, err, "failed to archive digest")
		}
	}

	result.Status = types.DigestStatusSent
	logger.Info("digest sent", "digest_id", digest.ID, "articles", len(result.ArticleIDs))
	return result
}

// BuildDigest resolves matches into articles with click links. Matches whose
// article vector disappeared since the query are skipped.
func (uc *DigestUseCase) BuildDigest(ctx context.Context, profile *model.Profile, matches []*model.Match, now time.Time) (*model.Digest, error) {
	digest := &model.Digest{
		ID:        model.NewDigestID(),
		UserID:    profile.UserID,
		Email:     profile.Email,
		CreatedAt: now,
	}

	for _, m := range matches {
		v, err := uc.repo.Vector().Fetch(ctx, model.NamespaceItems, m.ID)
		if errors.Is(err, interfaces.ErrNotFound) {
			logging.From(ctx).Warn("matched article vanished", "article_id", m.ID)
			continue
		}
		if err != nil {
			return nil, storeError(err, "failed to fetch article", goerr.V(ArticleIDKey, m.ID))
		}

		article := model.ArticleFromVector(v)
		article.Score = m.Score
		article.Link = article.URL
		if uc.links != nil {
			link, err := uc.links.Issue(profile.UserID, article.ID)
			if err != nil {
				return nil, err
			}
			article.Link = link
		}

		digest.Articles = append(digest.Articles, article)
	}

	return digest, nil
}
