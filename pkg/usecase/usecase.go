package usecase

import (
	"time"

	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

type UseCases struct {
	repo             interfaces.Repository
	embedder         interfaces.Embedder
	delivery         interfaces.DeliveryChannel
	archiver         interfaces.Archiver
	links            *LinkUseCase
	schedule         Schedule
	alpha            float64
	candidatePool    int
	defaultSentCount int
	concurrency      int
	now              func() time.Time

	Preference *PreferenceUseCase
	Selector   *SelectorUseCase
	Digest     *DigestUseCase
	Profile    *ProfileUseCase
	Link       *LinkUseCase
}

type Option func(*UseCases)

// WithAlpha sets the weight kept by the current preference on a click
func WithAlpha(alpha float64) Option {
	return func(uc *UseCases) {
		uc.alpha = alpha
	}
}

func WithSchedule(schedule Schedule) Option {
	return func(uc *UseCases) {
		uc.schedule = schedule
	}
}

func WithEmbedder(embedder interfaces.Embedder) Option {
	return func(uc *UseCases) {
		uc.embedder = embedder
	}
}

func WithDelivery(delivery interfaces.DeliveryChannel) Option {
	return func(uc *UseCases) {
		uc.delivery = delivery
	}
}

func WithArchiver(archiver interfaces.Archiver) Option {
	return func(uc *UseCases) {
		uc.archiver = archiver
	}
}

// WithLinks makes digests carry signed click-through links instead of raw
// article URLs
func WithLinks(links *LinkUseCase) Option {
	return func(uc *UseCases) {
		uc.links = links
	}
}

func WithCandidatePool(n int) Option {
	return func(uc *UseCases) {
		uc.candidatePool = n
	}
}

func WithDefaultSentCount(n int) Option {
	return func(uc *UseCases) {
		uc.defaultSentCount = n
	}
}

func WithConcurrency(n int) Option {
	return func(uc *UseCases) {
		uc.concurrency = n
	}
}

// WithClock overrides the clock used by the profile save flow
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:             repo,
		schedule:         DefaultSchedule(),
		alpha:            DefaultAlpha,
		candidatePool:    DefaultCandidatePool,
		defaultSentCount: model.DefaultSentCount,
		concurrency:      DefaultConcurrency,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	locks := NewUserLocker()

	uc.Link = uc.links
	uc.Selector = NewSelectorUseCase(repo)
	uc.Preference = NewPreferenceUseCase(repo, uc.alpha, locks)
	uc.Digest = &DigestUseCase{
		repo:          repo,
		selector:      uc.Selector,
		schedule:      uc.schedule,
		delivery:      uc.delivery,
		archiver:      uc.archiver,
		links:         uc.links,
		locks:         locks,
		candidatePool: uc.candidatePool,
		concurrency:   uc.concurrency,
	}
	uc.Profile = &ProfileUseCase{
		repo:             repo,
		embedder:         uc.embedder,
		schedule:         uc.schedule,
		locks:            locks,
		defaultSentCount: uc.defaultSentCount,
		now:              uc.now,
	}

	return uc
}

// Schedule returns the schedule used for due-user selection
func (uc *UseCases) Schedule() Schedule {
	return uc.schedule
}
