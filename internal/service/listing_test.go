package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sunnyapi/internal/config"
	"sunnyapi/internal/events"
	"sunnyapi/internal/metrics"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
	repoMocks "sunnyapi/internal/repository/mocks"
	"sunnyapi/internal/storage"
	storeMocks "sunnyapi/internal/storage/mocks"
)

type listingFixture struct {
	listings  *repoMocks.MockListingRepository
	images    *repoMocks.MockImageRepository
	users     *repoMocks.MockUserRepository
	taxonomy  *repoMocks.MockTaxonomyRepository
	store     *storeMocks.MockStorage
	cache     *fakeListingCache
	queue     *fakeQueue
	publisher *fakePublisher
	notifier  *fakeNotifier
	svc       *listingService
}

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	f := &listingFixture{
		listings:  new(repoMocks.MockListingRepository),
		images:    new(repoMocks.MockImageRepository),
		users:     new(repoMocks.MockUserRepository),
		taxonomy:  new(repoMocks.MockTaxonomyRepository),
		store:     new(storeMocks.MockStorage),
		cache:     newFakeListingCache(),
		queue:     &fakeQueue{},
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
	}
	filter := profanity.New()
	f.svc = NewListingService(ListingDeps{
		Listings:      f.listings,
		Images:        f.images,
		Users:         f.users,
		Taxonomy:      NewTaxonomyService(f.taxonomy, nil, filter, testLog),
		Notifications: f.notifier,
		Store:         f.store,
		Cache:         f.cache,
		Tasks:         f.queue,
		Events:        f.publisher,
		Filter:        filter,
		Metrics:       m,
		Site:          config.SiteConfig{AdminBaseURL: "https://sunny.example/admin"},
		MaxImageBytes: 1024,
		Log:           testLog,
	}).(*listingService)
	t.Cleanup(func() {
		f.listings.AssertExpectations(t)
		f.images.AssertExpectations(t)
		f.users.AssertExpectations(t)
		f.store.AssertExpectations(t)
	})
	return f
}

func listingIn(status model.Status) *model.Listing {
	return &model.Listing{ID: "l1", Kind: model.KindService, ProviderID: "owner", Title: "Ремонт квартир", Status: status}
}

func TestListingService_Create(t *testing.T) {
	ctx := context.Background()
	owner := Actor{UserID: "owner"}

	t.Run("attaches ancestors and starts as draft", func(t *testing.T) {
		f := newListingFixture(t)
		f.taxonomy.On("List", ctx, model.TaxonomyCategory).Return([]model.Taxonomy{
			{ID: "root"},
			{ID: "repair", ParentID: sptr("root")},
		}, nil)
		f.listings.On("Create", ctx, mock.MatchedBy(func(l *model.Listing) bool {
			return l.Status == model.StatusDraft && l.ProviderID == "owner" &&
				assert.ObjectsAreEqual([]string{"repair", "root"}, l.TaxonomyIDs)
		})).Return(&model.Listing{ID: "l1", Status: model.StatusDraft}, nil)

		l, err := f.svc.Create(ctx, owner, model.KindService, ListingInput{
			Title:       " Ремонт квартир ",
			Price:       fptr(1500),
			TaxonomyIDs: []string{"repair"},
		})
		require.NoError(t, err)
		assert.Equal(t, "l1", l.ID)
	})

	t.Run("unknown taxonomy", func(t *testing.T) {
		f := newListingFixture(t)
		f.taxonomy.On("List", ctx, model.TaxonomyType).Return([]model.Taxonomy{{ID: "root"}}, nil)

		_, err := f.svc.Create(ctx, owner, model.KindAd, ListingInput{Title: "Продам диван", TaxonomyIDs: []string{"nope"}})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Fields["taxonomy_ids"], "nope")
	})

	t.Run("profanity and negative price", func(t *testing.T) {
		f := newListingFixture(t)

		_, err := f.svc.Create(ctx, owner, model.KindService, ListingInput{Title: "ok", Price: fptr(-1)})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Fields, "price")

		_, err = f.svc.Create(ctx, owner, model.KindService, ListingInput{Title: "Чистка", Description: "сучка"})
		assert.ErrorIs(t, err, ErrProfanity)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newListingFixture(t)
		_, err := f.svc.Create(ctx, Actor{}, model.KindService, ListingInput{Title: "x"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestListingService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("published is cached", func(t *testing.T) {
		f := newListingFixture(t)
		f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusPublished), nil).Once()
		f.images.On("ListByListing", ctx, model.KindService, "l1").
			Return([]model.Image{{ID: "i1", ObjectKey: "services/l1/i1.jpg"}}, nil).Once()
		f.store.On("PresignGet", ctx, "services/l1/i1.jpg", imageURLExpiry).Return("https://cdn/i1", nil).Once()

		l, err := f.svc.Get(ctx, Actor{}, model.KindService, "l1")
		require.NoError(t, err)
		require.Len(t, l.Images, 1)
		assert.Equal(t, "https://cdn/i1", l.Images[0].URL)

		again, err := f.svc.Get(ctx, Actor{}, model.KindService, "l1")
		require.NoError(t, err)
		assert.Same(t, l, again)
	})

	t.Run("invalidated while loading is not cached", func(t *testing.T) {
		f := newListingFixture(t)
		f.cache.onVersion = func() { _ = f.cache.Delete(ctx, model.KindService, "l1") }
		f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusPublished), nil).Once()
		f.images.On("ListByListing", ctx, model.KindService, "l1").Return([]model.Image{}, nil).Once()

		_, err := f.svc.Get(ctx, Actor{}, model.KindService, "l1")
		require.NoError(t, err)
		assert.Empty(t, f.cache.items)
	})

	t.Run("draft hidden from strangers", func(t *testing.T) {
		f := newListingFixture(t)
		f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusDraft), nil)

		_, err := f.svc.Get(ctx, Actor{UserID: "stranger"}, model.KindService, "l1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("draft visible to staff and not cached", func(t *testing.T) {
		f := newListingFixture(t)
		f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusModeration), nil)
		f.images.On("ListByListing", ctx, model.KindService, "l1").Return([]model.Image{}, nil)

		_, err := f.svc.Get(ctx, Actor{UserID: "mod", IsStaff: true}, model.KindService, "l1")
		require.NoError(t, err)
		assert.Empty(t, f.cache.items)
	})
}

func TestListingService_List(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t)
	f.taxonomy.On("List", ctx, model.TaxonomyCategory).Return([]model.Taxonomy{
		{ID: "repair"},
		{ID: "plumbing", ParentID: sptr("repair")},
	}, nil)
	f.listings.On("List", ctx, model.KindService, mock.MatchedBy(func(fl repository.ListingFilter) bool {
		return len(fl.Statuses) == 1 && fl.Statuses[0] == model.StatusPublished &&
			assert.ObjectsAreEqual([]string{"repair", "plumbing"}, fl.TaxonomyIDs) && fl.OrderBy == "-price"
	}), repository.PageQuery{Limit: DefaultLimit}).
		Return(&repository.PageResult[model.Listing]{Items: []model.Listing{{ID: "l1"}}, Total: 1}, nil)

	res, err := f.svc.List(ctx, model.KindService, ListingQuery{TaxonomyID: "repair", OrderBy: "-price"}, Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = f.svc.List(ctx, model.KindService, ListingQuery{MinPrice: fptr(10), MaxPrice: fptr(5)}, Page{})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = f.svc.List(ctx, model.KindService, ListingQuery{OrderBy: "title; drop table"}, Page{})
	assert.True(t, errors.As(err, &ve))
}

func TestListingService_Transition(t *testing.T) {
	ctx := context.Background()
	owner := Actor{UserID: "owner"}
	staff := Actor{UserID: "mod", IsStaff: true}

	tests := []struct {
		name       string
		actor      Actor
		status     model.Status
		action     model.Action
		reason     string
		setup      func(f *listingFixture)
		wantErr    error
		wantStatus model.Status
		check      func(t *testing.T, f *listingFixture)
	}{
		{
			name:   "moderate notifies and emails staff",
			actor:  owner,
			status: model.StatusDraft,
			action: model.ActionModerate,
			setup: func(f *listingFixture) {
				f.listings.On("UpdateStatus", ctx, mock.Anything, model.StatusDraft, false).Return(nil)
				f.users.On("ListStaff", ctx).Return([]model.User{{ID: "mod", Email: "mod@example.com"}}, nil)
			},
			wantStatus: model.StatusModeration,
			check: func(t *testing.T, f *listingFixture) {
				require.Len(t, f.notifier.notices, 1)
				assert.Equal(t, model.NotifyListingOnModeration, f.notifier.notices[0].kind)
				assert.Equal(t, "https://sunny.example/admin/services/l1/change/", f.notifier.notices[0].link)
				require.Len(t, f.queue.emails, 1)
				assert.Equal(t, "mod@example.com", f.queue.emails[0].To)
				require.Len(t, f.publisher.events, 1)
				assert.Equal(t, events.SubjectListingStatusChanged, f.publisher.events[0].subject)
			},
		},
		{
			name:   "approve by staff notifies provider",
			actor:  staff,
			status: model.StatusModeration,
			action: model.ActionApprove,
			setup: func(f *listingFixture) {
				f.listings.On("UpdateStatus", ctx, mock.Anything, model.StatusModeration, false).Return(nil)
			},
			wantStatus: model.StatusPublished,
			check: func(t *testing.T, f *listingFixture) {
				assert.Equal(t, []model.NotificationKind{model.NotifyListingApproved}, f.notifier.kinds())
				assert.Equal(t, "owner", f.notifier.notices[0].userID)
			},
		},
		{
			name:    "approve by provider is forbidden",
			actor:   owner,
			status:  model.StatusModeration,
			action:  model.ActionApprove,
			wantErr: ErrForbidden,
		},
		{
			name:    "reject without reason",
			actor:   staff,
			status:  model.StatusModeration,
			action:  model.ActionReject,
			reason:  "  ",
			wantErr: model.ErrReasonRequired,
		},
		{
			name:   "reject sends reason to provider",
			actor:  staff,
			status: model.StatusModeration,
			action: model.ActionReject,
			reason: "нет фото",
			setup: func(f *listingFixture) {
				f.listings.On("UpdateStatus", ctx, mock.MatchedBy(func(l *model.Listing) bool {
					return l.RejectionReason == "нет фото"
				}), model.StatusModeration, false).Return(nil)
			},
			wantStatus: model.StatusDraft,
			check: func(t *testing.T, f *listingFixture) {
				require.Len(t, f.notifier.notices, 1)
				assert.True(t, strings.HasSuffix(f.notifier.notices[0].text, "нет фото"))
			},
		},
		{
			name:   "hide clears favorites",
			actor:  owner,
			status: model.StatusPublished,
			action: model.ActionHide,
			setup: func(f *listingFixture) {
				f.listings.On("UpdateStatus", ctx, mock.Anything, model.StatusPublished, true).Return(nil)
			},
			wantStatus: model.StatusHidden,
		},
		{
			name:    "hide a draft is an invalid transition",
			actor:   owner,
			status:  model.StatusDraft,
			action:  model.ActionHide,
			wantErr: ErrInvalidTransition,
		},
		{
			name:   "concurrent change",
			actor:  owner,
			status: model.StatusHidden,
			action: model.ActionPublish,
			setup: func(f *listingFixture) {
				f.listings.On("UpdateStatus", ctx, mock.Anything, model.StatusHidden, false).Return(repository.ErrStatusConflict)
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "stranger cannot see a draft",
			actor:   Actor{UserID: "stranger"},
			status:  model.StatusDraft,
			action:  model.ActionModerate,
			wantErr: ErrNotFound,
		},
		{
			name:    "stranger cannot hide a published listing",
			actor:   Actor{UserID: "stranger"},
			status:  model.StatusPublished,
			action:  model.ActionHide,
			wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newListingFixture(t)
			f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(tt.status), nil)
			f.cache.items["service:l1"] = listingIn(tt.status)
			if tt.setup != nil {
				tt.setup(f)
			}

			l, err := f.svc.Transition(ctx, tt.actor, model.KindService, "l1", tt.action, tt.reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, l.Status)
			assert.Empty(t, f.cache.items, "cache must be invalidated")
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestListingService_Update_Remoderates(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t)
	f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusPublished), nil)
	f.listings.On("Update", ctx, mock.MatchedBy(func(l *model.Listing) bool {
		return l.Status == model.StatusModeration && l.Title == "Ремонт под ключ"
	}), model.StatusPublished).Return(func() *model.Listing {
		l := listingIn(model.StatusModeration)
		l.Title = "Ремонт под ключ"
		return l
	}(), nil)
	f.users.On("ListStaff", ctx).Return([]model.User{}, nil)

	l, err := f.svc.Update(ctx, Actor{UserID: "owner"}, model.KindService, "l1", model.ListingPatch{Title: sptr(" Ремонт под ключ ")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusModeration, l.Status)
	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0].data.(events.ListingStatusChanged)
	assert.Equal(t, "published", ev.From)
	assert.Equal(t, "moderation", ev.To)
}

func TestListingService_Update_ConcurrentStatusChange(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t)
	f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusModeration), nil)
	f.listings.On("Update", ctx, mock.Anything, model.StatusModeration).Return(nil, repository.ErrStatusConflict)

	_, err := f.svc.Update(ctx, Actor{UserID: "owner"}, model.KindService, "l1", model.ListingPatch{Title: sptr("Ремонт под ключ")})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.cache.deleted)
}

func TestListingService_Delete_QueuesImageCleanup(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t)
	f.listings.On("FindByID", ctx, model.KindAd, "l1").Return(&model.Listing{ID: "l1", Kind: model.KindAd, ProviderID: "owner"}, nil)
	f.images.On("ListByListing", ctx, model.KindAd, "l1").Return([]model.Image{{ObjectKey: "ads/l1/a.jpg"}, {ObjectKey: "ads/l1/b.png"}}, nil)
	f.listings.On("Delete", ctx, model.KindAd, "l1").Return(nil)

	require.NoError(t, f.svc.Delete(ctx, Actor{UserID: "owner"}, model.KindAd, "l1"))
	assert.Equal(t, [][]string{{"ads/l1/a.jpg", "ads/l1/b.png"}}, f.queue.cleanups)
}

func TestListingService_AddImage(t *testing.T) {
	ctx := context.Background()
	owner := Actor{UserID: "owner"}

	t.Run("happy path", func(t *testing.T) {
		f := newListingFixture(t)
		r := strings.NewReader("img")
		f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusDraft), nil)
		f.store.On("Put", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "services/l1/") && strings.HasSuffix(key, ".png")
		}), r, storage.PutObjectOptions{Size: 3, ContentType: "image/png"}).
			Return(storage.ObjectInfo{Key: "services/l1/x.png", Size: 3}, nil)
		f.images.On("Create", ctx, mock.MatchedBy(func(img *model.Image) bool {
			return img.ObjectKey == "services/l1/x.png" && img.ListingID == "l1"
		})).Return(&model.Image{ID: "x", ObjectKey: "services/l1/x.png"}, nil)
		f.store.On("PresignGet", ctx, "services/l1/x.png", imageURLExpiry).Return("https://cdn/x", nil)

		img, err := f.svc.AddImage(ctx, owner, model.KindService, "l1", r, "image/png", 3)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/x", img.URL)
	})

	t.Run("db failure rolls back storage", func(t *testing.T) {
		f := newListingFixture(t)
		r := strings.NewReader("img")
		f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusDraft), nil)
		f.store.On("Put", ctx, mock.Anything, r, mock.Anything).Return(storage.ObjectInfo{Key: "k", Size: 3}, nil)
		f.images.On("Create", ctx, mock.Anything).Return(nil, errors.New("db down"))
		f.store.On("Delete", ctx, mock.MatchedBy(func(key string) bool { return strings.HasPrefix(key, "services/l1/") })).Return(nil)

		_, err := f.svc.AddImage(ctx, owner, model.KindService, "l1", r, "image/jpeg", 3)
		assert.EqualError(t, err, "db save failed: db down")
	})

	t.Run("rejects unsupported type and size", func(t *testing.T) {
		f := newListingFixture(t)
		var ve *ValidationError

		_, err := f.svc.AddImage(ctx, owner, model.KindService, "l1", strings.NewReader("x"), "application/pdf", 1)
		assert.True(t, errors.As(err, &ve))

		_, err = f.svc.AddImage(ctx, owner, model.KindService, "l1", strings.NewReader("x"), "image/png", 4096)
		assert.True(t, errors.As(err, &ve))
	})
}

func TestListingService_RemoveImage(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t)
	f.listings.On("FindByID", ctx, model.KindService, "l1").Return(listingIn(model.StatusDraft), nil)
	f.images.On("FindByID", ctx, "i1").Return(&model.Image{ID: "i1", ListingID: "l1", Kind: model.KindService, ObjectKey: "services/l1/i1.jpg"}, nil)
	f.images.On("FindByID", ctx, "other").Return(&model.Image{ID: "other", ListingID: "l2", Kind: model.KindService}, nil)
	f.images.On("Delete", ctx, "i1").Return(nil)

	require.NoError(t, f.svc.RemoveImage(ctx, Actor{UserID: "owner"}, model.KindService, "l1", "i1"))
	assert.Equal(t, [][]string{{"services/l1/i1.jpg"}}, f.queue.cleanups)

	err := f.svc.RemoveImage(ctx, Actor{UserID: "owner"}, model.KindService, "l1", "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingService_Search(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t)
	f.listings.On("Search", ctx, model.Kinds, "сантехник", repository.PageQuery{Limit: 10}).
		Return(&repository.PageResult[model.Listing]{Items: []model.Listing{{ID: "l1"}}, Total: 1}, nil)

	res, err := f.svc.Search(ctx, " сантехник ", nil, Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	_, err = f.svc.Search(ctx, "   ", nil, Page{})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestAdminURL(t *testing.T) {
	assert.Equal(t, "https://a/admin/ads/42/change/", AdminURL("https://a/admin", model.KindAd, "42"))
}
