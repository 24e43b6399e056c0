package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
	serviceMocks "sunnyapi/internal/service/mocks"
)

var (
	member    = service.Actor{UserID: "u1"}
	moderator = service.Actor{UserID: "m1", IsStaff: true}
)

type testServer struct {
	app       *fiber.App
	auth      *serviceMocks.MockAuthService
	listings  *serviceMocks.MockListingService
	taxonomy  *serviceMocks.MockTaxonomyService
	comments  *serviceMocks.MockCommentService
	favorites *serviceMocks.MockFavoriteService
	notes     *serviceMocks.MockNotificationService
	chats     *serviceMocks.MockChatService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		auth:      new(serviceMocks.MockAuthService),
		listings:  new(serviceMocks.MockListingService),
		taxonomy:  new(serviceMocks.MockTaxonomyService),
		comments:  new(serviceMocks.MockCommentService),
		favorites: new(serviceMocks.MockFavoriteService),
		notes:     new(serviceMocks.MockNotificationService),
		chats:     new(serviceMocks.MockChatService),
	}
	s.auth.On("ParseToken", "user-token").Return(member, nil).Maybe()
	s.auth.On("ParseToken", "staff-token").Return(moderator, nil).Maybe()
	s.auth.On("ParseToken", mock.Anything).Return(service.Actor{}, errors.New("invalid token")).Maybe()

	s.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	RegisterRoutes(s.app, Deps{
		Auth:          s.auth,
		Listings:      s.listings,
		Taxonomy:      s.taxonomy,
		Comments:      s.comments,
		Favorites:     s.favorites,
		Notifications: s.notes,
		Chats:         s.chats,
		AuthRateLimit: 1000,
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		in := service.RegisterInput{Email: "anna@example.ru", Password: "secret123", Name: "Анна"}
		s.auth.On("Register", mock.Anything, in).Return(&model.User{ID: "u1", Email: in.Email, Name: in.Name}, nil).Once()

		resp := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
			"email": in.Email, "password": in.Password, "name": in.Name,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var user model.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("validation", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{"email": "not-an-email", "password": "short"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		assert.Equal(t, "invalid email address", res.Error.Details["email"])
		assert.Equal(t, "must be at least 8", res.Error.Details["password"])
		assert.Equal(t, "is required", res.Error.Details["name"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Error.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s.auth.On("Register", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("user: %w", service.ErrAlreadyExists)).Once()

		resp := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
			"email": "anna@example.ru", "password": "secret123", "name": "Анна",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "ALREADY_EXISTS", decodeError(t, resp).Error.Code)
	})
	s.auth.AssertExpectations(t)
}

func TestLogin_Unauthorized(t *testing.T) {
	s := newTestServer(t)
	s.auth.On("Login", mock.Anything, "anna@example.ru", "wrong-pass").Return(nil, service.ErrUnauthorized).Once()

	resp := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "anna@example.ru", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s.auth.On("Me", mock.Anything, "u1").Return(&model.User{ID: "u1"}, nil).Once()
	resp = s.do(t, http.MethodGet, "/api/users/me", "user-token", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/users/me", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListListings(t *testing.T) {
	s := newTestServer(t)

	t.Run("filters", func(t *testing.T) {
		minPrice := 500.0
		q := service.ListingQuery{TaxonomyID: "2b7d1c8e-4f3a-4e21-9c6d-5a8b0f1e2d3c", Query: "сантехник", MinPrice: &minPrice, OrderBy: "-price"}
		res := &service.ListResult[model.Listing]{Items: []model.Listing{{ID: "l1", Kind: model.KindService}}, Total: 1}
		s.listings.On("List", mock.Anything, model.KindService, q, service.Page{Limit: 10}).Return(res, nil).Once()

		resp := s.do(t, http.MethodGet, "/api/services?category=2b7d1c8e-4f3a-4e21-9c6d-5a8b0f1e2d3c&q=%D1%81%D0%B0%D0%BD%D1%82%D0%B5%D1%85%D0%BD%D0%B8%D0%BA&min_price=500&ordering=-price&limit=10", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data  []model.Listing `json:"data"`
			Total int             `json:"total"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Data, 1)
		assert.Equal(t, 1, body.Total)
	})

	t.Run("ads use the type filter", func(t *testing.T) {
		q := service.ListingQuery{TaxonomyID: "9a4e6b21-7c3d-4f58-8e1a-0b2c3d4e5f60"}
		s.listings.On("List", mock.Anything, model.KindAd, q, service.Page{}).
			Return(&service.ListResult[model.Listing]{}, nil).Once()

		resp := s.do(t, http.MethodGet, "/api/ads?type=9a4e6b21-7c3d-4f58-8e1a-0b2c3d4e5f60", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/services?limit=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid price", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/services?max_price=cheap", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		assert.Equal(t, "must be a number", res.Error.Details["max_price"])
	})

	t.Run("malformed ids", func(t *testing.T) {
		for param, path := range map[string]string{
			"category": "/api/services?category=abc",
			"type":     "/api/ads?type=abc",
			"provider": "/api/services?provider=abc",
		} {
			resp := s.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
			res := decodeError(t, resp)
			assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
			assert.Equal(t, "must be a valid id", res.Error.Details[param])
		}
	})

	t.Run("service error", func(t *testing.T) {
		s.listings.On("List", mock.Anything, model.KindService, service.ListingQuery{}, service.Page{}).
			Return(nil, errors.New("db down")).Once()

		resp := s.do(t, http.MethodGet, "/api/services", "", nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
	})
	s.listings.AssertExpectations(t)
}

func TestGetListing(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New().String()

	t.Run("anonymous", func(t *testing.T) {
		s.listings.On("Get", mock.Anything, service.Actor{}, model.KindAd, id).Return(&model.Listing{ID: id, Kind: model.KindAd}, nil).Once()
		resp := s.do(t, http.MethodGet, "/api/ads/"+id, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		s.listings.On("Get", mock.Anything, member, model.KindAd, id).Return(nil, fmt.Errorf("listing: %w", service.ErrNotFound)).Once()
		resp := s.do(t, http.MethodGet, "/api/ads/"+id, "user-token", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/ads/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
	s.listings.AssertExpectations(t)
}

func TestCreateListing(t *testing.T) {
	s := newTestServer(t)

	t.Run("anonymous", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/services", "", fiber.Map{"title": "x", "description": "y"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("profanity", func(t *testing.T) {
		ve := &service.ValidationError{Fields: map[string]string{"title": "text contains obscene language"}}
		err := fmt.Errorf("%w: %w", ve, service.ErrProfanity)
		s.listings.On("Create", mock.Anything, member, model.KindService, mock.Anything).Return(nil, err).Once()

		resp := s.do(t, http.MethodPost, "/api/services", "user-token", fiber.Map{"title": "x", "description": "y"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "PROFANITY", res.Error.Code)
		assert.Contains(t, res.Error.Details, "title")
	})

	t.Run("created", func(t *testing.T) {
		price := 1500.0
		in := service.ListingInput{Title: "Ремонт кранов", Description: "Быстро", Price: &price}
		s.listings.On("Create", mock.Anything, member, model.KindService, in).
			Return(&model.Listing{ID: "l1", Status: model.StatusDraft}, nil).Once()

		resp := s.do(t, http.MethodPost, "/api/services", "user-token", fiber.Map{
			"title": in.Title, "description": in.Description, "price": price,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})
	s.listings.AssertExpectations(t)
}

func TestUpdateListing_NullPriceClears(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New().String()
	patch := model.ListingPatch{ClearPrice: true}
	s.listings.On("Update", mock.Anything, member, model.KindService, id, patch).Return(&model.Listing{ID: id}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/services/"+id, strings.NewReader(`{"price": null}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer user-token")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	s.listings.AssertExpectations(t)
}

func TestTransition(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New().String()

	t.Run("invalid transition", func(t *testing.T) {
		s.listings.On("Transition", mock.Anything, member, model.KindService, id, model.ActionHide, "").
			Return(nil, fmt.Errorf("hide draft: %w", service.ErrInvalidTransition)).Once()

		resp := s.do(t, http.MethodPost, "/api/services/"+id+"/hide", "user-token", nil)
		assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
		assert.Equal(t, "INVALID_TRANSITION", decodeError(t, resp).Error.Code)
	})

	t.Run("reject with reason", func(t *testing.T) {
		s.listings.On("Transition", mock.Anything, moderator, model.KindAd, id, model.ActionReject, "нет фото").
			Return(&model.Listing{ID: id, Status: model.StatusDraft}, nil).Once()

		resp := s.do(t, http.MethodPost, "/api/ads/"+id+"/reject", "staff-token", fiber.Map{"reason": "нет фото"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("forbidden", func(t *testing.T) {
		s.listings.On("Transition", mock.Anything, member, model.KindAd, id, model.ActionApprove, "").
			Return(nil, fmt.Errorf("approve: %w", service.ErrForbidden)).Once()

		resp := s.do(t, http.MethodPost, "/api/ads/"+id+"/approve", "user-token", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
	s.listings.AssertExpectations(t)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("file", "photo.jpg")
		part.Write([]byte("hello world"))
		writer.Close()

		s.listings.On("AddImage", mock.Anything, member, model.KindService, id, mock.Anything, "application/octet-stream", int64(11)).
			Return(&model.Image{ID: "img-1"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/services/"+id+"/images", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer user-token")
		resp, err := s.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/services/"+id+"/images", nil)
		req.Header.Set("Authorization", "Bearer user-token")
		resp, err := s.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})
	s.listings.AssertExpectations(t)
}

func TestCreateComment(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New().String()

	t.Run("rating out of range", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/services/"+id+"/comments", "user-token", fiber.Map{"text": "Отлично", "rating": 6})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "must be at most 5", decodeError(t, resp).Error.Details["rating"])
	})

	t.Run("created", func(t *testing.T) {
		s.comments.On("Create", mock.Anything, member, model.KindService, id, service.CommentInput{Text: "Отлично", Rating: 5}).
			Return(&model.Comment{ID: "c1", Status: model.CommentPending}, nil).Once()

		resp := s.do(t, http.MethodPost, "/api/services/"+id+"/comments", "user-token", fiber.Map{"text": "Отлично", "rating": 5})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})
	s.comments.AssertExpectations(t)
}

func TestModerationRoutes(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/moderation/comments", "user-token", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	s.listings.On("ListModeration", mock.Anything, moderator, model.KindAd, service.Page{}).
		Return(&service.ListResult[model.Listing]{}, nil).Once()
	resp = s.do(t, http.MethodGet, "/api/moderation/listings?kind=ads", "staff-token", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/moderation/listings?kind=cars", "staff-token", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	s.listings.AssertExpectations(t)
}

func TestFavorites(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New().String()

	s.favorites.On("Add", mock.Anything, member, model.KindAd, id).
		Return(nil, fmt.Errorf("favorite: %w", service.ErrAlreadyExists)).Once()
	resp := s.do(t, http.MethodPost, "/api/ads/"+id+"/add-to-favorites", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.favorites.On("Remove", mock.Anything, member, model.KindAd, id).Return(nil).Once()
	resp = s.do(t, http.MethodDelete, "/api/ads/"+id+"/remove-from-favorites", "user-token", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	s.favorites.AssertExpectations(t)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)

	s.listings.On("Search", mock.Anything, "кран", []model.Kind{model.KindAd}, service.Page{}).
		Return(&service.ListResult[model.Listing]{}, nil).Once()
	resp := s.do(t, http.MethodGet, "/api/search?q=%D0%BA%D1%80%D0%B0%D0%BD&kind=ads", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/search?q=x&kind=boats", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	s.listings.AssertExpectations(t)
}

func TestNotificationsAndChats(t *testing.T) {
	s := newTestServer(t)

	s.notes.On("UnreadCount", mock.Anything, member).Return(3, nil).Once()
	resp := s.do(t, http.MethodGet, "/api/notifications/unread-count", "user-token", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var count map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	assert.Equal(t, 3, count["unread"])

	peer := uuid.New().String()
	kind := model.KindService
	target := uuid.New().String()
	s.chats.On("Start", mock.Anything, member, service.StartChatInput{PeerID: peer, TargetKind: &kind, TargetID: &target}).
		Return(&model.Chat{ID: "chat-1"}, nil).Once()
	resp = s.do(t, http.MethodPost, "/api/chats", "user-token", fiber.Map{"peer_id": peer, "target_kind": "services", "target_id": target})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.notes.AssertExpectations(t)
	s.chats.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	s := newTestServer(t)

	t.Run("not found route", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/non-existent", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/healthz", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("my listings require auth", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/ads/my", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	})
}
