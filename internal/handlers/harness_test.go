package handlers

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/internal/services"
	"github.com/saifulabidin/fake-pinterest/internal/store"
	"github.com/saifulabidin/fake-pinterest/types"
)

const testCookieName = "fp_session"

// fakeVerifier accepts one configured token and rejects everything else.
type fakeVerifier struct {
	token       string
	identity    auth.Identity
	err         error
	verifyCalls int
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (auth.Identity, error) {
	v.verifyCalls++
	if v.err != nil {
		return auth.Identity{}, v.err
	}
	if token != v.token {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return v.identity, nil
}

type stubUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[int]types.User{}}
}

func (r *stubUserRepo) add(user types.User) types.User {
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user
}

func (r *stubUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *stubUserRepo) GetByFirebaseUID(ctx context.Context, uid string) (types.User, error) {
	for _, user := range r.users {
		if user.FirebaseUID == uid {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *stubUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.FirebaseUID == user.FirebaseUID {
			return types.User{}, store.ErrDuplicate
		}
	}
	return r.add(user), nil
}

func (r *stubUserRepo) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

type stubSessionRepo struct {
	sessions map[string]types.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: map[string]types.Session{}}
}

func (r *stubSessionRepo) Create(ctx context.Context, session types.Session) (types.Session, error) {
	r.sessions[session.Token] = session
	return session, nil
}

func (r *stubSessionRepo) GetByToken(ctx context.Context, token string) (types.Session, error) {
	session, ok := r.sessions[token]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (r *stubSessionRepo) Delete(ctx context.Context, token string) error {
	delete(r.sessions, token)
	return nil
}

func (r *stubSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var removed int64
	now := time.Now()
	for token, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed, nil
}

type stubImageRepo struct {
	nextID int
	images map[int]types.Image
}

func newStubImageRepo() *stubImageRepo {
	return &stubImageRepo{images: map[int]types.Image{}}
}

func (r *stubImageRepo) add(image types.Image) types.Image {
	r.nextID++
	image.ID = r.nextID
	r.images[image.ID] = image
	return image
}

func (r *stubImageRepo) sorted(keep func(types.Image) bool) []types.Image {
	matched := make([]types.Image, 0, len(r.images))
	for _, img := range r.images {
		if keep(img) {
			matched = append(matched, img)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return matched
}

func slicePage(images []types.Image, offset, limit int) []types.Image {
	if offset >= len(images) {
		return []types.Image{}
	}
	end := offset + limit
	if end > len(images) {
		end = len(images)
	}
	return images[offset:end]
}

func (r *stubImageRepo) List(ctx context.Context, offset, limit, ownerID int) ([]types.Image, int, error) {
	matched := r.sorted(func(img types.Image) bool {
		return ownerID == 0 || img.UserID == ownerID
	})
	return slicePage(matched, offset, limit), len(matched), nil
}

func (r *stubImageRepo) Search(ctx context.Context, query string, offset, limit int) ([]types.Image, int, error) {
	query = strings.ToLower(query)
	matched := r.sorted(func(img types.Image) bool {
		return strings.Contains(strings.ToLower(img.Title), query)
	})
	return slicePage(matched, offset, limit), len(matched), nil
}

func (r *stubImageRepo) Get(ctx context.Context, id int) (types.Image, error) {
	img, ok := r.images[id]
	if !ok {
		return types.Image{}, store.ErrNotFound
	}
	return img, nil
}

func (r *stubImageRepo) Create(ctx context.Context, image types.Image) (types.Image, error) {
	return r.add(image), nil
}

func (r *stubImageRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.images[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *stubImageRepo) CountByUser(ctx context.Context, userID int) (int, error) {
	count := 0
	for _, img := range r.images {
		if img.UserID == userID {
			count++
		}
	}
	return count, nil
}

type stubObjectStore struct {
	objects map[string][]byte
}

func (s *stubObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *stubObjectStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *stubObjectStore) URL(key string) string {
	return "http://localhost:8080/uploads/" + key
}

// harness wires real services over in-memory repositories behind a chi
// router, mirroring the server's route layout.
type harness struct {
	router   *chi.Mux
	verifier *fakeVerifier
	users    *stubUserRepo
	sessions *stubSessionRepo
	images   *stubImageRepo
	objects  *stubObjectStore

	userService    *services.UserService
	sessionService *services.SessionService
	imageService   *services.ImageService
}

func newHarness() *harness {
	h := &harness{
		verifier: &fakeVerifier{},
		users:    newStubUserRepo(),
		sessions: newStubSessionRepo(),
		images:   newStubImageRepo(),
		objects:  &stubObjectStore{objects: map[string][]byte{}},
	}

	h.userService = services.NewUserService(h.users)
	h.sessionService = services.NewSessionService(h.sessions, h.users, time.Hour)
	h.imageService = services.NewImageService(h.images, h.userService, h.objects, nil, nil, 1<<20)

	resolver := NewSessionResolver(h.sessionService, h.userService, h.verifier, testCookieName)

	h.router = chi.NewRouter()
	h.router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, resolver, h.verifier, h.userService, h.imageService, h.sessionService)
	})
	h.router.Route("/api/images", func(r chi.Router) {
		ImageRouter(r, h.imageService, resolver)
	})
	return h
}

// login seeds a user plus a live session and returns both.
func (h *harness) login(username string) (types.User, types.Session) {
	user := h.users.add(types.User{
		FirebaseUID: "uid-" + username,
		Username:    username,
		Role:        types.RoleUser,
	})
	session, _ := h.sessions.Create(context.Background(), types.Session{
		Token:     "session-" + username,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return user, session
}
