package services

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saifulabidin/fake-pinterest/internal/store"
	"github.com/saifulabidin/fake-pinterest/types"
)

// In-memory repositories backing the service tests.

type memUserRepo struct {
	mu        sync.Mutex
	nextID    int
	users     map[int]types.User
	createErr error
	// createHook runs before each insert, letting a test simulate a
	// concurrent writer winning the unique-constraint race.
	createHook func(r *memUserRepo)
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int]types.User{}}
}

func (r *memUserRepo) add(user types.User) types.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(user)
}

func (r *memUserRepo) insertLocked(user types.User) types.User {
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByFirebaseUID(ctx context.Context, uid string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.sortedLocked() {
		if user.FirebaseUID == uid {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.sortedLocked() {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createHook != nil {
		r.createHook(r)
	}
	if r.createErr != nil {
		return types.User{}, r.createErr
	}
	for _, existing := range r.users {
		if existing.FirebaseUID == user.FirebaseUID {
			return types.User{}, store.ErrDuplicate
		}
	}
	return r.insertLocked(user), nil
}

func (r *memUserRepo) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) sortedLocked() []types.User {
	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

type memImageRepo struct {
	mu        sync.Mutex
	nextID    int
	images    map[int]types.Image
	createErr error
}

func newMemImageRepo() *memImageRepo {
	return &memImageRepo{images: map[int]types.Image{}}
}

func (r *memImageRepo) add(image types.Image) types.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	image.ID = r.nextID
	r.images[image.ID] = image
	return image
}

func (r *memImageRepo) List(ctx context.Context, offset, limit, ownerID int) ([]types.Image, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.matchLocked(func(img types.Image) bool {
		return ownerID == 0 || img.UserID == ownerID
	})
	return page(matched, offset, limit), len(matched), nil
}

func (r *memImageRepo) Search(ctx context.Context, query string, offset, limit int) ([]types.Image, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query = strings.ToLower(query)
	matched := r.matchLocked(func(img types.Image) bool {
		if strings.Contains(strings.ToLower(img.Title), query) {
			return true
		}
		if strings.Contains(strings.ToLower(img.Description), query) {
			return true
		}
		for _, tag := range img.Tags {
			if strings.Contains(tag, query) {
				return true
			}
		}
		return false
	})
	return page(matched, offset, limit), len(matched), nil
}

func (r *memImageRepo) matchLocked(keep func(types.Image) bool) []types.Image {
	matched := make([]types.Image, 0, len(r.images))
	for _, img := range r.images {
		if keep(img) {
			matched = append(matched, img)
		}
	}
	// Newest first, mirroring the created_at DESC ordering in SQL.
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return matched
}

func page(images []types.Image, offset, limit int) []types.Image {
	if offset >= len(images) {
		return []types.Image{}
	}
	end := offset + limit
	if end > len(images) {
		end = len(images)
	}
	return images[offset:end]
}

func (r *memImageRepo) Get(ctx context.Context, id int) (types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return types.Image{}, store.ErrNotFound
	}
	return img, nil
}

func (r *memImageRepo) Create(ctx context.Context, image types.Image) (types.Image, error) {
	if r.createErr != nil {
		return types.Image{}, r.createErr
	}
	image.CreatedAt = time.Now()
	image.UpdatedAt = image.CreatedAt
	return r.add(image), nil
}

func (r *memImageRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *memImageRepo) CountByUser(ctx context.Context, userID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, img := range r.images {
		if img.UserID == userID {
			count++
		}
	}
	return count, nil
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
	putErr  error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{
		objects: map[string][]byte{},
		baseURL: "http://localhost:8080",
	}
}

func (s *memObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *memObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStore) URL(key string) string {
	return s.baseURL + "/uploads/" + key
}

func (s *memObjectStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *memObjectStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]types.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]types.Session{}}
}

func (r *memSessionRepo) Create(ctx context.Context, session types.Session) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.CreatedAt = time.Now()
	r.sessions[session.Token] = session
	return session, nil
}

func (r *memSessionRepo) GetByToken(ctx context.Context, token string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (r *memSessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memSessionRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
