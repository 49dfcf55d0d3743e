// Package servicestest provides in-memory implementations of the
// repositories and collaborators the services depend on. They follow the
// ownership and ordering rules of the Postgres repositories.
package servicestest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/recipe-app/apiserver/internal/storage"
	"github.com/recipe-app/apiserver/internal/store"
	"github.com/recipe-app/apiserver/types"
)

type UserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: map[int]types.User{}}
}

func (r *UserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *UserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *UserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

type TokenRepo struct {
	mu     sync.Mutex
	byUser map[int]types.Token
}

func NewTokenRepo() *TokenRepo {
	return &TokenRepo{byUser: map[int]types.Token{}}
}

func (r *TokenRepo) GetByKey(_ context.Context, key string) (types.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.byUser {
		if token.Key == key {
			return token, nil
		}
	}
	return types.Token{}, store.ErrNotFound
}

func (r *TokenRepo) GetOrCreate(_ context.Context, userID int, key string) (types.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.byUser[userID]; ok {
		return token, nil
	}
	token := types.Token{Key: key, UserID: userID}
	r.byUser[userID] = token
	return token, nil
}

func (r *TokenRepo) DeleteByUser(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID]; !ok {
		return store.ErrNotFound
	}
	delete(r.byUser, userID)
	return nil
}

type attribute struct {
	id, userID int
	name       string
}

// AttributeRepo mirrors the store's name-only tables. links reports
// which attribute ids the user's recipes reference.
type AttributeRepo[T any] struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]attribute
	build  func(attribute) T
	links  func(userID int) map[int]bool
}

func NewTagRepo() *AttributeRepo[types.Tag] {
	return &AttributeRepo[types.Tag]{
		rows: map[int]attribute{},
		build: func(a attribute) types.Tag {
			return types.Tag{ID: a.id, Name: a.name, UserID: a.userID}
		},
	}
}

func NewIngredientRepo() *AttributeRepo[types.Ingredient] {
	return &AttributeRepo[types.Ingredient]{
		rows: map[int]attribute{},
		build: func(a attribute) types.Ingredient {
			return types.Ingredient{ID: a.id, Name: a.name, UserID: a.userID}
		},
	}
}

func (r *AttributeRepo[T]) List(_ context.Context, userID int, assignedOnly bool) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var linked map[int]bool
	if assignedOnly && r.links != nil {
		linked = r.links(userID)
	}
	rows := make([]attribute, 0)
	for _, row := range r.rows {
		if row.userID != userID {
			continue
		}
		if assignedOnly && !linked[row.id] {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].name != rows[j].name {
			return rows[i].name > rows[j].name
		}
		return rows[i].id > rows[j].id
	})
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, r.build(row))
	}
	return items, nil
}

func (r *AttributeRepo[T]) Get(_ context.Context, userID, id int) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.userID != userID {
		var zero T
		return zero, store.ErrNotFound
	}
	return r.build(row), nil
}

func (r *AttributeRepo[T]) Create(_ context.Context, userID int, name string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row := attribute{id: r.nextID, userID: userID, name: name}
	r.rows[row.id] = row
	return r.build(row), nil
}

func (r *AttributeRepo[T]) Rename(_ context.Context, userID, id int, name string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.userID != userID {
		var zero T
		return zero, store.ErrNotFound
	}
	row.name = name
	r.rows[id] = row
	return r.build(row), nil
}

func (r *AttributeRepo[T]) Delete(_ context.Context, userID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.userID != userID {
		return store.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *AttributeRepo[T]) CountOwned(_ context.Context, userID int, ids []int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if row, ok := r.rows[id]; ok && row.userID == userID {
			n++
		}
	}
	return n, nil
}

// RecipeRepo stores recipes in memory. A non-nil FailSetImage makes
// SetImage fail.
type RecipeRepo struct {
	FailSetImage error

	mu      sync.Mutex
	nextID  int
	recipes map[int]types.Recipe
	tags    *AttributeRepo[types.Tag]
	ingr    *AttributeRepo[types.Ingredient]
}

func NewRecipeRepo(tags *AttributeRepo[types.Tag], ingr *AttributeRepo[types.Ingredient]) *RecipeRepo {
	r := &RecipeRepo{recipes: map[int]types.Recipe{}, tags: tags, ingr: ingr}
	tags.links = func(userID int) map[int]bool { return r.linked(userID, true) }
	ingr.links = func(userID int) map[int]bool { return r.linked(userID, false) }
	return r
}

func (r *RecipeRepo) linked(userID int, tags bool) map[int]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int]bool{}
	for _, recipe := range r.recipes {
		if recipe.UserID != userID {
			continue
		}
		ids := recipe.IngredientIDs
		if tags {
			ids = recipe.TagIDs
		}
		for _, id := range ids {
			out[id] = true
		}
	}
	return out
}

func matchesAny(ids, want []int) bool {
	if len(want) == 0 {
		return true
	}
	for _, id := range ids {
		for _, w := range want {
			if id == w {
				return true
			}
		}
	}
	return false
}

func (r *RecipeRepo) List(_ context.Context, userID int, filter types.RecipeFilter) ([]types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Recipe, 0)
	for _, recipe := range r.recipes {
		if recipe.UserID != userID {
			continue
		}
		if !matchesAny(recipe.TagIDs, filter.TagIDs) || !matchesAny(recipe.IngredientIDs, filter.IngredientIDs) {
			continue
		}
		out = append(out, recipe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *RecipeRepo) Get(_ context.Context, userID, id int) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recipe, ok := r.recipes[id]
	if !ok || recipe.UserID != userID {
		return types.Recipe{}, store.ErrNotFound
	}
	return recipe, nil
}

func (r *RecipeRepo) GetDetail(ctx context.Context, userID, id int) (types.RecipeDetail, error) {
	recipe, err := r.Get(ctx, userID, id)
	if err != nil {
		return types.RecipeDetail{}, err
	}
	detail := types.RecipeDetail{Recipe: recipe, Tags: []types.Tag{}, Ingredients: []types.Ingredient{}}
	for _, tagID := range recipe.TagIDs {
		tag, err := r.tags.Get(ctx, userID, tagID)
		if err == nil {
			detail.Tags = append(detail.Tags, tag)
		}
	}
	for _, ingredientID := range recipe.IngredientIDs {
		ingredient, err := r.ingr.Get(ctx, userID, ingredientID)
		if err == nil {
			detail.Ingredients = append(detail.Ingredients, ingredient)
		}
	}
	return detail, nil
}

func (r *RecipeRepo) Create(_ context.Context, recipe types.Recipe) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	recipe.ID = r.nextID
	r.recipes[recipe.ID] = recipe
	return recipe, nil
}

func (r *RecipeRepo) Update(_ context.Context, recipe types.Recipe, replaceTags, replaceIngredients bool) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.recipes[recipe.ID]
	if !ok || current.UserID != recipe.UserID {
		return types.Recipe{}, store.ErrNotFound
	}
	if !replaceTags {
		recipe.TagIDs = current.TagIDs
	}
	if !replaceIngredients {
		recipe.IngredientIDs = current.IngredientIDs
	}
	recipe.Image = current.Image
	r.recipes[recipe.ID] = recipe
	return recipe, nil
}

func (r *RecipeRepo) SetImage(_ context.Context, userID, id int, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSetImage != nil {
		return "", r.FailSetImage
	}
	recipe, ok := r.recipes[id]
	if !ok || recipe.UserID != userID {
		return "", store.ErrNotFound
	}
	previous := recipe.Image
	recipe.Image = key
	r.recipes[id] = recipe
	return previous, nil
}

func (r *RecipeRepo) Delete(_ context.Context, userID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	recipe, ok := r.recipes[id]
	if !ok || recipe.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.recipes, id)
	return nil
}

type ObjectStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (s *ObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.contentTypes[key] = contentType
	return nil
}

func (s *ObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *ObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Has reports whether key is stored.
func (s *ObjectStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// ContentType returns the content type key was stored with.
func (s *ObjectStore) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentTypes[key]
}

// Len is the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Published is one captured Publish call.
type Published struct {
	Channel string
	Data    []byte
	Attrs   map[string]string
}

// Publisher captures published messages. A non-nil Err fails every call.
type Publisher struct {
	Err error

	mu   sync.Mutex
	msgs []Published
}

func (p *Publisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.msgs = append(p.msgs, Published{Channel: channel, Data: data, Attrs: attrs})
	return fmt.Sprintf("msg-%d", len(p.msgs)), nil
}

// On returns the messages published on channel, oldest first.
func (p *Publisher) On(channel string) []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Published
	for _, msg := range p.msgs {
		if msg.Channel == channel {
			out = append(out, msg)
		}
	}
	return out
}
