// Package catalog resolves the menus and dishes a customer can choose from
// for each day of a long-term booking.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/chefapi"
	"github.com/wolfman30/chefbook/pkg/logging"
)

var catalogTracer = otel.Tracer("chefbook.internal.catalog")

// API is the slice of the backend the resolver reads.
type API interface {
	ListMenus(ctx context.Context, chefID int64) ([]chefapi.MenuSnapshot, error)
	ListDishes(ctx context.Context, chefID int64) ([]chefapi.Dish, error)
	ListDishesNotInMenu(ctx context.Context, menuID int64) ([]chefapi.Dish, error)
}

// Resolver fetches and caches a chef's menus and per-menu dish lists.
type Resolver struct {
	api    API
	cache  Cache
	ttl    time.Duration
	logger *logging.Logger
}

// NewResolver constructs a resolver. A nil cache uses a MemoryCache.
func NewResolver(api API, cache Cache, ttl time.Duration, logger *logging.Logger) *Resolver {
	if api == nil {
		panic("catalog: api required")
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{api: api, cache: cache, ttl: ttl, logger: logger}
}

// MenusKey is the cache key of a chef's menu list.
func MenusKey(chefID int64) string {
	return fmt.Sprintf("chef:%d:menus", chefID)
}

// DishesKey is the cache key of the dish list valid for (chefID, menuID).
func DishesKey(chefID int64, menuID *int64) string {
	if menuID == nil {
		return fmt.Sprintf("chef:%d:dishes:all", chefID)
	}
	return fmt.Sprintf("chef:%d:dishes:not-in-menu:%d", chefID, *menuID)
}

// Menus returns the chef's menus, fetching them at most once per cache lifetime.
func (r *Resolver) Menus(ctx context.Context, chefID int64) ([]chefapi.MenuSnapshot, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.menus")
	defer span.End()
	span.SetAttributes(attribute.Int64("chefbook.chef_id", chefID))

	var menus []chefapi.MenuSnapshot
	if r.lookup(ctx, MenusKey(chefID), &menus) {
		return menus, nil
	}
	menus, err := r.api.ListMenus(ctx, chefID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, MenusKey(chefID), menus)
	return menus, nil
}

// Menu returns one of the chef's menus.
func (r *Resolver) Menu(ctx context.Context, chefID, menuID int64) (*chefapi.MenuSnapshot, error) {
	menus, err := r.Menus(ctx, chefID)
	if err != nil {
		return nil, err
	}
	for i := range menus {
		if menus[i].ID == menuID {
			menu := menus[i]
			return &menu, nil
		}
	}
	return nil, apperr.Validation("menuId", "menu %d is not offered by this chef", menuID)
}

// Dishes returns every dish when menuID is nil, otherwise the dishes not in that menu.
func (r *Resolver) Dishes(ctx context.Context, chefID int64, menuID *int64) ([]chefapi.Dish, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.dishes")
	defer span.End()
	span.SetAttributes(attribute.Int64("chefbook.chef_id", chefID))

	key := DishesKey(chefID, menuID)
	var dishes []chefapi.Dish
	if r.lookup(ctx, key, &dishes) {
		return dishes, nil
	}

	var err error
	if menuID == nil {
		dishes, err = r.api.ListDishes(ctx, chefID)
	} else {
		dishes, err = r.api.ListDishesNotInMenu(ctx, *menuID)
	}
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, dishes)
	return dishes, nil
}

// MenuChanged applies the invalidation rule for a day whose menu moved from
// one value to another: the dish list for the new menu is dropped and fetched
// again. An unchanged menu is served from cache.
func (r *Resolver) MenuChanged(ctx context.Context, chefID int64, from, to *int64) ([]chefapi.Dish, error) {
	if !sameMenu(from, to) {
		key := DishesKey(chefID, to)
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Warn("catalog cache invalidation failed", "key", key, "error", err)
		}
	}
	return r.Dishes(ctx, chefID, to)
}

// DishNames indexes dish names of every dish the chef offers plus menu items.
func (r *Resolver) DishNames(ctx context.Context, chefID int64) (map[int64]string, error) {
	names := map[int64]string{}
	menus, err := r.Menus(ctx, chefID)
	if err != nil {
		return nil, err
	}
	for _, m := range menus {
		for _, item := range m.MenuItems {
			names[item.DishID] = item.DishName
		}
	}
	dishes, err := r.Dishes(ctx, chefID, nil)
	if err != nil {
		return nil, err
	}
	for _, d := range dishes {
		names[d.ID] = d.Name
	}
	return names, nil
}

func (r *Resolver) lookup(ctx context.Context, key string, out interface{}) bool {
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("catalog cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		r.logger.Warn("catalog cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (r *Resolver) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("catalog cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

func sameMenu(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
