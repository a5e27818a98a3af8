package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dynencounters/npc-engine/internal/services"
	"github.com/dynencounters/npc-engine/pkg/core"
)

type cached[T any] struct {
	value     T
	fetchedAt time.Time
	ok        bool
}

func (c cached[T]) fresh(now time.Time, ttl time.Duration) bool {
	return c.ok && now.Sub(c.fetchedAt) < ttl
}

type constructElements struct {
	mu          sync.Mutex
	coreUnit    cached[core.ElementID]
	weaponUnits cached[[]core.ElementInfo]
	power       cached[float64]
	elements    map[core.ElementID]cached[core.ElementInfo]
}

// CachedElements decorates an ElementService. Each value is reused for
// valueTTL; a construct's whole entry is dropped once it has not been
// touched for constructTTL.
type CachedElements struct {
	next     services.ElementService
	valueTTL time.Duration
	entries  *Expiring[core.ConstructID, *constructElements]
	now      func() time.Time
}

func NewCachedElements(next services.ElementService, valueTTL, constructTTL time.Duration) *CachedElements {
	return &CachedElements{
		next:     next,
		valueTTL: valueTTL,
		entries:  NewExpiring[core.ConstructID, *constructElements](constructTTL),
		now:      time.Now,
	}
}

var (
	_ services.CachedElementService = (*CachedElements)(nil)
	_ services.DestructionSink      = (*CachedElements)(nil)
)

func (c *CachedElements) entry(id core.ConstructID) *constructElements {
	return c.entries.GetOrCreate(id, func() *constructElements {
		return &constructElements{elements: make(map[core.ElementID]cached[core.ElementInfo])}
	})
}

func (c *CachedElements) CoreUnit(ctx context.Context, id core.ConstructID) (core.ElementID, error) {
	e := c.entry(id)
	e.mu.Lock()
	hit := e.coreUnit
	e.mu.Unlock()
	if hit.fresh(c.now(), c.valueTTL) {
		return hit.value, nil
	}
	return c.fetchCoreUnit(ctx, id, e)
}

func (c *CachedElements) fetchCoreUnit(ctx context.Context, id core.ConstructID, e *constructElements) (core.ElementID, error) {
	v, err := c.next.CoreUnit(ctx, id)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.coreUnit = cached[core.ElementID]{value: v, fetchedAt: c.now(), ok: true}
	e.mu.Unlock()
	return v, nil
}

func (c *CachedElements) Element(ctx context.Context, id core.ConstructID, elementID core.ElementID) (core.ElementInfo, error) {
	e := c.entry(id)
	e.mu.Lock()
	hit := e.elements[elementID]
	e.mu.Unlock()
	if hit.fresh(c.now(), c.valueTTL) {
		return hit.value, nil
	}
	return c.fetchElement(ctx, id, elementID, e)
}

func (c *CachedElements) fetchElement(ctx context.Context, id core.ConstructID, elementID core.ElementID, e *constructElements) (core.ElementInfo, error) {
	v, err := c.next.Element(ctx, id, elementID)
	if err != nil {
		return core.ElementInfo{}, err
	}
	e.mu.Lock()
	e.elements[elementID] = cached[core.ElementInfo]{value: v, fetchedAt: c.now(), ok: true}
	e.mu.Unlock()
	return v, nil
}

func (c *CachedElements) WeaponUnits(ctx context.Context, id core.ConstructID) ([]core.ElementInfo, error) {
	e := c.entry(id)
	e.mu.Lock()
	hit := e.weaponUnits
	e.mu.Unlock()
	if hit.fresh(c.now(), c.valueTTL) {
		return hit.value, nil
	}
	return c.fetchWeaponUnits(ctx, id, e)
}

func (c *CachedElements) fetchWeaponUnits(ctx context.Context, id core.ConstructID, e *constructElements) ([]core.ElementInfo, error) {
	v, err := c.next.WeaponUnits(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.weaponUnits = cached[[]core.ElementInfo]{value: v, fetchedAt: c.now(), ok: true}
	e.mu.Unlock()
	return v, nil
}

func (c *CachedElements) SpaceEnginesPower(ctx context.Context, id core.ConstructID) (float64, error) {
	e := c.entry(id)
	e.mu.Lock()
	hit := e.power
	e.mu.Unlock()
	if hit.fresh(c.now(), c.valueTTL) {
		return hit.value, nil
	}
	return c.fetchPower(ctx, id, e)
}

func (c *CachedElements) fetchPower(ctx context.Context, id core.ConstructID, e *constructElements) (float64, error) {
	v, err := c.next.SpaceEnginesPower(ctx, id)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.power = cached[float64]{value: v, fetchedAt: c.now(), ok: true}
	e.mu.Unlock()
	return v, nil
}

// NoCache returns a view that always asks the wrapped service. Results still
// refresh the cache.
func (c *CachedElements) NoCache() services.ElementService {
	return noCache{c}
}

// ResetExpiration keeps the construct's entry alive for another constructTTL.
func (c *CachedElements) ResetExpiration(id core.ConstructID) {
	c.entries.Touch(id)
}

// Forget drops everything cached for a construct.
func (c *CachedElements) Forget(id core.ConstructID) {
	c.entries.Delete(id)
}

// Purge drops expired construct entries.
func (c *CachedElements) Purge() int {
	return c.entries.Purge()
}

// ConstructDestroyed forgets a destroyed construct.
func (c *CachedElements) ConstructDestroyed(_ context.Context, e core.DestructionEvent) error {
	c.Forget(e.ConstructID)
	return nil
}

// PurgeEvery purges expired entries every interval until ctx is done.
func (c *CachedElements) PurgeEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Purge()
		}
	}
}

type noCache struct{ c *CachedElements }

func (n noCache) CoreUnit(ctx context.Context, id core.ConstructID) (core.ElementID, error) {
	return n.c.fetchCoreUnit(ctx, id, n.c.entry(id))
}

func (n noCache) Element(ctx context.Context, id core.ConstructID, elementID core.ElementID) (core.ElementInfo, error) {
	return n.c.fetchElement(ctx, id, elementID, n.c.entry(id))
}

func (n noCache) WeaponUnits(ctx context.Context, id core.ConstructID) ([]core.ElementInfo, error) {
	return n.c.fetchWeaponUnits(ctx, id, n.c.entry(id))
}

func (n noCache) SpaceEnginesPower(ctx context.Context, id core.ConstructID) (float64, error) {
	return n.c.fetchPower(ctx, id, n.c.entry(id))
}
