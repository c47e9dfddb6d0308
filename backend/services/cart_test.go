package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCart(t *testing.T, env *testEnv, session string, user CartUser) *Cart {
	t.Helper()
	cart, err := env.svc.Carts.Open(context.Background(), session, user)
	require.NoError(t, err)
	return cart
}

func TestCartTotalTracksItems(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})

	assert.True(t, cart.AddItem(ctx, CartItem{ID: "a", Price: 10}))
	assert.True(t, cart.AddItem(ctx, CartItem{ID: "b", Price: 15}))
	assert.InDelta(t, 25, cart.Total(), 1e-9)

	assert.True(t, cart.RemoveItem(ctx, "a"))
	assert.InDelta(t, 15, cart.Total(), 1e-9)
	require.Len(t, cart.Items(), 1)
	assert.Equal(t, "b", cart.Items()[0].ID)
}

func TestCartTotalAfterManyMutations(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})
	prices := []float64{0.1, 0.2, 0.3, 19.99, 5.01, 100}
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for i, id := range ids {
		cart.AddItem(ctx, CartItem{ID: id, Price: prices[i]})
	}
	cart.RemoveItem(ctx, "b")
	cart.RemoveItem(ctx, "e")
	cart.AddItem(ctx, CartItem{ID: "b", Price: 0.2})

	var sum float64
	for _, it := range cart.Items() {
		sum += it.Price
	}
	assert.InDelta(t, sum, cart.Total(), 1e-9)
}

func TestCartAddIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})
	cart.AddItem(ctx, CartItem{ID: "a", Price: 10})

	assert.False(t, cart.AddItem(ctx, CartItem{ID: "a", Price: 999}))
	require.Len(t, cart.Items(), 1)
	assert.InDelta(t, 10, cart.Total(), 1e-9)
	assert.Equal(t, 10.0, cart.Items()[0].Price)
}

func TestCartRemoveAbsentIsNoop(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})
	cart.AddItem(ctx, CartItem{ID: "a", Price: 10})

	assert.False(t, cart.RemoveItem(ctx, "z"))
	require.Len(t, cart.Items(), 1)
	assert.InDelta(t, 10, cart.Total(), 1e-9)
}

func TestCartPersistsLocallyAndReplays(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})
	cart.AddItem(ctx, CartItem{ID: "a", Title: "A", Price: 10})
	cart.AddItem(ctx, CartItem{ID: "b", Title: "B", Price: 5})

	stored, ok, err := env.store.LoadCart(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored.Items, 2)

	// a restart loses the in-memory cart but not the store
	env.svc.Carts.Forget("s1")
	restored := openCart(t, env, "s1", CartUser{})
	require.Len(t, restored.Items(), 2)
	assert.Equal(t, "a", restored.Items()[0].ID)
	assert.InDelta(t, 15, restored.Total(), 1e-9)
}

func TestCartClearKeepsRemoteOrder(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	course := env.course(t, "A", 10)
	cart := openCart(t, env, "s1", CartUser{ID: user.ID, Email: user.Email})
	cart.AddItem(ctx, CartItemFromCourse(course))
	cart.Flush()

	cart.ClearCart(ctx)
	cart.Flush()
	assert.Empty(t, cart.Items())
	assert.Zero(t, cart.Total())

	order, err := env.svc.Orders.FindCartOrder(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, order.Items, 1)
}

func TestCartMirrorsToSingleCartOrder(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	a := env.course(t, "A", 10)
	b := env.course(t, "B", 15)
	c := env.course(t, "C", 20)

	cart := openCart(t, env, "s1", CartUser{ID: user.ID, Email: user.Email})
	cart.AddItem(ctx, CartItemFromCourse(a))
	cart.AddItem(ctx, CartItemFromCourse(b))
	cart.AddItem(ctx, CartItemFromCourse(c))
	cart.Flush()

	var orders []models.Order
	require.NoError(t, env.db.Where("user_id = ?", user.ID).Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCart, orders[0].Status)
	assert.Equal(t, user.Email, orders[0].UserEmail)
	assert.Len(t, orders[0].Items, 3)
	assert.InDelta(t, 45, orders[0].Total, 1e-9)

	ref, ok, err := env.store.GetRef(ctx, "s1", RefCurrentOrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orders[0].ID, ref)

	cart.RemoveItem(ctx, b.ID)
	cart.Flush()
	order := env.order(t, orders[0].ID)
	assert.Len(t, order.Items, 2)
	assert.InDelta(t, 30, order.Total, 1e-9)
}

func TestCartRemoveDoesNotTouchConvertedOrder(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	a := env.course(t, "A", 10)
	b := env.course(t, "B", 15)

	cart := openCart(t, env, "s1", CartUser{ID: user.ID, Email: user.Email})
	cart.AddItem(ctx, CartItemFromCourse(a))
	cart.AddItem(ctx, CartItemFromCourse(b))
	cart.Flush()

	pendingID, err := env.svc.Orders.ConvertCartOrderToPending(ctx, user.ID)
	require.NoError(t, err)

	cart.RemoveItem(ctx, a.ID)
	cart.Flush()

	assert.Len(t, env.order(t, pendingID).Items, 2)
	_, ok, err := env.store.GetRef(ctx, "s1", RefCurrentOrderID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCartHydratesFromRemoteWithStubFallback(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	live := env.course(t, "Live", 10)
	items := []models.OrderItem{
		{CourseID: live.ID, Title: "Old title", Price: 7},
		{CourseID: "gone", Title: "Retired Course", Price: 3},
	}
	orderID, err := env.svc.Orders.UpsertCartOrder(ctx, user.ID, user.Email, items, 10)
	require.NoError(t, err)

	cart := openCart(t, env, "fresh-device", CartUser{ID: user.ID, Email: user.Email})
	got := cart.Items()
	require.Len(t, got, 2)
	assert.Equal(t, "Live", got[0].Title)
	assert.Equal(t, 10.0, got[0].Price)
	assert.Equal(t, CartItem{ID: "gone", Title: "Retired Course", Price: 3}, got[1])
	assert.InDelta(t, 13, cart.Total(), 1e-9)

	ref, ok, err := env.store.GetRef(ctx, "fresh-device", RefCurrentOrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orderID, ref)
}

func TestLoadCartFromRemoteWithoutCartOrder(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.user(t, "u@example.com")
	cart := openCart(t, env, "s1", CartUser{})

	found, err := cart.LoadCartFromRemote(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, cart.Items())
}

func TestCartSignInLoadsRemoteIntoEmptyCart(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	course := env.course(t, "Saved", 10)
	_, err := env.svc.Orders.UpsertCartOrder(ctx, user.ID, user.Email, []models.OrderItem{{CourseID: course.ID, Title: course.Title, Price: 10}}, 10)
	require.NoError(t, err)

	anon := openCart(t, env, "s1", CartUser{})
	assert.Empty(t, anon.Items())

	signedIn := openCart(t, env, "s1", CartUser{ID: user.ID, Email: user.Email})
	require.Len(t, signedIn.Items(), 1)
	assert.Equal(t, course.ID, signedIn.Items()[0].ID)
}

func TestCartSignInMirrorsAnonymousItems(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	course := env.course(t, "Picked", 10)

	anon := openCart(t, env, "s1", CartUser{})
	anon.AddItem(ctx, CartItemFromCourse(course))

	cart := openCart(t, env, "s1", CartUser{ID: user.ID, Email: user.Email})
	cart.Flush()

	order, err := env.svc.Orders.FindCartOrder(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, course.ID, order.Items[0].CourseID)
}

func TestCartCheckoutRefs(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})
	cart.AddItem(ctx, CartItem{ID: "a", Price: 10})

	cart.RememberCheckout(ctx, "order-1", []string{"a"})
	assert.Equal(t, PaymentRefs{OrderID: "order-1", CourseIDs: []string{"a"}}, cart.CheckoutRefs(ctx))

	cart.CompleteCheckout(ctx)
	assert.Empty(t, cart.Items())
	assert.Equal(t, PaymentRefs{}, cart.CheckoutRefs(ctx))
}

func TestOpenRequiresSession(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.Carts.Open(context.Background(), "", CartUser{})
	assert.Error(t, err)
}

func TestRedisCartStoreKeys(t *testing.T) {
	assert.Equal(t, "cart:abc", cartKey("abc"))
	assert.Equal(t, "cart:abc:refs", refsKey("abc"))
}

// slowStore holds its first SaveCart until release is closed.
type slowStore struct {
	*MemoryCartStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) SaveCart(ctx context.Context, sessionID string, state CartState) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.MemoryCartStore.SaveCart(ctx, sessionID, state)
}

func TestCartConcurrentAddsPersistLatestState(t *testing.T) {
	env := newTestEnv(t, false)
	store := &slowStore{MemoryCartStore: NewMemoryCartStore(), entered: make(chan struct{}), release: make(chan struct{})}
	env.svc = NewContainer(env.db, env.cfg, store, nil, nil, utils.NopLogger())
	ctx := context.Background()
	cart := openCart(t, env, "s1", CartUser{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cart.AddItem(ctx, CartItem{ID: "a", Price: 10})
	}()
	<-store.entered
	go func() {
		defer wg.Done()
		cart.AddItem(ctx, CartItem{ID: "b", Price: 15})
	}()
	require.Eventually(t, func() bool { return len(cart.Items()) == 2 }, time.Second, 5*time.Millisecond)
	close(store.release)
	wg.Wait()

	stored, ok, err := store.LoadCart(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored.Items, 2)
	assert.InDelta(t, 25, stored.Total, 1e-9)
}

func cachedCarts(env *testEnv) int {
	env.svc.Carts.mu.Lock()
	defer env.svc.Carts.mu.Unlock()
	return len(env.svc.Carts.carts)
}

func TestOpenDoesNotCacheEmptyAnonymousCarts(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		openCart(t, env, fmt.Sprintf("anon-%d", i), CartUser{})
	}
	assert.Equal(t, 0, cachedCarts(env))

	cart := openCart(t, env, "s1", CartUser{})
	cart.AddItem(ctx, CartItem{ID: "a", Price: 10})
	assert.Equal(t, 1, cachedCarts(env))
	assert.Same(t, cart, openCart(t, env, "s1", CartUser{}))
}

func TestEvictIdleDropsStaleCarts(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	env.svc.Carts.now = func() time.Time { return now }

	old := openCart(t, env, "old", CartUser{})
	old.AddItem(ctx, CartItem{ID: "a", Price: 10})
	now = now.Add(time.Hour)
	fresh := openCart(t, env, "fresh", CartUser{})
	fresh.AddItem(ctx, CartItem{ID: "b", Price: 5})

	assert.Equal(t, 1, env.svc.Carts.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, cachedCarts(env))
	assert.Same(t, fresh, openCart(t, env, "fresh", CartUser{}))

	restored := openCart(t, env, "old", CartUser{})
	assert.NotSame(t, old, restored)
	require.Len(t, restored.Items(), 1)
	assert.Equal(t, "a", restored.Items()[0].ID)
}

func TestDetachedCartsShareOneSession(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	first := openCart(t, env, "s1", CartUser{})
	second := openCart(t, env, "s1", CartUser{})

	first.AddItem(ctx, CartItem{ID: "a", Price: 10})
	second.AddItem(ctx, CartItem{ID: "b", Price: 15})

	cart := openCart(t, env, "s1", CartUser{})
	assert.Same(t, first, cart)
	require.Len(t, cart.Items(), 2)
	assert.InDelta(t, 25, cart.Total(), 1e-9)
}
