package services

import (
	"context"
	"sync"
	"time"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const mirrorTimeout = 30 * time.Second

// CartItem is the course snapshot held in a cart. Identity is the course id.
type CartItem struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug,omitempty"`
	Instructor   string  `json:"instructor,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Duration     string  `json:"duration,omitempty"`
	Price        float64 `json:"price"`
	Category     string  `json:"category,omitempty"`
	Level        string  `json:"level,omitempty"`
}

func CartItemFromCourse(c *models.Course) CartItem {
	return CartItem{
		ID:           c.ID,
		Title:        c.Title,
		Slug:         c.Slug,
		Instructor:   c.Instructor,
		ThumbnailURL: c.ThumbnailURL,
		Duration:     c.Duration,
		Price:        c.Price,
		Category:     c.Category,
		Level:        c.Level,
	}
}

// CartUser is the signed-in owner of a cart. A zero value means anonymous.
type CartUser struct {
	ID    string
	Email string
}

type CartState struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

func orderItemsFromCart(items []CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.OrderItem{CourseID: it.ID, Title: it.Title, Price: it.Price})
	}
	return out
}

// Cart is the authoritative view of what one cart session intends to buy.
// Mutations persist to the CartStore before returning and mirror to the
// user's cart order in the background.
type Cart struct {
	sessionID string
	svc       *CartService
	log       *zap.SugaredLogger

	mu    sync.Mutex
	items []CartItem
	total float64
	user  CartUser

	persistMu sync.Mutex
	mirrorMu  sync.Mutex
	pending   sync.WaitGroup

	// guarded by CartService.mu
	lastUsed time.Time
}

func (c *Cart) SessionID() string { return c.sessionID }

func (c *Cart) User() CartUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Cart) Items() []CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CartItem(nil), c.items...)
}

func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Cart) Snapshot() CartState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cart) snapshotLocked() CartState {
	items := append([]CartItem{}, c.items...)
	return CartState{Items: items, Total: c.total}
}

func (c *Cart) indexLocked(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) insertLocked(item CartItem) bool {
	if item.ID == "" || c.indexLocked(item.ID) >= 0 {
		return false
	}
	c.items = append(c.items, item)
	c.total += item.Price
	return true
}

// AddItem inserts item unless its id is already present. added is false for
// the no-op case.
func (c *Cart) AddItem(ctx context.Context, item CartItem) (added bool) {
	if kept := c.svc.keep(c); kept != c {
		return kept.AddItem(ctx, item)
	}
	c.mu.Lock()
	added = c.insertLocked(item)
	signedIn := c.user.ID != ""
	c.mu.Unlock()
	if !added {
		return false
	}
	c.persist(ctx)
	if signedIn {
		c.mirror(true)
	}
	return true
}

// RemoveItem drops the item with id when present. The remote cart order is
// only updated when one is already referenced.
func (c *Cart) RemoveItem(ctx context.Context, id string) (removed bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.total -= c.items[i].Price
	c.items = append(c.items[:i], c.items[i+1:]...)
	if len(c.items) == 0 {
		c.total = 0
	}
	signedIn := c.user.ID != ""
	c.mu.Unlock()

	c.persist(ctx)
	if signedIn {
		c.mirror(false)
	}
	return true
}

// ClearCart empties the cart locally. The remote cart order is left as is.
func (c *Cart) ClearCart(ctx context.Context) {
	c.mu.Lock()
	c.items = nil
	c.total = 0
	c.mu.Unlock()
	c.persist(ctx)
}

// LoadCartFromRemote replaces the cart with the user's newest cart order,
// resolving each line against the live catalog. Lines whose course is gone are
// kept as stubs built from the order snapshot. found is false when the user has
// no cart order.
func (c *Cart) LoadCartFromRemote(ctx context.Context, userID string) (found bool, err error) {
	remote, err := c.svc.fetchRemote(ctx, userID)
	if err != nil {
		return false, err
	}
	if remote == nil {
		return false, nil
	}

	c.mu.Lock()
	c.items = nil
	c.total = 0
	for _, it := range remote.items {
		c.insertLocked(it)
	}
	c.mu.Unlock()

	c.persist(ctx)
	c.setRef(ctx, RefCurrentOrderID, remote.orderID)
	return true, nil
}

// Flush waits for in-flight remote mirroring.
func (c *Cart) Flush() {
	c.pending.Wait()
}

// RememberCheckout records the order and courses being paid for so the payment
// return can be resolved when the session carries no metadata.
func (c *Cart) RememberCheckout(ctx context.Context, orderID string, courseIDs []string) {
	c.setRef(ctx, RefPendingOrderID, orderID)
	raw, err := sonic.MarshalString(courseIDs)
	if err != nil {
		c.log.Warnw("encode purchased courses", "error", err)
		return
	}
	c.setRef(ctx, RefPurchasedCourseIDs, raw)
}

func (c *Cart) CheckoutRefs(ctx context.Context) PaymentRefs {
	var refs PaymentRefs
	refs.OrderID, _ = c.getRef(ctx, RefPendingOrderID)
	if raw, ok := c.getRef(ctx, RefPurchasedCourseIDs); ok {
		if err := sonic.UnmarshalString(raw, &refs.CourseIDs); err != nil {
			c.log.Warnw("decode purchased courses", "error", err)
		}
	}
	return refs
}

// CompleteCheckout clears the cart and every checkout ref after a completed payment.
func (c *Cart) CompleteCheckout(ctx context.Context) {
	c.Flush()
	c.ClearCart(ctx)
	for _, name := range []string{RefCurrentOrderID, RefPendingOrderID, RefPurchasedCourseIDs} {
		if err := c.svc.store.DeleteRef(ctx, c.sessionID, name); err != nil {
			c.log.Warnw("delete cart ref", "ref", name, "error", err)
		}
	}
}

// persist writes the state current at write time. Writes are serialized per
// cart, so the stored copy never falls behind memory.
func (c *Cart) persist(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.svc.store.SaveCart(ctx, c.sessionID, c.Snapshot()); err != nil {
		c.log.Warnw("persist cart locally", "error", err)
	}
}

func (c *Cart) setRef(ctx context.Context, name, value string) {
	if err := c.svc.store.SetRef(ctx, c.sessionID, name, value); err != nil {
		c.log.Warnw("store cart ref", "ref", name, "error", err)
	}
}

func (c *Cart) getRef(ctx context.Context, name string) (string, bool) {
	v, ok, err := c.svc.store.GetRef(ctx, c.sessionID, name)
	if err != nil {
		c.log.Warnw("read cart ref", "ref", name, "error", err)
		return "", false
	}
	return v, ok && v != ""
}

// mirror pushes the cart to its cart order in the background. Runs are
// serialized per cart and each writes the state current at run time, so the
// latest state always lands last.
func (c *Cart) mirror(create bool) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		c.mirrorMu.Lock()
		defer c.mirrorMu.Unlock()
		c.syncRemote(ctx, create)
	}()
}

func (c *Cart) syncRemote(ctx context.Context, create bool) {
	c.mu.Lock()
	state := c.snapshotLocked()
	user := c.user
	c.mu.Unlock()
	if user.ID == "" {
		return
	}
	items := orderItemsFromCart(state.Items)
	orders := c.svc.orders

	if create {
		id, err := orders.UpsertCartOrder(ctx, user.ID, user.Email, items, state.Total)
		if err != nil {
			c.log.Warnw("mirror cart to order failed", "user_id", user.ID, "error", err)
			return
		}
		c.setRef(ctx, RefCurrentOrderID, id)
		return
	}

	orderID, ok := c.getRef(ctx, RefCurrentOrderID)
	if !ok {
		return
	}
	err := orders.UpdateCartOrderItems(ctx, orderID, items, state.Total)
	switch {
	case err == nil:
	case utils.HasCode(err, utils.CodeOrderNotMutable), utils.HasCode(err, utils.CodeNotFound):
		c.log.Infow("cart order no longer mutable, dropping reference", "order_id", orderID)
		if derr := c.svc.store.DeleteRef(ctx, c.sessionID, RefCurrentOrderID); derr != nil {
			c.log.Warnw("delete cart ref", "ref", RefCurrentOrderID, "error", derr)
		}
	default:
		c.log.Warnw("mirror cart removal failed", "order_id", orderID, "error", err)
	}
}

// attachUser sets the owner the first time one is known.
func (c *Cart) attachUser(user CartUser) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user.ID == "" || c.user.ID == user.ID {
		return false
	}
	c.user = user
	return true
}

// restore replays the locally stored cart; without one it falls back to the
// user's remote cart order.
func (c *Cart) restore(ctx context.Context) {
	state, ok, err := c.svc.store.LoadCart(ctx, c.sessionID)
	if err != nil {
		c.log.Warnw("load local cart", "error", err)
	}
	if ok && len(state.Items) > 0 {
		c.mu.Lock()
		for _, it := range state.Items {
			c.insertLocked(it)
		}
		c.mu.Unlock()
		return
	}
	if user := c.User(); user.ID != "" {
		if _, err := c.LoadCartFromRemote(ctx, user.ID); err != nil {
			c.log.Warnw("load remote cart", "user_id", user.ID, "error", err)
		}
	}
}

type remoteCart struct {
	orderID string
	items   []CartItem
}

// CartService is the single owner of cart sessions.
type CartService struct {
	store   CartStore
	orders  *OrderService
	catalog *CatalogService
	log     *zap.SugaredLogger

	mu    sync.Mutex
	carts map[string]*Cart
	fetch singleflight.Group
	now   func() time.Time
}

func NewCartService(store CartStore, orders *OrderService, catalog *CatalogService, log *zap.SugaredLogger) *CartService {
	return &CartService{
		store:   store,
		orders:  orders,
		catalog: catalog,
		log:     log.With("service", "CartService"),
		carts:   map[string]*Cart{},
		now:     time.Now,
	}
}

// Open returns the cart for sessionID, hydrating it from the CartStore on
// first use. Anonymous carts that are still empty are not cached until their
// first item is added. When the user signs in on a cached cart it is either
// loaded from their cart order (empty cart) or mirrored to it.
func (s *CartService) Open(ctx context.Context, sessionID string, user CartUser) (*Cart, error) {
	if sessionID == "" {
		return nil, utils.ValidationErr("cart session is required")
	}
	if cart := s.lookup(sessionID); cart != nil {
		s.signIn(ctx, cart, user)
		return cart, nil
	}

	cart := &Cart{sessionID: sessionID, svc: s, log: s.log.With("cart", sessionID), user: user}
	cart.restore(ctx)
	if user.ID == "" && len(cart.Items()) == 0 {
		return cart, nil
	}
	kept := s.keep(cart)
	if kept != cart {
		s.signIn(ctx, kept, user)
	}
	return kept, nil
}

func (s *CartService) lookup(sessionID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[sessionID]
	if !ok {
		return nil
	}
	cart.lastUsed = s.now()
	return cart
}

// keep caches cart unless another cart already holds its session, in which
// case that one is returned.
func (s *CartService) keep(cart *Cart) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.carts[cart.sessionID]; ok {
		existing.lastUsed = s.now()
		return existing
	}
	cart.lastUsed = s.now()
	s.carts[cart.sessionID] = cart
	return cart
}

func (s *CartService) signIn(ctx context.Context, cart *Cart, user CartUser) {
	if !cart.attachUser(user) {
		return
	}
	if len(cart.Items()) == 0 {
		if _, err := cart.LoadCartFromRemote(ctx, user.ID); err != nil {
			cart.log.Warnw("load remote cart", "user_id", user.ID, "error", err)
		}
		return
	}
	cart.mirror(true)
}

// EvictIdle drops carts not opened within idle. Their state stays in the
// CartStore and is restored on the next Open.
func (s *CartService) EvictIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	var evicted []*Cart
	for id, cart := range s.carts {
		if cart.lastUsed.Before(cutoff) {
			delete(s.carts, id)
			evicted = append(evicted, cart)
		}
	}
	s.mu.Unlock()
	for _, cart := range evicted {
		cart.Flush()
	}
	return len(evicted)
}

// Forget drops the in-memory cart after its mirroring has settled.
func (s *CartService) Forget(sessionID string) {
	s.mu.Lock()
	cart, ok := s.carts[sessionID]
	delete(s.carts, sessionID)
	s.mu.Unlock()
	if ok {
		cart.Flush()
	}
}

// fetchRemote loads and resolves the user's cart order. Concurrent hydrations
// for the same user share one lookup.
func (s *CartService) fetchRemote(ctx context.Context, userID string) (*remoteCart, error) {
	v, err, _ := s.fetch.Do(userID, func() (interface{}, error) {
		order, err := s.orders.FindCartOrder(ctx, userID)
		if utils.HasCode(err, utils.CodeNotFound) {
			return (*remoteCart)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		out := &remoteCart{orderID: order.ID}
		for _, line := range order.Items {
			course, err := s.catalog.GetCourseByID(ctx, line.CourseID)
			if err != nil {
				s.log.Infow("cart line course unavailable, using snapshot", "course_id", line.CourseID, "error", err)
				out.items = append(out.items, CartItem{ID: line.CourseID, Title: line.Title, Price: line.Price})
				continue
			}
			out.items = append(out.items, CartItemFromCourse(course))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*remoteCart), nil
}
