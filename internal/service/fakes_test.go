package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/mail"
	"shop-service/internal/models"
	"shop-service/internal/payment"
	"shop-service/internal/realtime"
	"shop-service/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memDB is an in-memory stand-in for the document store. WithTransaction
// snapshots every collection and restores it when fn fails.
type memDB struct {
	mu       sync.Mutex
	carts    map[primitive.ObjectID]models.Cart
	orders   map[primitive.ObjectID]models.Order
	products map[primitive.ObjectID]models.Product
	users    map[primitive.ObjectID]models.User
	coupons  map[string]models.Coupon
}

func newMemDB() *memDB {
	return &memDB{
		carts:    map[primitive.ObjectID]models.Cart{},
		orders:   map[primitive.ObjectID]models.Order{},
		products: map[primitive.ObjectID]models.Product{},
		users:    map[primitive.ObjectID]models.User{},
		coupons:  map[string]models.Coupon{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db.mu.Lock()
	carts, orders, products := copyMap(db.carts), copyMap(db.orders), copyMap(db.products)
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.carts, db.orders, db.products = carts, orders, products
		db.mu.Unlock()
		return err
	}
	return nil
}

func cloneCart(c models.Cart) models.Cart {
	c.CartItems = append([]models.CartItem(nil), c.CartItems...)
	if c.PriceAfterDiscount != nil {
		v := *c.PriceAfterDiscount
		c.PriceAfterDiscount = &v
	}
	return c
}

func notFound(id primitive.ObjectID) error {
	return apperr.NotFound("No document found for this id: %s", id.Hex())
}

type memCarts struct{ db *memDB }

func (m memCarts) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.carts {
		if c.User == userID {
			out := cloneCart(c)
			return &out, nil
		}
	}
	return nil, apperr.NotFound("There is no cart for this user id: %s", userID.Hex())
}

func (m memCarts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Cart, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.carts[id]
	if !ok {
		return nil, notFound(id)
	}
	out := cloneCart(c)
	return &out, nil
}

func (m memCarts) Create(_ context.Context, cart *models.Cart) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.carts {
		if c.User == cart.User {
			return apperr.Conflict("Duplicate value for a unique field")
		}
	}
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	cart.Stamp(time.Now())
	cart.Version = 1
	m.db.carts[cart.ID] = cloneCart(*cart)
	return nil
}

func (m memCarts) SaveVersioned(_ context.Context, cart *models.Cart) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.carts[cart.ID]
	if !ok || stored.Version != cart.Version {
		return apperr.Conflict("Cart was modified concurrently, please retry")
	}
	cart.Version++
	cart.Stamp(time.Now())
	m.db.carts[cart.ID] = cloneCart(*cart)
	return nil
}

func (m memCarts) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.carts[id]; !ok {
		return notFound(id)
	}
	delete(m.db.carts, id)
	return nil
}

func (m memCarts) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, c := range m.db.carts {
		if c.User == userID {
			delete(m.db.carts, id)
		}
	}
	return nil
}

type memProducts struct{ db *memDB }

func (m memProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok {
		return nil, notFound(id)
	}
	return &p, nil
}

func (m memProducts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := m.db.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memProducts) FindByBarcode(_ context.Context, barcode string) (*models.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.products {
		if p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("Product not found with this barcode")
}

func (m memProducts) DecrementStock(_ context.Context, items []models.CartItem) ([]models.OrderItemData, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	qty := map[primitive.ObjectID]int{}
	var ids []primitive.ObjectID
	for _, it := range items {
		if _, seen := qty[it.Product]; !seen {
			ids = append(ids, it.Product)
		}
		qty[it.Product] += it.Quantity
	}
	var out []models.OrderItemData
	missed := false
	for _, id := range ids {
		p, ok := m.db.products[id]
		if !ok || p.Quantity < qty[id] {
			missed = true
			continue
		}
		prev := p.Quantity
		p.Quantity -= qty[id]
		p.Sold += qty[id]
		m.db.products[id] = p
		out = append(out, models.OrderItemData{
			ProductID: id.Hex(), Title: p.Title, Quantity: qty[id],
			PreviousQuantity: prev, NewQuantity: p.Quantity,
		})
	}
	if missed {
		return nil, apperr.Validation("Insufficient stock for one or more products")
	}
	return out, nil
}

func (m memProducts) AdjustStock(_ context.Context, id primitive.ObjectID, delta int, countAsSale bool) (*models.Product, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok {
		return nil, notFound(id)
	}
	if p.Quantity+delta < 0 {
		return nil, apperr.Validation("Insufficient stock. Current: %d, Requested: %d", p.Quantity, -delta)
	}
	before := p
	p.Quantity += delta
	if countAsSale {
		p.Sold -= delta
	}
	m.db.products[id] = p
	return &before, nil
}

func (m memProducts) SetRatings(_ context.Context, id primitive.ObjectID, average float64, count int) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.products[id]
	if !ok {
		return notFound(id)
	}
	p.RatingsQuantity = count
	p.RatingsAverage = average
	m.db.products[id] = p
	return nil
}

type memOrders struct {
	db        *memDB
	insertErr error
}

func (m memOrders) Insert(_ context.Context, o *models.Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.Stamp(time.Now())
	m.db.orders[o.ID] = *o
	return nil
}

func (m memOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o, ok := m.db.orders[id]
	if !ok {
		return nil, notFound(id)
	}
	return &o, nil
}

func (m memOrders) Replace(_ context.Context, o *models.Order) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.orders[o.ID]; !ok {
		return notFound(o.ID)
	}
	m.db.orders[o.ID] = *o
	return nil
}

// memUsers runs the same save hooks as the real users collection.
type memUsers struct{ db *memDB }

func (m memUsers) save(u *models.User) error {
	if err := store.NormalizeUser(u); err != nil {
		return err
	}
	if err := store.HashPassword(u); err != nil {
		return err
	}
	for id, other := range m.db.users {
		if id != u.ID && other.Email == u.Email {
			return apperr.Conflict("Duplicate value for a unique field")
		}
	}
	u.Stamp(time.Now())
	stored := *u
	stored.Wishlist = append([]primitive.ObjectID{}, u.Wishlist...)
	stored.Addresses = append([]models.Address{}, u.Addresses...)
	m.db.users[u.ID] = stored
	return nil
}

func (m memUsers) Insert(_ context.Context, u *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	return m.save(u)
}

func (m memUsers) Replace(_ context.Context, u *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[u.ID]; !ok {
		return notFound(u.ID)
	}
	return m.save(u)
}

func (m memUsers) get(id primitive.ObjectID) (*models.User, error) {
	u, ok := m.db.users[id]
	if !ok {
		return nil, notFound(id)
	}
	u.Wishlist = append([]primitive.ObjectID{}, u.Wishlist...)
	u.Addresses = append([]models.Address{}, u.Addresses...)
	return &u, nil
}

func (m memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.get(id)
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, u := range m.db.users {
		if u.Email == email {
			return m.get(id)
		}
	}
	return nil, apperr.NotFound("No document found")
}

func (m memUsers) FindByResetCode(_ context.Context, hash string, now time.Time) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, u := range m.db.users {
		if u.PasswordResetCode == hash && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now) {
			return m.get(id)
		}
	}
	return nil, apperr.NotFound("No document found")
}

func (m memUsers) update(id primitive.ObjectID, fn func(u *models.User)) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, notFound(id)
	}
	fn(&u)
	m.db.users[id] = u
	return m.get(id)
}

func (m memUsers) AddToWishlist(_ context.Context, userID, productID primitive.ObjectID) (*models.User, error) {
	return m.update(userID, func(u *models.User) {
		for _, id := range u.Wishlist {
			if id == productID {
				return
			}
		}
		u.Wishlist = append(append([]primitive.ObjectID{}, u.Wishlist...), productID)
	})
}

func (m memUsers) RemoveFromWishlist(_ context.Context, userID, productID primitive.ObjectID) (*models.User, error) {
	return m.update(userID, func(u *models.User) {
		kept := []primitive.ObjectID{}
		for _, id := range u.Wishlist {
			if id != productID {
				kept = append(kept, id)
			}
		}
		u.Wishlist = kept
	})
}

func (m memUsers) AddAddress(_ context.Context, userID primitive.ObjectID, addr models.Address) (*models.User, error) {
	return m.update(userID, func(u *models.User) {
		u.Addresses = append(append([]models.Address{}, u.Addresses...), addr)
	})
}

func (m memUsers) RemoveAddress(_ context.Context, userID, addressID primitive.ObjectID) (*models.User, error) {
	return m.update(userID, func(u *models.User) {
		kept := []models.Address{}
		for _, a := range u.Addresses {
			if a.ID != addressID {
				kept = append(kept, a)
			}
		}
		u.Addresses = kept
	})
}

type memCoupons struct{ db *memDB }

func (m memCoupons) FindActive(_ context.Context, name string, now time.Time) (*models.Coupon, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.coupons[name]
	if !ok || !c.Expire.After(now) {
		return nil, nil
	}
	return &c, nil
}

// passLocker runs fn directly and records the keys it was asked for.
type passLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *passLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type memIdempotency struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{vals: map[string]string{}}
}

func (m *memIdempotency) ReserveIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vals[key]; ok {
		return false, nil
	}
	m.vals[key] = ""
	return true, nil
}

func (m *memIdempotency) SetIdempotencyKey(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value.(string)
	return nil
}

func (m *memIdempotency) GetIdempotencyKey(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *memIdempotency) DeleteIdempotencyKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	placed []*models.OrderPlacedEvent
	status []*models.OrderStatusEvent
	err    error
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderStatus(_ context.Context, e *models.OrderStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, e)
	return p.err
}

type fakeGateway struct {
	validSignature bool
	amounts        []int64
	notes          []map[string]string
	sessions       map[string]*payment.Session
}

func (g *fakeGateway) CreateSession(_ context.Context, amountMinor int64, receipt string, notes map[string]string) (*payment.Session, error) {
	g.amounts = append(g.amounts, amountMinor)
	g.notes = append(g.notes, notes)
	if g.sessions == nil {
		g.sessions = map[string]*payment.Session{}
	}
	session := &payment.Session{
		ID:       fmt.Sprintf("order_%d", len(g.sessions)+1),
		Amount:   amountMinor,
		Currency: "INR",
		Receipt:  receipt,
	}
	g.sessions[session.ID] = session
	return session, nil
}

func (g *fakeGateway) FetchSession(_ context.Context, providerOrderID string) (*payment.Session, error) {
	session, ok := g.sessions[providerOrderID]
	if !ok {
		return nil, apperr.External(nil, "Failed to fetch payment session")
	}
	cp := *session
	return &cp, nil
}

func (g *fakeGateway) VerifySignature(_, _, _ string) bool {
	return g.validSignature
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type memLedger struct {
	logs []models.InventoryLog
	err  error
}

func (l *memLedger) Append(_ context.Context, logs ...*models.InventoryLog) error {
	if l.err != nil {
		return l.err
	}
	for _, entry := range logs {
		l.logs = append(l.logs, *entry)
	}
	return nil
}

func (l *memLedger) ListByProduct(_ context.Context, productID string) ([]models.InventoryLog, error) {
	out := []models.InventoryLog{}
	for _, entry := range l.logs {
		if entry.ProductID == productID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memReviews struct {
	items map[primitive.ObjectID]models.Review
}

func newMemReviews() *memReviews {
	return &memReviews{items: map[primitive.ObjectID]models.Review{}}
}

func (m *memReviews) Insert(_ context.Context, r *models.Review) error {
	r.ID = primitive.NewObjectID()
	r.Stamp(time.Now())
	m.items[r.ID] = *r
	return nil
}

func (m *memReviews) FindByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, notFound(id)
	}
	return &r, nil
}

func (m *memReviews) Replace(_ context.Context, r *models.Review) error {
	if _, ok := m.items[r.ID]; !ok {
		return notFound(r.ID)
	}
	m.items[r.ID] = *r
	return nil
}

func (m *memReviews) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.items[id]; !ok {
		return notFound(id)
	}
	delete(m.items, id)
	return nil
}

func (m *memReviews) ExistsFor(_ context.Context, userID, productID primitive.ObjectID) (bool, error) {
	for _, r := range m.items {
		if r.User == userID && r.Product == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReviews) ForProduct(_ context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	out := []models.Review{}
	for _, r := range m.items {
		if r.Product == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReviews) Stats(ctx context.Context, productID primitive.ObjectID) (float64, int, error) {
	rs, _ := m.ForProduct(ctx, productID)
	if len(rs) == 0 {
		return 0, 0, nil
	}
	sum := 0.0
	for _, r := range rs {
		sum += r.Ratings
	}
	return sum / float64(len(rs)), len(rs), nil
}

type memChats struct {
	convs    map[primitive.ObjectID]models.Conversation
	messages []models.Message
}

func newMemChats() *memChats {
	return &memChats{convs: map[primitive.ObjectID]models.Conversation{}}
}

func (m *memChats) ListConversations(_ context.Context, participant *primitive.ObjectID) ([]models.Conversation, error) {
	out := []models.Conversation{}
	for _, c := range m.convs {
		if participant == nil || c.HasParticipant(*participant) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChats) FindConversation(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	c, ok := m.convs[id]
	if !ok {
		return nil, notFound(id)
	}
	return &c, nil
}

func (m *memChats) FindBetween(_ context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	for _, c := range m.convs {
		if c.HasParticipant(a) && c.HasParticipant(b) {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memChats) CreateConversation(_ context.Context, c *models.Conversation) error {
	c.ID = primitive.NewObjectID()
	c.Stamp(time.Now())
	m.convs[c.ID] = *c
	return nil
}

func (m *memChats) ListMessages(_ context.Context, conversationID primitive.ObjectID) ([]models.Message, error) {
	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memChats) AddMessage(_ context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	msg.Stamp(time.Now())
	m.messages = append(m.messages, *msg)
	c := m.convs[msg.ConversationID]
	id := msg.ID
	c.LastMessage = &id
	m.convs[msg.ConversationID] = c
	return nil
}

type recordingNotifier struct {
	sent map[string][]realtime.Event
}

func (n *recordingNotifier) SendToUser(userID string, event realtime.Event) int {
	if n.sent == nil {
		n.sent = map[string][]realtime.Event{}
	}
	n.sent[userID] = append(n.sent[userID], event)
	return 1
}

type memCms struct {
	pages map[string]models.CmsPage
}

func (m *memCms) FindBySlug(_ context.Context, slug string) (*models.CmsPage, error) {
	p, ok := m.pages[slug]
	if !ok {
		return nil, apperr.NotFound("Page not found")
	}
	return &p, nil
}

func (m *memCms) Save(_ context.Context, p *models.CmsPage) error {
	if err := store.LowerPageSlug(p); err != nil {
		return err
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Stamp(time.Now())
	m.pages[p.Slug] = *p
	return nil
}

var errBoom = errors.New("boom")

// seedProduct stores a product with the given price and stock.
func seedProduct(db *memDB, title string, price float64, qty int) models.Product {
	p := models.Product{Title: title, Price: price, Quantity: qty}
	p.ID = primitive.NewObjectID()
	db.products[p.ID] = p
	return p
}

func seedUser(db *memDB, email, role string) *models.User {
	u := models.User{Name: "Test User", Email: email, Role: role, Active: true}
	u.ID = primitive.NewObjectID()
	u.Wishlist = []primitive.ObjectID{}
	u.Addresses = []models.Address{}
	db.users[u.ID] = u
	return &u
}
