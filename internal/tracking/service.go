// Package tracking implements the product/event ledger: product registry and
// lifecycle, append-only tracking events, the secondary indexes derived from
// them, paginated queries and the global aggregate counters.
//
// Every public mutation runs as one kv.Update transaction, so the record, the
// indexes and the counters either all commit or none do.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chainlogistics.org/internal/kv"
)

// Verifier proves that a call genuinely originates from the claimed identity.
// The ledger consults it before every mutation that names a caller; how the
// proof works (tokens, signatures, sessions) is the host's concern.
type Verifier interface {
	Verify(ctx context.Context, identity string) error
}

// Notifier receives fire-and-forget domain notices. Implementations must not
// block; delivery is never required for correctness.
type Notifier interface {
	Publish(Notice)
}

// Service defines the ledger operations.
type Service interface {
	RegisterProduct(ctx context.Context, owner string, cfg ProductConfig) (Product, error)
	RegisterProducts(ctx context.Context, owner string, cfgs []ProductConfig) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	GetProductEventIDs(ctx context.Context, id string) ([]uint64, error)
	DeactivateProduct(ctx context.Context, caller, id, reason string) error
	ReactivateProduct(ctx context.Context, caller, id string) error
	TransferProduct(ctx context.Context, caller, id, newOwner string) error
	AddAuthorizedActor(ctx context.Context, caller, id, actor string) error
	RemoveAuthorizedActor(ctx context.Context, caller, id, actor string) error
	IsAuthorized(ctx context.Context, id, actor string) (bool, error)
	AddTrackingEvent(ctx context.Context, actor, id string, in EventInput) (uint64, error)
	AddTrackingEvents(ctx context.Context, actor, id string, ins []EventInput) ([]uint64, error)
	GetEvent(ctx context.Context, eventID uint64) (TrackingEvent, error)
	ProductEvents(ctx context.Context, id string, offset, limit uint64) (EventPage, error)
	EventsByType(ctx context.Context, id, eventType string, offset, limit uint64) (EventPage, error)
	RecentEvents(ctx context.Context, id string, offset, limit uint64) (EventPage, error)
	EventsByTimeRange(ctx context.Context, id string, start, end int64, offset, limit uint64) (EventPage, error)
	FilteredEvents(ctx context.Context, id string, f EventFilter, offset, limit uint64) (EventPage, error)
	Stats(ctx context.Context) (Stats, error)
}

// Ledger implements Service on top of a kv.Store.
type Ledger struct {
	store    kv.Store
	verifier Verifier
	notifier Notifier
	now      func() time.Time
}

var _ Service = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithVerifier installs the identity-proof predicate. Without one the ledger
// trusts the host to have authenticated the caller already.
func WithVerifier(v Verifier) Option {
	return func(l *Ledger) { l.verifier = v }
}

// WithNotifier installs the notification sink.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Ledger over the given store.
func New(store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) verify(ctx context.Context, identity string) error {
	if l.verifier == nil {
		return nil
	}
	if err := l.verifier.Verify(ctx, identity); err != nil {
		return ErrUnauthorized
	}
	return nil
}

func (l *Ledger) publish(notices ...Notice) {
	if l.notifier == nil {
		return
	}
	for _, n := range notices {
		l.notifier.Publish(n)
	}
}

// RegisterProduct creates a product in the Active state, grants the owner an
// explicit authorization entry and bumps both aggregate counters.
func (l *Ledger) RegisterProduct(ctx context.Context, owner string, cfg ProductConfig) (Product, error) {
	products, err := l.registerAll(ctx, owner, []ProductConfig{cfg})
	if err != nil {
		return Product{}, err
	}
	return products[0], nil
}

// RegisterProducts registers a batch atomically: if any item fails validation
// or the duplicate check, nothing is persisted.
func (l *Ledger) RegisterProducts(ctx context.Context, owner string, cfgs []ProductConfig) ([]Product, error) {
	return l.registerAll(ctx, owner, cfgs)
}

func (l *Ledger) registerAll(ctx context.Context, owner string, cfgs []ProductConfig) ([]Product, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	for _, cfg := range cfgs {
		if err := validateConfig(cfg); err != nil {
			return nil, err
		}
	}
	seen := make(map[string]struct{}, len(cfgs))
	for _, cfg := range cfgs {
		if _, dup := seen[cfg.ID]; dup {
			return nil, ErrProductExists
		}
		seen[cfg.ID] = struct{}{}
	}

	products := make([]Product, 0, len(cfgs))
	err := l.store.Update(ctx, func(tx kv.Tx) error {
		products = products[:0]
		for _, cfg := range cfgs {
			exists, err := tx.Has(productKey(cfg.ID))
			if err != nil {
				return err
			}
			if exists {
				return ErrProductExists
			}
		}
		if err := l.verify(ctx, owner); err != nil {
			return err
		}
		ts := l.now().Unix()
		for _, cfg := range cfgs {
			p := Product{
				ID:             cfg.ID,
				Name:           cfg.Name,
				Description:    cfg.Description,
				OriginLocation: cfg.OriginLocation,
				Category:       cfg.Category,
				Tags:           cfg.Tags,
				Certifications: cfg.Certifications,
				MediaHashes:    cfg.MediaHashes,
				Custom:         cfg.Custom,
				Owner:          owner,
				CreatedAt:      ts,
				Active:         true,
			}
			if err := putJSON(tx, productKey(p.ID), p); err != nil {
				return err
			}
			if err := putJSON(tx, eventIDsKey(p.ID), []uint64{}); err != nil {
				return err
			}
			if err := tx.Set(authKey(p.ID, owner), []byte("1")); err != nil {
				return err
			}
			products = append(products, p)
		}
		if err := addCounter(tx, totalProductsKey, uint64(len(cfgs))); err != nil {
			return err
		}
		return addCounter(tx, activeProductsKey, uint64(len(cfgs)))
	})
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		l.publish(Notice{
			Kind:      NoticeProductRegistered,
			ProductID: p.ID,
			Actor:     owner,
			Timestamp: p.CreatedAt,
		})
	}
	return products, nil
}

// GetProduct returns a product by id.
func (l *Ledger) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := l.store.View(ctx, func(tx kv.Tx) error {
		var err error
		p, err = readProduct(tx, id)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProductEventIDs returns the full forward index for a product.
func (l *Ledger) GetProductEventIDs(ctx context.Context, id string) ([]uint64, error) {
	var ids []uint64
	err := l.store.View(ctx, func(tx kv.Tx) error {
		if _, err := readProduct(tx, id); err != nil {
			return err
		}
		var err error
		ids, err = readEventIDs(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeactivateProduct flips an active product to Deactivated, recording who
// did it and why. The active-product counter is decremented, floored at zero.
func (l *Ledger) DeactivateProduct(ctx context.Context, caller, id, reason string) error {
	var ts int64
	err := l.store.Update(ctx, func(tx kv.Tx) error {
		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if err := l.verify(ctx, caller); err != nil {
			return err
		}
		if caller != p.Owner {
			return ErrUnauthorized
		}
		if !p.Active {
			return ErrProductDeactivated
		}
		if reason == "" {
			return ErrReasonRequired
		}
		ts = l.now().Unix()
		p.Active = false
		p.Deactivation = &DeactivationRecord{
			Reason:        reason,
			DeactivatedAt: ts,
			DeactivatedBy: caller,
		}
		if err := putJSON(tx, productKey(id), p); err != nil {
			return err
		}
		return subCounterFloored(tx, activeProductsKey, 1)
	})
	if err != nil {
		return err
	}
	l.publish(Notice{Kind: NoticeProductDeactivated, ProductID: id, Actor: caller, Timestamp: ts})
	return nil
}

// ReactivateProduct flips a deactivated product back to Active and discards
// the deactivation record.
func (l *Ledger) ReactivateProduct(ctx context.Context, caller, id string) error {
	var ts int64
	err := l.store.Update(ctx, func(tx kv.Tx) error {
		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if err := l.verify(ctx, caller); err != nil {
			return err
		}
		if caller != p.Owner {
			return ErrUnauthorized
		}
		if p.Active {
			return ErrProductActive
		}
		ts = l.now().Unix()
		p.Active = true
		p.Deactivation = nil
		if err := putJSON(tx, productKey(id), p); err != nil {
			return err
		}
		return addCounter(tx, activeProductsKey, 1)
	})
	if err != nil {
		return err
	}
	l.publish(Notice{Kind: NoticeProductReactivated, ProductID: id, Actor: caller, Timestamp: ts})
	return nil
}

// TransferProduct moves ownership to newOwner. Both parties must prove their
// identity: the caller as current owner and newOwner as consenting receiver,
// so nobody can be handed a product they did not agree to take. Third-party
// authorization grants survive the transfer.
func (l *Ledger) TransferProduct(ctx context.Context, caller, id, newOwner string) error {
	var ts int64
	err := l.store.Update(ctx, func(tx kv.Tx) error {
		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if err := l.verify(ctx, caller); err != nil {
			return err
		}
		if caller != p.Owner {
			return ErrUnauthorized
		}
		if err := l.verify(ctx, newOwner); err != nil {
			return err
		}
		ts = l.now().Unix()
		if err := tx.Delete(authKey(id, p.Owner)); err != nil {
			return err
		}
		p.Owner = newOwner
		if err := putJSON(tx, productKey(id), p); err != nil {
			return err
		}
		return tx.Set(authKey(id, newOwner), []byte("1"))
	})
	if err != nil {
		return err
	}
	l.publish(Notice{Kind: NoticeProductTransferred, ProductID: id, Actor: caller, Timestamp: ts})
	return nil
}

// AddAuthorizedActor grants actor the right to append events.
func (l *Ledger) AddAuthorizedActor(ctx context.Context, caller, id, actor string) error {
	return l.store.Update(ctx, func(tx kv.Tx) error {
		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if err := l.verify(ctx, caller); err != nil {
			return err
		}
		if caller != p.Owner {
			return ErrUnauthorized
		}
		has, err := tx.Has(authKey(id, actor))
		if err != nil {
			return err
		}
		if has {
			return ErrAlreadyAuthorized
		}
		return tx.Set(authKey(id, actor), []byte("1"))
	})
}

// RemoveAuthorizedActor revokes a previously granted actor. The owner's own
// entry cannot be revoked this way; it moves with transfers instead.
func (l *Ledger) RemoveAuthorizedActor(ctx context.Context, caller, id, actor string) error {
	return l.store.Update(ctx, func(tx kv.Tx) error {
		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if err := l.verify(ctx, caller); err != nil {
			return err
		}
		if caller != p.Owner {
			return ErrUnauthorized
		}
		if actor == p.Owner {
			return ErrCannotRemoveOwner
		}
		has, err := tx.Has(authKey(id, actor))
		if err != nil {
			return err
		}
		if !has {
			return ErrNotAuthorized
		}
		return tx.Delete(authKey(id, actor))
	})
}

// IsAuthorized reports whether actor may append events to the product. The
// owner is always authorized, with or without an explicit entry. Grants are
// independent of the lifecycle state.
func (l *Ledger) IsAuthorized(ctx context.Context, id, actor string) (bool, error) {
	var ok bool
	err := l.store.View(ctx, func(tx kv.Tx) error {
		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if actor == p.Owner {
			ok = true
			return nil
		}
		ok, err = tx.Has(authKey(id, actor))
		return err
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// AddTrackingEvent appends one event and returns its global identifier.
func (l *Ledger) AddTrackingEvent(ctx context.Context, actor, id string, in EventInput) (uint64, error) {
	ids, err := l.appendAll(ctx, actor, id, []EventInput{in})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddTrackingEvents appends a batch atomically: one bad item aborts the
// whole batch, matching the registration contract.
func (l *Ledger) AddTrackingEvents(ctx context.Context, actor, id string, ins []EventInput) ([]uint64, error) {
	return l.appendAll(ctx, actor, id, ins)
}

func (l *Ledger) appendAll(ctx context.Context, actor, id string, ins []EventInput) ([]uint64, error) {
	if len(ins) == 0 {
		return nil, nil
	}
	var (
		eventIDs []uint64
		notices  []Notice
	)
	err := l.store.Update(ctx, func(tx kv.Tx) error {
		eventIDs = eventIDs[:0]
		notices = notices[:0]

		p, err := readProduct(tx, id)
		if err != nil {
			return err
		}
		if err := l.verify(ctx, actor); err != nil {
			return err
		}
		if !p.Active {
			return ErrProductDeactivated
		}
		if actor != p.Owner {
			granted, err := tx.Has(authKey(id, actor))
			if err != nil {
				return err
			}
			if !granted {
				return ErrUnauthorized
			}
		}
		for _, in := range ins {
			if err := validateEventInput(in); err != nil {
				return err
			}
		}

		forward, err := readEventIDs(tx, id)
		if err != nil {
			return err
		}
		ts := l.now().Unix()
		for _, in := range ins {
			eventID, err := nextEventID(tx)
			if err != nil {
				return err
			}
			ev := TrackingEvent{
				EventID:   eventID,
				ProductID: id,
				Actor:     actor,
				Timestamp: ts,
				EventType: in.EventType,
				Location:  in.Location,
				DataHash:  in.DataHash,
				Note:      in.Note,
				Metadata:  in.Metadata,
			}
			if err := putJSON(tx, eventKey(eventID), ev); err != nil {
				return err
			}
			forward = append(forward, eventID)
			if err := indexEventByType(tx, id, in.EventType, eventID); err != nil {
				return err
			}
			eventIDs = append(eventIDs, eventID)
			notices = append(notices, Notice{
				Kind:      NoticeTrackingEvent,
				ProductID: id,
				Actor:     actor,
				EventID:   eventID,
				EventType: in.EventType,
				Timestamp: ts,
			})
		}
		return putJSON(tx, eventIDsKey(id), forward)
	})
	if err != nil {
		return nil, err
	}
	l.publish(notices...)
	return eventIDs, nil
}

// GetEvent returns one event by its global identifier.
func (l *Ledger) GetEvent(ctx context.Context, eventID uint64) (TrackingEvent, error) {
	var ev TrackingEvent
	err := l.store.View(ctx, func(tx kv.Tx) error {
		found, err := getJSON(tx, eventKey(eventID), &ev)
		if err != nil {
			return err
		}
		if !found {
			return ErrEventNotFound
		}
		return nil
	})
	if err != nil {
		return TrackingEvent{}, err
	}
	return ev, nil
}

// Stats returns the aggregate counters. They are maintained incrementally by
// the mutation paths and never recomputed by scanning.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := l.store.View(ctx, func(tx kv.Tx) error {
		total, err := readCounter(tx, totalProductsKey)
		if err != nil {
			return err
		}
		active, err := readCounter(tx, activeProductsKey)
		if err != nil {
			return err
		}
		st = Stats{TotalProducts: total, ActiveProducts: active}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// --- storage helpers ---

func putJSON(tx kv.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(key, data)
}

func getJSON(tx kv.Tx, key string, v any) (bool, error) {
	data, found, err := tx.Get(key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func readProduct(tx kv.Tx, id string) (Product, error) {
	var p Product
	found, err := getJSON(tx, productKey(id), &p)
	if err != nil {
		return Product{}, err
	}
	if !found {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func readEventIDs(tx kv.Tx, id string) ([]uint64, error) {
	var ids []uint64
	if _, err := getJSON(tx, eventIDsKey(id), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func readCounter(tx kv.Tx, key string) (uint64, error) {
	var n uint64
	if _, err := getJSON(tx, key, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func addCounter(tx kv.Tx, key string, delta uint64) error {
	n, err := readCounter(tx, key)
	if err != nil {
		return err
	}
	return putJSON(tx, key, n+delta)
}

func subCounterFloored(tx kv.Tx, key string, delta uint64) error {
	n, err := readCounter(tx, key)
	if err != nil {
		return err
	}
	if delta > n {
		delta = n
	}
	return putJSON(tx, key, n-delta)
}

// nextEventID increments the single global event sequence. Identifiers start
// at 1 and are never reset or reused; the increment commits together with the
// event record because both ride the same transaction.
func nextEventID(tx kv.Tx) (uint64, error) {
	seq, err := readCounter(tx, eventSeqKey)
	if err != nil {
		return 0, err
	}
	seq++
	if err := putJSON(tx, eventSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// indexEventByType bumps the per-(product,type) count and stores the event id
// at the new count position of the dense 1-based positional index.
func indexEventByType(tx kv.Tx, productID, eventType string, eventID uint64) error {
	count, err := readCounter(tx, typeCountKey(productID, eventType))
	if err != nil {
		return err
	}
	count++
	if err := putJSON(tx, typeCountKey(productID, eventType), count); err != nil {
		return err
	}
	return putJSON(tx, typeIndexKey(productID, eventType, count), eventID)
}
