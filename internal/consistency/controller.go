// Package consistency keeps the item tree in agreement with the data store
// and the legacy hierarchy. It reacts to store events, validates and
// dispatches reparent requests, and runs the consolidation pass at the
// end of imports and batches.
package consistency

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/pubsub"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

// ErrForeignResolver is returned by New when the resolver works on a
// different tree or store.
var ErrForeignResolver = errors.New("resolver is bound to a different tree or store")

// Notice is the payload published for tree changes and completed passes.
type Notice struct {
	Item      hierarchy.ItemID
	Parent    hierarchy.ItemID
	OldParent hierarchy.ItemID
	Report    PassReport
}

// Controller is the tree consistency controller.
type Controller struct {
	tree     *hierarchy.Tree
	store    *datastore.Store
	resolver *resolver.Resolver
	env      *plugin.Env

	settings Settings
	tracer   trace.Tracer
	events   pubsub.Publisher[Notice]

	batch         int
	pendingPass   bool
	inPass        bool
	syncingLegacy bool
	unresolved    []hierarchy.UnresolvedItem
	hints         map[datastore.ObjectID]hierarchy.ItemID
	last          PassReport

	stop []func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(c *Controller) {
		c.settings = s
	}
}

// WithTracer records spans for reparents, passes and loads.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

// WithPublisher forwards tree changes and pass reports to p.
func WithPublisher(p pubsub.Publisher[Notice]) Option {
	return func(c *Controller) {
		c.events = p
	}
}

// New attaches a controller to tree and store. The resolver must work on
// the same tree and store.
func New(tree *hierarchy.Tree, store *datastore.Store, res *resolver.Resolver, opts ...Option) (*Controller, error) {
	env := res.Env()
	if env.Tree != tree || env.Store != store {
		return nil, ErrForeignResolver
	}
	c := &Controller{
		tree:     tree,
		store:    store,
		resolver: res,
		env:      env,
		settings: DefaultSettings(),
		hints:    map[datastore.ObjectID]hierarchy.ItemID{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.stop = append(c.stop, store.Subscribe(c.onStoreEvent))
	if c.events != nil {
		c.stop = append(c.stop, tree.Observe(c.publishChange), tree.OnModified(c.publishModified))
	}
	return c, nil
}

// Close detaches the controller.
func (c *Controller) Close() {
	for _, stop := range c.stop {
		stop()
	}
	c.stop = nil
}

// Env returns the tree and store the controller keeps consistent.
func (c *Controller) Env() *plugin.Env {
	return c.env
}

// Resolver returns the resolver used for every decision.
func (c *Controller) Resolver() *resolver.Resolver {
	return c.resolver
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// SetSettings replaces the settings. Leaving bulk mode does not run the
// pending pass; call Flush.
func (c *Controller) SetSettings(s Settings) {
	c.settings = s
}

// LastReport returns the report of the most recent pass.
func (c *Controller) LastReport() PassReport {
	return c.last
}

// PassPending reports whether a pass was requested while deferred.
func (c *Controller) PassPending() bool {
	return c.pendingPass
}

// BeginBatch starts a batch. Object additions are no longer handled one
// by one and item-modified notifications are held. Calls nest.
func (c *Controller) BeginBatch() {
	c.batch++
	c.tree.SuspendNotifications()
}

// EndBatch ends one BeginBatch. The outermost end runs the consolidation
// pass, except in bulk mode where the pass waits for Flush.
func (c *Controller) EndBatch(ctx context.Context) (PassReport, error) {
	if c.batch == 0 {
		log.Warn(log.CatConsistency, "EndBatch without BeginBatch")
		return PassReport{}, nil
	}
	c.batch--
	defer c.tree.ResumeNotifications()
	if c.batch > 0 {
		return PassReport{}, nil
	}
	if c.settings.Mode == ModeBulk {
		c.pendingPass = true
		return PassReport{}, nil
	}
	return c.runPass(ctx)
}

// InBatch reports whether a batch is open.
func (c *Controller) InBatch() bool {
	return c.batch > 0
}

// Flush runs the consolidation pass now.
func (c *Controller) Flush(ctx context.Context) (PassReport, error) {
	return c.runPass(ctx)
}

// ConsolidationPass runs the consolidation pass now. Running it twice in
// a row returns an empty report the second time.
func (c *Controller) ConsolidationPass(ctx context.Context) (PassReport, error) {
	return c.runPass(ctx)
}

// AddUnresolved queues saved items to be placed by the next pass.
func (c *Controller) AddUnresolved(items ...hierarchy.UnresolvedItem) {
	c.unresolved = append(c.unresolved, items...)
}

// AddDataObject creates the item for obj now, as the store event would
// outside a batch. It reports false when the object is left out of the
// tree.
func (c *Controller) AddDataObject(ctx context.Context, obj datastore.ObjectID, parent hierarchy.ItemID) (hierarchy.ItemID, bool, error) {
	return c.addObject(ctx, obj, parent)
}

// deferred reports whether per-object handling is postponed to a pass.
func (c *Controller) deferred() bool {
	return c.batch > 0 || c.settings.Mode == ModeBulk || c.store.IsImporting() || c.store.IsBatchProcessing()
}

func (c *Controller) onStoreEvent(ev datastore.Event) {
	ctx := context.Background()
	switch ev.Kind {
	case datastore.EventObjectAdded:
		if c.deferred() {
			if ev.ParentHint != hierarchy.InvalidItemID {
				c.hints[ev.Object] = ev.ParentHint
			}
			return
		}
		if _, _, err := c.addObject(ctx, ev.Object, ev.ParentHint); err != nil {
			log.ErrorErr(log.CatConsistency, "adding item for data object failed", err, "object", ev.Object)
		}

	case datastore.EventObjectAboutToBeRemoved:
		delete(c.hints, ev.Object)
		c.removeObjectItem(ev.Object)

	case datastore.EventObjectModified:
		c.refreshObjectItem(ev.Object)

	case datastore.EventDisplayModified:
		if ev.Object == "" {
			return
		}
		if id, ok := c.tree.ItemByDataObject(string(ev.Object)); ok {
			c.tree.NotifyModified(id)
		}

	case datastore.EventImportEnded, datastore.EventBatchEnded, datastore.EventSceneRestored:
		c.requestPass(ctx, ev.Kind)

	case datastore.EventSceneClosed:
		c.tree.Clear()
		c.unresolved = nil
		clear(c.hints)
		c.pendingPass = false
		log.Info(log.CatConsistency, "scene closed, tree cleared")

	case datastore.EventLegacyAdded, datastore.EventLegacyRemoved, datastore.EventLegacyReparented:
		if c.syncingLegacy || c.deferred() {
			return
		}
		if n := c.healLegacy(); n > 0 {
			log.Debug(log.CatLegacy, "shadows synced", "event", ev.Kind, "node", ev.Legacy, "changes", n)
		}
	}
}

func (c *Controller) requestPass(ctx context.Context, cause datastore.EventKind) {
	if c.batch > 0 || c.inPass || c.settings.Mode == ModeBulk {
		c.pendingPass = true
		log.Debug(log.CatConsistency, "pass deferred", "cause", cause)
		return
	}
	if _, err := c.runPass(ctx); err != nil {
		log.ErrorErr(log.CatConsistency, "consolidation pass failed", err, "cause", cause)
	}
}

func (c *Controller) addObject(ctx context.Context, id datastore.ObjectID, hint hierarchy.ItemID) (item hierarchy.ItemID, added bool, err error) {
	obj, ok := c.store.Object(id)
	if !ok {
		return hierarchy.InvalidItemID, false, &datastore.NotFoundError{What: "data object", ID: string(id)}
	}
	if existing, ok := c.tree.ItemByDataObject(string(id)); ok {
		return existing, false, nil
	}
	if !c.settings.AutoCreate || obj.HideFromEditors || obj.Attributes[hierarchy.AttrExcludeFromTree] != "" {
		return hierarchy.InvalidItemID, false, nil
	}

	parent := c.placementFor(obj, hint)
	d := c.resolver.AddPluginFor(id, parent)
	if !d.Claimed() {
		log.Debug(log.CatConsistency, "no plugin claims data object", "object", id, "kind", obj.Kind)
		return hierarchy.InvalidItemID, false, nil
	}

	_, span := tracing.Start(ctx, c.tracer, tracing.SpanAddDataObject,
		attribute.String(tracing.AttrObjectID, string(id)),
		attribute.String(tracing.AttrPlugin, d.Plugin.Name()))
	defer func() { tracing.End(span, err) }()

	snap := c.tree.Snapshot()
	objects := []datastore.DataObject{obj}
	objects = append(objects, c.captureObjects(parent)...)
	item, err = d.Plugin.AddDataObject(c.env, id, parent)
	if err != nil {
		c.tree.Restore(snap)
		c.restoreObjects(objects)
		return hierarchy.InvalidItemID, false, &hierarchy.OperationError{Op: "add data object", Target: parent,
			Plugin: d.Plugin.Name(), Err: fmt.Errorf("%w: %w", hierarchy.ErrPluginOperationFailed, err)}
	}
	c.assignBranch(item)
	log.Debug(log.CatConsistency, "item added", "item", item, "object", id, "plugin", d.Plugin.Name())
	return item, true, nil
}

// placementFor picks where a new item goes: the hint when valid, the
// shadow of the object's legacy parent, or the root.
func (c *Controller) placementFor(obj datastore.DataObject, hint hierarchy.ItemID) hierarchy.ItemID {
	if hint != hierarchy.InvalidItemID && c.tree.Has(hint) {
		return hint
	}
	if n, ok := c.store.LegacyNodeForObject(obj.ID); ok && n.ParentID != "" {
		if shadow, ok := c.shadowOf(n.ParentID); ok {
			return shadow
		}
	}
	return c.tree.Root()
}

func (c *Controller) removeObjectItem(obj datastore.ObjectID) {
	id, ok := c.tree.ItemByDataObject(string(obj))
	if !ok {
		return
	}
	if err := c.tree.RemoveItem(id, c.settings.AutoDeleteChildren); err != nil {
		log.ErrorErr(log.CatConsistency, "removing item for data object failed", err, "item", id, "object", obj)
		return
	}
	log.Debug(log.CatConsistency, "item removed with its data object", "item", id, "object", obj,
		"cascade", c.settings.AutoDeleteChildren)
}

func (c *Controller) refreshObjectItem(obj datastore.ObjectID) {
	id, ok := c.tree.ItemByDataObject(string(obj))
	if !ok {
		return
	}
	c.tree.NotifyModified(id)
	owner, err := c.resolver.StoredOwner(id)
	if err != nil {
		return
	}
	if r, ok := owner.(plugin.Refresher); ok {
		if err := r.Refresh(c.env, id); err != nil {
			log.ErrorErr(log.CatConsistency, "refreshing item failed", err, "item", id, "plugin", owner.Name())
		}
		c.assignBranch(id)
	}
}

// assignBranch resolves the owner of id and everything below it.
func (c *Controller) assignBranch(id hierarchy.ItemID) int {
	changed := 0
	for _, item := range append([]hierarchy.ItemID{id}, c.tree.Descendants(id)...) {
		ok, err := c.resolver.AssignOwner(item)
		if err != nil {
			log.ErrorErr(log.CatConsistency, "assigning owner failed", err, "item", item)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed
}

func (c *Controller) publishChange(ch hierarchy.Change) {
	n := Notice{Item: ch.Item, Parent: ch.Parent, OldParent: ch.OldParent}
	switch ch.Kind {
	case hierarchy.ChangeAdded:
		c.events.Publish(pubsub.ItemAddedEvent, n)
	case hierarchy.ChangeRemoved:
		c.events.Publish(pubsub.ItemRemovedEvent, n)
	case hierarchy.ChangeReparented:
		c.events.Publish(pubsub.ItemReparentedEvent, n)
	}
}

func (c *Controller) publishModified(id hierarchy.ItemID) {
	c.events.Publish(pubsub.ItemModifiedEvent, Notice{Item: id})
}
