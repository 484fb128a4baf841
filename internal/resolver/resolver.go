// Package resolver decides which plugin owns an item, which plugin adds a
// data object and which plugin handles a reparent, by polling every
// registered plugin for its confidence.
//
// The highest confidence wins. A tie above zero is put to the
// Disambiguator; without one, or when it declines, the plugin registered
// first wins and the ambiguity is logged. When nobody claims anything the
// default plugin wins.
package resolver

import (
	"fmt"
	"math"
	"strings"

	"github.com/zjrosen/subjecthierarchy/internal/cachemanager"
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// Disambiguator picks one of several plugins tied at the same confidence.
// It returns false to decline.
type Disambiguator interface {
	Choose(prompt string, candidates []plugin.Plugin) (plugin.Plugin, bool)
}

// DisambiguatorFunc adapts a function to Disambiguator.
type DisambiguatorFunc func(prompt string, candidates []plugin.Plugin) (plugin.Plugin, bool)

func (f DisambiguatorFunc) Choose(prompt string, candidates []plugin.Plugin) (plugin.Plugin, bool) {
	return f(prompt, candidates)
}

// Candidate is one plugin's answer to a query.
type Candidate struct {
	Plugin     plugin.Plugin
	Confidence float64
}

// Decision is the outcome of one resolution.
type Decision struct {
	Plugin     plugin.Plugin
	Confidence float64
	// Tied lists the plugins that shared the top confidence when more than
	// one did.
	Tied []plugin.Plugin
	// Chosen is true when the Disambiguator settled a tie.
	Chosen bool
}

// Claimed reports whether a plugin claimed the query with confidence > 0.
func (d Decision) Claimed() bool {
	return d.Confidence > 0
}

// Ambiguous reports whether several plugins tied at the top.
func (d Decision) Ambiguous() bool {
	return len(d.Tied) > 1
}

// Stats counts resolver activity. The cache counters stay zero unless the
// ownership cache is on.
type Stats struct {
	Queries     uint64
	Ambiguities uint64
	CacheHits   uint64
	CacheMisses uint64
}

// Resolver answers ownership, add and reparent queries against one tree.
type Resolver struct {
	registry      *Registry
	env           *plugin.Env
	disambiguator Disambiguator
	cacheEnabled  bool
	tieWarnings   bool
	owners        *cachemanager.Memo[hierarchy.ItemID, string]
	stats         Stats
	stop          []func()
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDisambiguator sets the collaborator consulted on ties.
func WithDisambiguator(d Disambiguator) Option {
	return func(r *Resolver) {
		r.disambiguator = d
	}
}

// WithOwnershipCache turns the per-item owner cache on or off.
func WithOwnershipCache(enabled bool) Option {
	return func(r *Resolver) {
		r.cacheEnabled = enabled
	}
}

// WithTieWarnings chooses whether a tie settled by registration order is
// logged as a warning (the default) or at debug level.
func WithTieWarnings(on bool) Option {
	return func(r *Resolver) {
		r.tieWarnings = on
	}
}

// New creates a resolver over registry for the tree and store in env.
func New(registry *Registry, env *plugin.Env, opts ...Option) *Resolver {
	r := &Resolver{
		registry:    registry,
		env:         env,
		tieWarnings: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	var store cachemanager.Store[hierarchy.ItemID, string]
	if r.cacheEnabled {
		store = cachemanager.NewMemory[hierarchy.ItemID, string]("owners", cachemanager.DefaultTTL)
	}
	r.owners = cachemanager.NewMemo(store)
	if r.cacheEnabled {
		r.stop = append(r.stop,
			env.Tree.Observe(r.onTreeChange),
			env.Store.Subscribe(r.onStoreEvent),
		)
	}
	return r
}

// Close detaches the resolver from the tree and store.
func (r *Resolver) Close() {
	for _, stop := range r.stop {
		stop()
	}
	r.stop = nil
}

// Registry returns the plugin registry.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Env returns the tree and store the resolver works on.
func (r *Resolver) Env() *plugin.Env {
	return r.env
}

// SetDisambiguator replaces the tie-break collaborator (nil for none).
func (r *Resolver) SetDisambiguator(d Disambiguator) {
	r.disambiguator = d
}

// Stats returns activity counters.
func (r *Resolver) Stats() Stats {
	s := r.stats
	if r.owners.Enabled() {
		cs := r.owners.Stats()
		s.CacheHits, s.CacheMisses = cs.Hits, cs.Misses
	}
	return s
}

// OwnerFor returns the plugin owning id. It always returns a plugin for a
// live non-root item.
func (r *Resolver) OwnerFor(id hierarchy.ItemID) (plugin.Plugin, error) {
	if err := r.checkOwnable(id); err != nil {
		return nil, err
	}
	name, err := r.owners.Lookup(id, func() (string, error) {
		d, err := r.OwnershipDecision(id)
		if err != nil {
			return "", err
		}
		return d.Plugin.Name(), nil
	})
	if err != nil {
		return nil, err
	}
	p, ok := r.registry.ByName(name)
	if !ok {
		r.owners.Forget(id)
		return r.registry.Default(), nil
	}
	return p, nil
}

// OwnershipDecision resolves ownership of id without the cache.
func (r *Resolver) OwnershipDecision(id hierarchy.ItemID) (Decision, error) {
	if err := r.checkOwnable(id); err != nil {
		return Decision{}, err
	}
	return r.decide(fmt.Sprintf("Which plugin should own item %q?", r.itemName(id)),
		r.poll(func(p plugin.Plugin) float64 { return p.CanOwnItem(r.env, id) })), nil
}

// AddPluginFor picks the plugin that should create the item for obj.
// The decision is unclaimed when no plugin can add it.
func (r *Resolver) AddPluginFor(obj datastore.ObjectID, parent hierarchy.ItemID) Decision {
	name := string(obj)
	if o, ok := r.env.Store.Object(obj); ok {
		name = o.Name
	}
	return r.decide(fmt.Sprintf("Which plugin should add %q?", name),
		r.poll(func(p plugin.Plugin) float64 { return p.CanAddDataObject(r.env, obj, parent) }))
}

// ReparentPluginFor picks the plugin with special handling for moving id
// under newParent. The decision is unclaimed when a plain move will do.
func (r *Resolver) ReparentPluginFor(id, newParent hierarchy.ItemID) Decision {
	return r.decide(fmt.Sprintf("Which plugin should handle moving %q under %q?", r.itemName(id), r.itemName(newParent)),
		r.poll(func(p plugin.Plugin) float64 { return p.CanReparent(r.env, id, newParent) }))
}

// OwnershipTable returns every registered plugin's ownership confidence
// for id in registration order.
func (r *Resolver) OwnershipTable(id hierarchy.ItemID) []Candidate {
	return r.poll(func(p plugin.Plugin) float64 { return p.CanOwnItem(r.env, id) })
}

// AddTable returns every registered plugin's add confidence for obj.
func (r *Resolver) AddTable(obj datastore.ObjectID, parent hierarchy.ItemID) []Candidate {
	return r.poll(func(p plugin.Plugin) float64 { return p.CanAddDataObject(r.env, obj, parent) })
}

// ReparentTable returns every registered plugin's reparent confidence.
func (r *Resolver) ReparentTable(id, newParent hierarchy.ItemID) []Candidate {
	return r.poll(func(p plugin.Plugin) float64 { return p.CanReparent(r.env, id, newParent) })
}

// AssignOwner stores the resolved owner on id unless the owner was pinned
// manually and is still registered. It reports whether the stored owner
// changed.
func (r *Resolver) AssignOwner(id hierarchy.ItemID) (bool, error) {
	it, err := r.env.Tree.Item(id)
	if err != nil {
		return false, err
	}
	if id == r.env.Tree.Root() {
		return false, nil
	}
	if !it.OwnerAutoSearch {
		if _, ok := r.registry.ByName(it.Owner); ok {
			return false, nil
		}
		log.Warn(log.CatResolve, "pinned owner no longer registered, searching again", "item", id, "owner", it.Owner)
	}
	p, err := r.OwnerFor(id)
	if err != nil {
		return false, err
	}
	if it.Owner == p.Name() && it.OwnerAutoSearch {
		return false, nil
	}
	if err := r.env.Tree.SetOwner(id, p.Name(), true); err != nil {
		return false, err
	}
	log.Debug(log.CatResolve, "owner assigned", "item", id, "owner", p.Name(), "previous", it.Owner)
	return true, nil
}

// SetOwnerManually pins the owner of id to a registered plugin. Later
// resolution passes leave it in place.
func (r *Resolver) SetOwnerManually(id hierarchy.ItemID, name string) error {
	if _, ok := r.registry.ByName(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if err := r.checkOwnable(id); err != nil {
		return err
	}
	return r.env.Tree.SetOwner(id, name, false)
}

// StoredOwner returns the plugin named on the item when it is registered,
// otherwise the resolved owner.
func (r *Resolver) StoredOwner(id hierarchy.ItemID) (plugin.Plugin, error) {
	it, err := r.env.Tree.Item(id)
	if err != nil {
		return nil, err
	}
	if p, ok := r.registry.ByName(it.Owner); ok && it.Owner != "" {
		return p, nil
	}
	return r.OwnerFor(id)
}

func (r *Resolver) checkOwnable(id hierarchy.ItemID) error {
	if !r.env.Tree.Has(id) {
		return &hierarchy.OperationError{Op: "resolve owner", Item: id, Err: hierarchy.ErrInvalidItem}
	}
	if id == r.env.Tree.Root() {
		return &hierarchy.OperationError{Op: "resolve owner", Item: id,
			Err: fmt.Errorf("%w: the scene item has no owner", hierarchy.ErrInvalidItem)}
	}
	return nil
}

func (r *Resolver) poll(confidence func(plugin.Plugin) float64) []Candidate {
	r.stats.Queries++
	plugins := r.registry.Plugins()
	out := make([]Candidate, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, Candidate{Plugin: p, Confidence: clamp(confidence(p))})
	}
	return out
}

func (r *Resolver) decide(prompt string, candidates []Candidate) Decision {
	best := 0.0
	for _, c := range candidates {
		best = math.Max(best, c.Confidence)
	}
	if best <= 0 {
		return Decision{Plugin: r.registry.Default()}
	}

	var tied []plugin.Plugin
	for _, c := range candidates {
		if c.Confidence == best {
			tied = append(tied, c.Plugin)
		}
	}
	if len(tied) == 1 {
		return Decision{Plugin: tied[0], Confidence: best}
	}

	r.stats.Ambiguities++
	d := Decision{Plugin: tied[0], Confidence: best, Tied: tied}
	if r.disambiguator != nil {
		if choice, ok := r.disambiguator.Choose(prompt, tied); ok && choice != nil && contains(tied, choice) {
			d.Plugin, _ = r.registry.ByName(choice.Name())
			d.Chosen = true
			return d
		}
	}
	logTie := log.Debug
	if r.tieWarnings {
		logTie = log.Warn
	}
	logTie(log.CatResolve, "ambiguous resolution, using first registered plugin",
		"error", hierarchy.ErrAmbiguousOwnership,
		"prompt", prompt,
		"candidates", names(tied),
		"confidence", best,
		"chosen", d.Plugin.Name())
	return d
}

func (r *Resolver) itemName(id hierarchy.ItemID) string {
	it, err := r.env.Tree.Item(id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return it.Name
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func contains(ps []plugin.Plugin, p plugin.Plugin) bool {
	for _, x := range ps {
		if x.Name() == p.Name() {
			return true
		}
	}
	return false
}

func names(ps []plugin.Plugin) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return strings.Join(out, ",")
}
