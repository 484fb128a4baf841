package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/flags"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/persist"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
	"github.com/zjrosen/subjecthierarchy/internal/pubsub"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
	"github.com/zjrosen/subjecthierarchy/internal/ui/pluginpicker"
)

// session is an opened scene document with the engine wired around it.
type session struct {
	db     *persist.DB
	ctl    *consistency.Controller
	res    *resolver.Resolver
	env    *plugin.Env
	loaded bool                 // a saved document existed
	doc    consistency.Document // as saved, before resolution
	report consistency.PassReport
}

type sessionOption func(*sessionConfig)

type sessionConfig struct {
	publisher pubsub.Publisher[consistency.Notice]
}

func withPublisher(p pubsub.Publisher[consistency.Notice]) sessionOption {
	return func(c *sessionConfig) { c.publisher = p }
}

// openSession opens the database, builds the engine from the config and
// loads the saved document. out is where the interactive picker draws.
func (a *app) openSession(ctx context.Context, out io.Writer, opts ...sessionOption) (*session, error) {
	var sc sessionConfig
	for _, opt := range opts {
		opt(&sc)
	}

	db, err := persist.Open(a.cfg.Database, persist.WithTracer(a.tracing.Tracer()))
	if err != nil {
		return nil, err
	}
	s, err := a.newEngine(db, out, sc)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	doc, found, err := db.Load(ctx)
	if err != nil {
		s.close()
		return nil, err
	}
	if found {
		s.doc = doc
		s.report, err = s.ctl.LoadDocument(ctx, doc)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("loading document: %w", err)
		}
		s.loaded = true
	}
	return s, nil
}

func (a *app) newEngine(db *persist.DB, out io.Writer, sc sessionConfig) (*session, error) {
	settings, err := a.cfg.Settings()
	if err != nil {
		return nil, err
	}
	reg, err := plugins.NewRegistry(a.cfg.PluginOptions(), a.cfg.Resolver.PluginOrder)
	if err != nil {
		return nil, err
	}

	tree := hierarchy.New()
	store := datastore.New()
	env := &plugin.Env{Tree: tree, Store: store}

	resOpts := flags.New(a.cfg.Flags).ResolverOptions()
	if a.cfg.Resolver.Interactive {
		resOpts = append(resOpts, resolver.WithDisambiguator(pluginpicker.NewDisambiguator(a.in, out)))
	}
	res := resolver.New(reg, env, resOpts...)

	ctlOpts := []consistency.Option{
		consistency.WithSettings(settings),
		consistency.WithTracer(a.tracing.Tracer()),
	}
	if sc.publisher != nil {
		ctlOpts = append(ctlOpts, consistency.WithPublisher(sc.publisher))
	}
	ctl, err := consistency.New(tree, store, res, ctlOpts...)
	if err != nil {
		res.Close()
		return nil, err
	}
	return &session{db: db, ctl: ctl, res: res, env: ctl.Env()}, nil
}

// save flushes a pending bulk-mode pass and writes the document.
func (s *session) save(ctx context.Context) error {
	if s.ctl.PassPending() {
		if _, err := s.ctl.Flush(ctx); err != nil {
			return err
		}
	}
	if err := s.db.Save(ctx, s.ctl.SaveDocument()); err != nil {
		return err
	}
	log.Debug(log.CatDB, "document saved", "path", s.db.Path())
	return nil
}

// release detaches the engine, leaving the database open.
func (s *session) release() {
	s.ctl.Close()
	s.res.Close()
}

func (s *session) close() {
	s.release()
	if err := s.db.Close(); err != nil {
		log.ErrorErr(log.CatDB, "closing database failed", err)
	}
}

// errNoSuchItem is wrapped with the reference that matched nothing.
var errNoSuchItem = errors.New("no such item")

// item finds an item by numeric ID, slash separated path or data object
// ID, in that order.
func (s *session) item(ref string) (hierarchy.ItemID, error) {
	tree := s.env.Tree
	if n, err := strconv.ParseUint(ref, 10, 64); err == nil && tree.Has(hierarchy.ItemID(n)) {
		return hierarchy.ItemID(n), nil
	}

	path := strings.Trim(ref, "/")
	var found []hierarchy.ItemID
	tree.Walk(func(it hierarchy.Item) bool {
		if it.ID != tree.Root() && tree.Path(it.ID) == path {
			found = append(found, it.ID)
		}
		return true
	})
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
	default:
		return hierarchy.InvalidItemID, fmt.Errorf("%q matches %d items, use an item ID", ref, len(found))
	}

	if id, ok := tree.ItemByDataObject(ref); ok {
		return id, nil
	}
	return hierarchy.InvalidItemID, fmt.Errorf("%w: %q (%w)", errNoSuchItem, ref, hierarchy.ErrInvalidItem)
}

// parseOnOff accepts on/off and the usual boolean spellings.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("want on or off, got %q", s)
	}
	return b, nil
}
