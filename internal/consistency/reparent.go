package consistency

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

// ReparentResult describes how a reparent request was carried out.
type ReparentResult struct {
	// Plugin is the plugin that handled the request, the default plugin
	// for a plain move.
	Plugin string
	// Delegated is true when a plugin claimed the request.
	Delegated bool
	Outcome   plugin.Outcome
}

// Reparent moves id under newParent. A plugin claiming the move carries it
// out, possibly as an equivalent effect instead of a move; otherwise the
// item is moved structurally and its legacy node follows. Invalid
// requests are rejected without mutation; a failed plugin call or legacy
// update is rolled back and reported as ErrPluginOperationFailed.
func (c *Controller) Reparent(ctx context.Context, id, newParent hierarchy.ItemID) (res ReparentResult, err error) {
	_, span := tracing.Start(ctx, c.tracer, tracing.SpanReparent,
		attribute.Int64(tracing.AttrItemID, int64(id)),
		attribute.Int64(tracing.AttrTargetID, int64(newParent)))
	defer func() { tracing.End(span, err) }()

	if err := c.ValidateReparent(id, newParent); err != nil {
		return ReparentResult{}, err
	}

	snap := c.tree.Snapshot()
	legacy := c.captureLegacy(id)
	objects := c.captureObjects(append(c.tree.Descendants(id), id, newParent)...)

	d := c.resolver.ReparentPluginFor(id, newParent)
	res = ReparentResult{Plugin: d.Plugin.Name(), Delegated: d.Claimed(), Outcome: plugin.OutcomeMoved}
	span.SetAttributes(attribute.String(tracing.AttrPlugin, res.Plugin), attribute.Bool(tracing.AttrDelegated, res.Delegated))

	if res.Delegated {
		span.AddEvent(tracing.EventDelegated)
		res.Outcome, err = d.Plugin.Reparent(c.env, id, newParent)
		if err == nil && res.Outcome == plugin.OutcomeMoved {
			err = c.syncLegacyPointer(id)
		}
	} else {
		if err := c.tree.SetParent(id, newParent); err != nil {
			return ReparentResult{}, err
		}
		err = c.syncLegacyPointer(id)
	}
	if err != nil {
		c.rollback(span, snap, legacy, objects)
		return ReparentResult{}, &hierarchy.OperationError{Op: "reparent", Item: id, Target: newParent,
			Plugin: res.Plugin, Err: fmt.Errorf("%w: %w", hierarchy.ErrPluginOperationFailed, err)}
	}

	span.SetAttributes(attribute.String(tracing.AttrOutcome, res.Outcome.String()))
	c.assignBranch(id)
	log.Debug(log.CatConsistency, "reparented", "item", id, "parent", newParent,
		"plugin", res.Plugin, "delegated", res.Delegated, "outcome", res.Outcome)
	return res, nil
}

// ValidateReparent checks a request without performing it.
func (c *Controller) ValidateReparent(id, newParent hierarchy.ItemID) error {
	reject := func(err error) error {
		return &hierarchy.OperationError{Op: "reparent", Item: id, Target: newParent, Err: err}
	}
	switch {
	case !c.tree.Has(id) || !c.tree.Has(newParent):
		return reject(hierarchy.ErrInvalidItem)
	case id == c.tree.Root():
		return reject(fmt.Errorf("%w: the scene item cannot be moved", hierarchy.ErrInvalidItem))
	case id == newParent || c.tree.IsAncestor(id, newParent):
		return reject(hierarchy.ErrCyclicReparent)
	}
	if p, _ := c.tree.Parent(id); c.insideVirtualBranch(p) {
		return reject(fmt.Errorf("%w: item belongs to a virtual branch", hierarchy.ErrVirtualBranchViolation))
	}
	if c.insideVirtualBranch(newParent) {
		return reject(fmt.Errorf("%w: target is part of a virtual branch", hierarchy.ErrVirtualBranchViolation))
	}
	return nil
}

// insideVirtualBranch reports whether id or one of its ancestors hosts a
// virtual branch.
func (c *Controller) insideVirtualBranch(id hierarchy.ItemID) bool {
	for cur := id; cur != hierarchy.InvalidItemID; {
		it, err := c.tree.Item(cur)
		if err != nil {
			return false
		}
		if it.IsVirtualBranch() {
			return true
		}
		cur = it.Parent
	}
	return false
}

func (c *Controller) rollback(span trace.Span, snap hierarchy.Snapshot, legacy legacyPointer, objects []datastore.DataObject) {
	c.tree.Restore(snap)
	c.restoreLegacy(legacy)
	c.restoreObjects(objects)
	span.AddEvent(tracing.EventRolledBack)
	log.Warn(log.CatConsistency, "reparent rolled back")
}

// captureObjects copies the data objects of items, for restoreObjects.
func (c *Controller) captureObjects(items ...hierarchy.ItemID) []datastore.DataObject {
	var out []datastore.DataObject
	for _, item := range items {
		it, err := c.tree.Item(item)
		if err != nil || it.DataObject == "" {
			continue
		}
		if obj, ok := c.store.Object(plugin.DataObjectRef(it)); ok {
			out = append(out, obj)
		}
	}
	return out
}

func (c *Controller) restoreObjects(objects []datastore.DataObject) {
	for _, obj := range objects {
		if err := c.store.ResetObject(obj); err != nil {
			log.ErrorErr(log.CatConsistency, "restoring data object failed", err, "object", obj.ID)
		}
	}
}
