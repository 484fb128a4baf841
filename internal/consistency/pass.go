package consistency

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/pubsub"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

// maxPassRounds bounds follow-up passes requested while a pass runs.
const maxPassRounds = 3

// PassReport counts what a consolidation pass changed.
type PassReport struct {
	Resolved      int
	Merged        int
	Added         int
	ShadowsHealed int
	Removed       int
	OwnersChanged int
}

// Empty reports whether the pass changed nothing.
func (r PassReport) Empty() bool {
	return r == PassReport{}
}

// Total returns the number of changes.
func (r PassReport) Total() int {
	return r.Resolved + r.Merged + r.Added + r.ShadowsHealed + r.Removed + r.OwnersChanged
}

// Add returns the sum of two reports.
func (r PassReport) Add(o PassReport) PassReport {
	return PassReport{
		Resolved:      r.Resolved + o.Resolved,
		Merged:        r.Merged + o.Merged,
		Added:         r.Added + o.Added,
		ShadowsHealed: r.ShadowsHealed + o.ShadowsHealed,
		Removed:       r.Removed + o.Removed,
		OwnersChanged: r.OwnersChanged + o.OwnersChanged,
	}
}

func (c *Controller) runPass(ctx context.Context) (total PassReport, err error) {
	if c.inPass {
		c.pendingPass = true
		return PassReport{}, nil
	}
	ctx, span := tracing.Start(ctx, c.tracer, tracing.SpanPass)
	defer func() {
		span.SetAttributes(
			attribute.Int(tracing.AttrResolved, total.Resolved),
			attribute.Int(tracing.AttrMerged, total.Merged),
			attribute.Int(tracing.AttrAdded, total.Added),
			attribute.Int(tracing.AttrHealed, total.ShadowsHealed),
			attribute.Int(tracing.AttrRemoved, total.Removed),
			attribute.Int(tracing.AttrOwners, total.OwnersChanged),
		)
		tracing.End(span, err)
	}()

	c.tree.SuspendNotifications()
	defer c.tree.ResumeNotifications()

	for round := 0; ; round++ {
		c.inPass = true
		c.pendingPass = false
		r, err := c.consolidate(ctx)
		c.inPass = false
		total = total.Add(r)
		if err != nil {
			return total, err
		}
		if !c.pendingPass {
			break
		}
		if round+1 == maxPassRounds {
			log.Warn(log.CatConsistency, "pass kept requesting follow-ups, stopping", "rounds", maxPassRounds)
			c.pendingPass = false
			break
		}
	}

	c.last = total
	log.Info(log.CatConsistency, "consolidation pass done",
		"resolved", total.Resolved, "merged", total.Merged, "added", total.Added,
		"healed", total.ShadowsHealed, "removed", total.Removed, "owners", total.OwnersChanged)
	if c.events != nil {
		c.events.Publish(pubsub.PassCompletedEvent, Notice{Item: c.tree.Root(), Report: total})
	}
	return total, nil
}

func (c *Controller) consolidate(ctx context.Context) (PassReport, error) {
	var r PassReport

	if len(c.unresolved) > 0 {
		items := c.unresolved
		c.unresolved = nil
		placed, err := c.tree.ResolveUnresolved(items)
		if err != nil {
			return r, fmt.Errorf("resolving saved items: %w", err)
		}
		r.Resolved = len(placed)
	}

	r.Merged = c.mergeDuplicateContainers()

	for _, obj := range c.store.Objects() {
		hint := c.hints[obj.ID]
		delete(c.hints, obj.ID)
		if _, ok := c.tree.ItemByDataObject(string(obj.ID)); ok {
			continue
		}
		if _, added, err := c.addObject(ctx, obj.ID, hint); err != nil {
			log.ErrorErr(log.CatConsistency, "adding missing item failed", err, "object", obj.ID)
		} else if added {
			r.Added++
		}
	}

	r.ShadowsHealed = c.healLegacy()
	r.Removed = c.removeOrphans()

	var ids []hierarchy.ItemID
	c.tree.Walk(func(it hierarchy.Item) bool {
		if it.ID != c.tree.Root() {
			ids = append(ids, it.ID)
		}
		return true
	})
	for _, id := range ids {
		changed, err := c.resolver.AssignOwner(id)
		if err != nil {
			log.ErrorErr(log.CatConsistency, "assigning owner failed", err, "item", id)
			continue
		}
		if changed {
			r.OwnersChanged++
		}
	}
	return r, nil
}

// mergeDuplicateContainers folds top-level containers with the same level,
// name and identifiers into the one created first.
func (c *Controller) mergeDuplicateContainers() int {
	groups := map[string][]hierarchy.ItemID{}
	var keys []string
	for _, id := range c.tree.Children(c.tree.Root()) {
		it, err := c.tree.Item(id)
		if err != nil || it.DataObject != "" || it.Level == "" || it.Attributes[hierarchy.AttrLegacyNode] != "" {
			continue
		}
		key := containerKey(it)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], id)
	}

	merged := 0
	for _, key := range keys {
		ids := groups[key]
		if len(ids) < 2 {
			continue
		}
		keep := slices.Min(ids)
		for _, id := range ids {
			if id == keep {
				continue
			}
			for _, child := range c.tree.Children(id) {
				if err := c.tree.SetParent(child, keep); err != nil {
					log.ErrorErr(log.CatConsistency, "moving child of duplicate failed", err, "item", child)
				}
			}
			if err := c.tree.RemoveItem(id, false); err != nil {
				log.ErrorErr(log.CatConsistency, "removing duplicate failed", err, "item", id)
				continue
			}
			log.Debug(log.CatConsistency, "duplicate container merged", "item", id, "into", keep)
			merged++
		}
	}
	return merged
}

func containerKey(it hierarchy.Item) string {
	var b strings.Builder
	b.WriteString(it.Level)
	b.WriteByte(0)
	b.WriteString(it.Name)
	for _, k := range slices.Sorted(maps.Keys(it.UIDs)) {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(it.UIDs[k])
	}
	return b.String()
}

// removeOrphans removes empty structural items until none are left.
func (c *Controller) removeOrphans() int {
	removed := 0
	for {
		var orphans []hierarchy.ItemID
		c.tree.Walk(func(it hierarchy.Item) bool {
			if c.isOrphan(it) {
				orphans = append(orphans, it.ID)
			}
			return true
		})
		if len(orphans) == 0 {
			return removed
		}
		for _, id := range orphans {
			if err := c.tree.RemoveItem(id, false); err != nil {
				log.ErrorErr(log.CatConsistency, "removing orphan failed", err, "item", id)
				return removed
			}
			removed++
		}
	}
}

func (c *Controller) isOrphan(it hierarchy.Item) bool {
	if it.ID == c.tree.Root() || !it.IsStructural() || len(it.Children) > 0 || it.IsVirtualBranch() {
		return false
	}
	if ln := it.Attributes[hierarchy.AttrLegacyNode]; ln != "" {
		if _, ok := c.store.LegacyNode(ln); ok {
			return false
		}
	}
	return !c.insideVirtualBranch(it.Parent)
}
