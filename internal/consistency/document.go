package consistency

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

// Document is a saved scene: the store contents and the items as they
// were saved.
type Document struct {
	Contents datastore.Contents
	Items    []hierarchy.UnresolvedItem
}

// LoadDocument replaces the scene and the tree with doc and runs the
// consolidation pass once, so stale owner bindings are resolved against
// the plugins registered now. In bulk mode the pass runs as a flush.
func (c *Controller) LoadDocument(ctx context.Context, doc Document) (report PassReport, err error) {
	ctx, span := tracing.Start(ctx, c.tracer, tracing.SpanLoadDocument,
		attribute.Int("document.objects", len(doc.Contents.Objects)),
		attribute.Int("document.items", len(doc.Items)))
	defer func() { tracing.End(span, err) }()

	c.BeginBatch()
	c.tree.Clear()
	c.unresolved = nil
	c.AddUnresolved(doc.Items...)
	c.store.Restore(doc.Contents)
	report, err = c.EndBatch(ctx)
	if err != nil {
		return report, err
	}
	if c.settings.Mode == ModeBulk && c.batch == 0 {
		report, err = c.Flush(ctx)
	}
	log.Info(log.CatConsistency, "document loaded", "items", c.tree.Len()-1, "objects", len(doc.Contents.Objects))
	return report, err
}

// SaveDocument captures the scene and the tree in the form LoadDocument
// reads back.
func (c *Controller) SaveDocument() Document {
	doc := Document{Contents: c.store.Contents()}
	root := c.tree.Root()
	c.tree.Walk(func(it hierarchy.Item) bool {
		if it.ID == root {
			return true
		}
		parent := ""
		if it.Parent != root {
			parent = itemKey(it.Parent)
		}
		doc.Items = append(doc.Items, hierarchy.UnresolvedItem{
			TempID:          itemKey(it.ID),
			ParentTempID:    parent,
			Name:            it.Name,
			Level:           it.Level,
			Owner:           it.Owner,
			OwnerAutoSearch: it.OwnerAutoSearch,
			DataObject:      it.DataObject,
			Attributes:      it.Attributes,
			UIDs:            it.UIDs,
			Expanded:        it.Expanded,
		})
		return true
	})
	return doc
}

func itemKey(id hierarchy.ItemID) string {
	return "item-" + strconv.FormatUint(uint64(id), 10)
}
