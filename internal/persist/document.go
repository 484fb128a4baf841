package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

// Save replaces the stored document with doc in one transaction.
func (db *DB) Save(ctx context.Context, doc consistency.Document) (err error) {
	ctx, span := tracing.Start(ctx, db.tracer, tracing.SpanSaveDocument,
		attribute.String(tracing.AttrDocument, db.path),
		attribute.Int("document.items", len(doc.Items)),
		attribute.Int("document.objects", len(doc.Contents.Objects)))
	defer func() { tracing.End(span, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"item_attributes", "item_uids", "items", "object_attributes", "data_objects", "displays", "legacy_nodes", "documents"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, u := range doc.Items {
		if err = insertItem(ctx, tx, toItemModel(u, i), u); err != nil {
			return err
		}
	}
	for _, d := range doc.Contents.Displays {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO displays (id, color, visible, modified) VALUES (?, ?, ?, ?)`,
			string(d.ID), d.Color, d.Visible, int64(d.Modified)); err != nil {
			return fmt.Errorf("failed to insert display %s: %w", d.ID, err)
		}
	}
	for i, o := range doc.Contents.Objects {
		if err = insertObject(ctx, tx, toObjectModel(o, i), o.Attributes); err != nil {
			return err
		}
	}
	for i, n := range doc.Contents.Legacy {
		m := toLegacyModel(n, i)
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO legacy_nodes (id, position, name, parent_id, object_id) VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.Position, m.Name, nullArg(m.ParentID), nullArg(m.ObjectID)); err != nil {
			return fmt.Errorf("failed to insert legacy node %s: %w", n.ID, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, saved_at, item_count, object_count) VALUES (1, ?, ?, ?)`,
		time.Now().Unix(), len(doc.Items), len(doc.Contents.Objects)); err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	log.Info(log.CatDB, "document saved", "path", db.path, "items", len(doc.Items), "objects", len(doc.Contents.Objects))
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, m itemModel, u hierarchy.UnresolvedItem) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items (key, parent_key, position, name, level, owner, owner_auto_search, data_object, expanded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Key, nullArg(m.ParentKey), m.Position, m.Name, m.Level, m.Owner, m.OwnerAutoSearch, nullArg(m.DataObject), m.Expanded); err != nil {
		return fmt.Errorf("failed to insert item %s: %w", m.Key, err)
	}
	if err := insertPairs(ctx, tx, "item_attributes", "item_key", m.Key, u.Attributes); err != nil {
		return err
	}
	return insertPairs(ctx, tx, "item_uids", "item_key", m.Key, u.UIDs)
}

func insertObject(ctx context.Context, tx *sql.Tx, m objectModel, attrs map[string]string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO data_objects (id, position, name, kind, hide_from_editors, transform_id, display_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Position, m.Name, m.Kind, m.HideFromEditors, nullArg(m.TransformID), nullArg(m.DisplayID)); err != nil {
		return fmt.Errorf("failed to insert data object %s: %w", m.ID, err)
	}
	return insertPairs(ctx, tx, "object_attributes", "object_id", m.ID, attrs)
}

func insertPairs(ctx context.Context, tx *sql.Tx, table, keyColumn, key string, pairs map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(pairs)) {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+table+" ("+keyColumn+", name, value) VALUES (?, ?, ?)",
			key, name, pairs[name]); err != nil {
			return fmt.Errorf("failed to insert %s %s of %s: %w", table, name, key, err)
		}
	}
	return nil
}

// Load reads the stored document. It reports false when nothing has been
// saved yet. The items come back unresolved; the caller loads them through
// the consistency controller, which runs the pass that makes them valid.
func (db *DB) Load(ctx context.Context) (doc consistency.Document, found bool, err error) {
	ctx, span := tracing.Start(ctx, db.tracer, tracing.SpanLoadDocument,
		attribute.String(tracing.AttrDocument, db.path))
	defer func() { tracing.End(span, err) }()

	var savedAt int64
	err = db.conn.QueryRowContext(ctx, `SELECT saved_at FROM documents WHERE id = 1`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return consistency.Document{}, false, nil
	}
	if err != nil {
		return consistency.Document{}, false, fmt.Errorf("failed to read document: %w", err)
	}

	if doc.Items, err = db.loadItems(ctx); err != nil {
		return consistency.Document{}, false, err
	}
	if doc.Contents.Displays, err = db.loadDisplays(ctx); err != nil {
		return consistency.Document{}, false, err
	}
	if doc.Contents.Objects, err = db.loadObjects(ctx); err != nil {
		return consistency.Document{}, false, err
	}
	if doc.Contents.Legacy, err = db.loadLegacy(ctx); err != nil {
		return consistency.Document{}, false, err
	}
	log.Info(log.CatDB, "document loaded", "path", db.path, "items", len(doc.Items),
		"objects", len(doc.Contents.Objects), "saved_at", time.Unix(savedAt, 0).Format(time.RFC3339))
	return doc, true, nil
}

func (db *DB) loadItems(ctx context.Context) ([]hierarchy.UnresolvedItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT key, parent_key, position, name, level, owner, owner_auto_search, data_object, expanded
		FROM items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []hierarchy.UnresolvedItem
	index := map[string]int{}
	for rows.Next() {
		var m itemModel
		if err := rows.Scan(&m.Key, &m.ParentKey, &m.Position, &m.Name, &m.Level, &m.Owner,
			&m.OwnerAutoSearch, &m.DataObject, &m.Expanded); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		index[m.Key] = len(items)
		items = append(items, m.toUnresolved())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	err = db.loadPairs(ctx, "item_attributes", "item_key", func(key, name, value string) {
		if i, ok := index[key]; ok {
			items[i].Attributes[name] = value
		}
	})
	if err != nil {
		return nil, err
	}
	err = db.loadPairs(ctx, "item_uids", "item_key", func(key, name, value string) {
		if i, ok := index[key]; ok {
			items[i].UIDs[name] = value
		}
	})
	return items, err
}

func (db *DB) loadDisplays(ctx context.Context) ([]datastore.DisplayRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, color, visible, modified FROM displays ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query displays: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []datastore.DisplayRecord
	for rows.Next() {
		var (
			d        datastore.DisplayRecord
			id       string
			modified int64
		)
		if err := rows.Scan(&id, &d.Color, &d.Visible, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan display: %w", err)
		}
		d.ID = datastore.DisplayID(id)
		d.Modified = uint64(modified)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate displays: %w", err)
	}
	return out, nil
}

func (db *DB) loadObjects(ctx context.Context) ([]datastore.DataObject, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, position, name, kind, hide_from_editors, transform_id, display_id
		FROM data_objects ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query data objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []datastore.DataObject
	index := map[string]int{}
	for rows.Next() {
		var m objectModel
		if err := rows.Scan(&m.ID, &m.Position, &m.Name, &m.Kind, &m.HideFromEditors, &m.TransformID, &m.DisplayID); err != nil {
			return nil, fmt.Errorf("failed to scan data object: %w", err)
		}
		obj, err := m.toDataObject()
		if err != nil {
			return nil, fmt.Errorf("data object %s: %w", m.ID, err)
		}
		index[m.ID] = len(out)
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data objects: %w", err)
	}

	err = db.loadPairs(ctx, "object_attributes", "object_id", func(key, name, value string) {
		if i, ok := index[key]; ok {
			out[i].Attributes[name] = value
		}
	})
	return out, err
}

func (db *DB) loadLegacy(ctx context.Context) ([]datastore.LegacyNode, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, position, name, parent_id, object_id FROM legacy_nodes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []datastore.LegacyNode
	for rows.Next() {
		var m legacyModel
		if err := rows.Scan(&m.ID, &m.Position, &m.Name, &m.ParentID, &m.ObjectID); err != nil {
			return nil, fmt.Errorf("failed to scan legacy node: %w", err)
		}
		out = append(out, m.toLegacyNode())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate legacy nodes: %w", err)
	}
	return out, nil
}

func (db *DB) loadPairs(ctx context.Context, table, keyColumn string, fn func(key, name, value string)) error {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+keyColumn+", name, value FROM "+table)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key, name, value string
		if err := rows.Scan(&key, &name, &value); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		fn(key, name, value)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return nil
}
