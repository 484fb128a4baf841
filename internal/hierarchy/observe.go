package hierarchy

import "slices"

// Observe registers fn for synchronous change delivery and returns a
// function that removes it.
func (t *Tree) Observe(fn Observer) func() {
	t.nextObserve++
	id := t.nextObserve
	t.observers = append(t.observers, observerEntry{id: id, fn: fn})
	return func() {
		t.observers = slices.DeleteFunc(t.observers, func(e observerEntry) bool { return e.id == id })
	}
}

// OnModified registers fn for coalesced item-modified notifications and
// returns a function that removes it.
func (t *Tree) OnModified(fn func(ItemID)) func() {
	t.nextObserve++
	id := t.nextObserve
	t.modObs = append(t.modObs, modifiedEntry{id: id, fn: fn})
	return func() {
		t.modObs = slices.DeleteFunc(t.modObs, func(e modifiedEntry) bool { return e.id == id })
	}
}

// NotifyModified asks views to refresh id without changing it. Repeated
// requests for an item still waiting to be delivered collapse into one.
func (t *Tree) NotifyModified(id ItemID) {
	if _, ok := t.items[id]; !ok {
		return
	}
	t.modified.Post(id)
}

// SuspendNotifications holds item-modified deliveries until the matching
// ResumeNotifications. Calls nest.
func (t *Tree) SuspendNotifications() {
	t.modified.Suspend()
}

// ResumeNotifications ends one SuspendNotifications and delivers what
// accumulated once the outermost suspension ends.
func (t *Tree) ResumeNotifications() {
	t.modified.Resume()
}

// PendingNotifications returns items waiting for a modified delivery.
func (t *Tree) PendingNotifications() []ItemID {
	return t.modified.Pending()
}

func (t *Tree) emit(c Change) {
	for _, o := range slices.Clone(t.observers) {
		o.fn(c)
	}
}

func (t *Tree) deliverModified(id ItemID) {
	if _, ok := t.items[id]; !ok {
		return
	}
	for _, o := range slices.Clone(t.modObs) {
		o.fn(id)
	}
}
