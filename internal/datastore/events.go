package datastore

import "github.com/zjrosen/subjecthierarchy/internal/hierarchy"

// EventKind classifies store events.
type EventKind uint8

const (
	EventObjectAdded EventKind = iota + 1
	EventObjectAboutToBeRemoved
	EventObjectRemoved
	EventObjectModified
	EventImportEnded
	EventBatchEnded
	EventSceneClosed
	EventSceneRestored
	EventDisplayModified
	EventLegacyAdded
	EventLegacyRemoved
	EventLegacyReparented
)

func (k EventKind) String() string {
	switch k {
	case EventObjectAdded:
		return "object-added"
	case EventObjectAboutToBeRemoved:
		return "object-about-to-be-removed"
	case EventObjectRemoved:
		return "object-removed"
	case EventObjectModified:
		return "object-modified"
	case EventImportEnded:
		return "import-ended"
	case EventBatchEnded:
		return "batch-ended"
	case EventSceneClosed:
		return "scene-closed"
	case EventSceneRestored:
		return "scene-restored"
	case EventDisplayModified:
		return "display-modified"
	case EventLegacyAdded:
		return "legacy-added"
	case EventLegacyRemoved:
		return "legacy-removed"
	case EventLegacyReparented:
		return "legacy-reparented"
	default:
		return "unknown"
	}
}

// Event is delivered synchronously to store subscribers.
type Event struct {
	Kind       EventKind
	Object     ObjectID
	Display    DisplayID
	Legacy     string
	ParentHint hierarchy.ItemID
}
