package plugins

import (
	"fmt"

	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// SubjectName is the registered name of the subject plugin.
const SubjectName = "Subjects"

// Subject owns patient and study items.
type Subject struct {
	plugin.Base
}

var _ plugin.Plugin = (*Subject)(nil)

// NewSubject creates the subject plugin.
func NewSubject() *Subject {
	return &Subject{Base: plugin.NewBase(SubjectName)}
}

func (s *Subject) CanOwnItem(env *plugin.Env, id hierarchy.ItemID) float64 {
	it, err := env.Tree.Item(id)
	if err != nil || it.DataObject != "" {
		return 0
	}
	if it.Level == hierarchy.LevelPatient || it.Level == hierarchy.LevelStudy {
		return 0.7
	}
	return 0
}

// CanReparent claims moving a study under a patient.
func (s *Subject) CanReparent(env *plugin.Env, id, newParent hierarchy.ItemID) float64 {
	it, err := env.Tree.Item(id)
	if err != nil || it.Level != hierarchy.LevelStudy {
		return 0
	}
	p, err := env.Tree.Item(newParent)
	if err != nil || p.Level != hierarchy.LevelPatient {
		return 0
	}
	return 0.5
}

// Reparent moves the study and records the patient it now belongs to.
func (s *Subject) Reparent(env *plugin.Env, id, newParent hierarchy.ItemID) (plugin.Outcome, error) {
	if err := env.Tree.SetParent(id, newParent); err != nil {
		return 0, err
	}
	if uid := env.Tree.UID(newParent, UIDPatient); uid != "" {
		if err := env.Tree.SetUID(id, UIDPatient, uid); err != nil {
			return 0, err
		}
	}
	log.Debug(log.CatPlugin, "study moved to patient", "study", id, "patient", newParent)
	return plugin.OutcomeMoved, nil
}

// UIDPatient names the patient identifier carried by patients and their
// studies.
const UIDPatient = "patient"

func (s *Subject) Role(env *plugin.Env, id hierarchy.ItemID) string {
	it, err := env.Tree.Item(id)
	if err != nil {
		return ""
	}
	return it.Level
}

func (s *Subject) Icon(env *plugin.Env, id hierarchy.ItemID) string {
	it, err := env.Tree.Item(id)
	if err == nil && it.Level == hierarchy.LevelPatient {
		return "☺"
	}
	return "◫"
}

func (s *Subject) ContextActions(env *plugin.Env, id hierarchy.ItemID) []string {
	it, err := env.Tree.Item(id)
	if err != nil {
		return nil
	}
	switch it.Level {
	case hierarchy.LevelPatient:
		return []string{"Create study", "Create child folder"}
	case hierarchy.LevelStudy:
		return []string{"Create child folder"}
	}
	return nil
}

// CreatePatient adds a patient under the scene item.
func (s *Subject) CreatePatient(env *plugin.Env, name string) (hierarchy.ItemID, error) {
	if name == "" {
		name = "NewPatient"
	}
	root := env.Tree.Root()
	id, err := env.Tree.CreateSubject(root, env.Tree.GenerateUniqueName(root, name))
	if err != nil {
		return hierarchy.InvalidItemID, err
	}
	return id, env.Tree.SetOwner(id, s.Name(), true)
}

// CreateStudy adds a study under a patient.
func (s *Subject) CreateStudy(env *plugin.Env, patient hierarchy.ItemID, name string) (hierarchy.ItemID, error) {
	p, err := env.Tree.Item(patient)
	if err != nil {
		return hierarchy.InvalidItemID, err
	}
	if p.Level != hierarchy.LevelPatient {
		return hierarchy.InvalidItemID, &hierarchy.OperationError{Op: "create study", Item: patient,
			Err: fmt.Errorf("%w: parent is not a patient", hierarchy.ErrInvalidItem)}
	}
	if name == "" {
		name = "NewStudy"
	}
	id, err := env.Tree.CreateStudy(patient, env.Tree.GenerateUniqueName(patient, name))
	if err != nil {
		return hierarchy.InvalidItemID, err
	}
	if uid := p.UIDs[UIDPatient]; uid != "" {
		if err := env.Tree.SetUID(id, UIDPatient, uid); err != nil {
			return hierarchy.InvalidItemID, err
		}
	}
	return id, env.Tree.SetOwner(id, s.Name(), true)
}
