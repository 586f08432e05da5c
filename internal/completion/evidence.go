package completion

import (
	"strings"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

// Submission is the loosely-typed evidence payload sent by clients.
type Submission struct {
	TimerCompleted *bool  `json:"timer_completed"`
	Checklist      []bool `json:"checklist"`
	PhotoURL       string `json:"photo_url"`
	Note           string `json:"note"`
}

// Evidence is validated proof of work, one variant per approval type.
type Evidence interface {
	ApprovalType() model.ApprovalType
	Record() model.Evidence
}

type Attachment struct {
	PhotoURL string
	Note     string
}

type AutoEvidence struct{ Attachment }

type ParentEvidence struct{ Attachment }

type TimerEvidence struct {
	Attachment
	Completed bool
}

type ChecklistEvidence struct {
	Attachment
	Items []bool
}

func (AutoEvidence) ApprovalType() model.ApprovalType      { return model.ApprovalAuto }
func (ParentEvidence) ApprovalType() model.ApprovalType    { return model.ApprovalParent }
func (TimerEvidence) ApprovalType() model.ApprovalType     { return model.ApprovalTimer }
func (ChecklistEvidence) ApprovalType() model.ApprovalType { return model.ApprovalChecklist }

func (a Attachment) record() model.Evidence {
	return model.Evidence{PhotoURL: a.PhotoURL, Note: a.Note}
}

func (e AutoEvidence) Record() model.Evidence   { return e.record() }
func (e ParentEvidence) Record() model.Evidence { return e.record() }

func (e TimerEvidence) Record() model.Evidence {
	r := e.record()
	done := e.Completed
	r.TimerCompleted = &done
	return r
}

func (e ChecklistEvidence) Record() model.Evidence {
	r := e.record()
	r.Checklist = append([]bool(nil), e.Items...)
	return r
}

// ParseEvidence validates a submission against the task's approval type.
// Timer tasks need a finished timer; checklist tasks need every item ticked.
func ParseEvidence(task model.Task, s Submission) (Evidence, error) {
	att := Attachment{
		PhotoURL: strings.TrimSpace(s.PhotoURL),
		Note:     strings.TrimSpace(s.Note),
	}

	switch task.ApprovalType {
	case model.ApprovalAuto:
		return AutoEvidence{att}, nil
	case model.ApprovalParent:
		return ParentEvidence{att}, nil
	case model.ApprovalTimer:
		if s.TimerCompleted == nil || !*s.TimerCompleted {
			return nil, apperr.Validation("timer must be completed before submitting")
		}
		return TimerEvidence{Attachment: att, Completed: true}, nil
	case model.ApprovalChecklist:
		if len(s.Checklist) != len(task.ChecklistItems) {
			return nil, apperr.Validationf("checklist has %d items, got %d answers", len(task.ChecklistItems), len(s.Checklist))
		}
		for i, done := range s.Checklist {
			if !done {
				return nil, apperr.Validationf("checklist item %q is not done", task.ChecklistItems[i])
			}
		}
		return ChecklistEvidence{Attachment: att, Items: s.Checklist}, nil
	default:
		return nil, apperr.Validationf("unknown approval type %q", task.ApprovalType)
	}
}
