package points

import (
	"context"
	"strings"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/completion"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/store"
)

func validateTask(t *model.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return apperr.Validation("title is required")
	}
	if t.Points < 0 {
		return apperr.Validation("points must not be negative")
	}
	if !t.Frequency.Valid() {
		return apperr.Validationf("unknown frequency %q", t.Frequency)
	}
	if !t.ApprovalType.Valid() {
		return apperr.Validationf("unknown approval type %q", t.ApprovalType)
	}
	switch t.ApprovalType {
	case model.ApprovalTimer:
		if t.TimerMinutes == nil || *t.TimerMinutes <= 0 {
			return apperr.Validation("timer tasks need a positive timer_minutes")
		}
	case model.ApprovalChecklist:
		if len(t.ChecklistItems) == 0 {
			return apperr.Validation("checklist tasks need at least one item")
		}
		for _, item := range t.ChecklistItems {
			if strings.TrimSpace(item) == "" {
				return apperr.Validation("checklist items must not be blank")
			}
		}
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if err := validateTask(&t); err != nil {
		return nil, err
	}
	if _, err := s.GetFamily(ctx, t.FamilyID); err != nil {
		return nil, err
	}
	t.Active = true
	created, err := s.Stores().Tasks.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	s.notify(created.FamilyID, "task", "created", created.ID, nil)
	return created, nil
}

// UpdateTask applies an administrative edit. Existing completions keep the
// points they were awarded.
func (s *Service) UpdateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if err := validateTask(&t); err != nil {
		return nil, err
	}
	st := s.Stores()
	cur, err := s.GetTask(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.FamilyID = cur.FamilyID
	updated, err := st.Tasks.Update(ctx, t)
	if err != nil {
		return nil, err
	}
	s.notify(updated.FamilyID, "task", "updated", updated.ID, nil)
	return updated, nil
}

func (s *Service) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	t, err := s.Stores().Tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Lifecycle == model.LifecycleArchived {
		return nil, apperr.NotFound("task not found")
	}
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, familyID int64, activeOnly bool) ([]model.Task, error) {
	return s.Stores().Tasks.ListByFamily(ctx, familyID, activeOnly)
}

func (s *Service) ArchiveTask(ctx context.Context, id int64) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Stores().Tasks.Archive(ctx, id, s.clock()); err != nil {
		return err
	}
	s.notify(t.FamilyID, "task", "archived", id, nil)
	return nil
}

// ScheduleTask assigns a task to a child for a day (YYYY-MM-DD, today when
// empty).
func (s *Service) ScheduleTask(ctx context.Context, taskID, childID int64, day string) (*model.TaskInstance, error) {
	if day == "" {
		day = s.today(s.clock())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		return nil, apperr.Validation("day must be YYYY-MM-DD")
	}
	var inst *model.TaskInstance
	err := s.tx(ctx, func(st *store.Stores) error {
		task, child, err := taskForChild(ctx, st, taskID, childID)
		if err != nil {
			return err
		}
		if !task.Active {
			return apperr.Conflict("task is not active")
		}
		inst, err = st.Instances.Create(ctx, task.ID, child.ID, day)
		return err
	})
	return inst, err
}

// taskForChild loads a live task and child of the same family.
func taskForChild(ctx context.Context, st *store.Stores, taskID, childID int64) (*model.Task, *model.Child, error) {
	task, err := st.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task == nil || task.Lifecycle == model.LifecycleArchived {
		return nil, nil, apperr.NotFound("task not found")
	}
	child, err := activeChild(ctx, st, childID)
	if err != nil {
		return nil, nil, err
	}
	if child.FamilyID != task.FamilyID {
		return nil, nil, apperr.NotFound("task not found")
	}
	return task, child, nil
}

type SubmitInput struct {
	TaskID     int64
	ChildID    int64
	InstanceID *int64
	Evidence   completion.Submission
}

type SubmitResult struct {
	Completion  *model.TaskCompletion `json:"completion"`
	Resubmitted bool                  `json:"resubmitted"`
	// NewBalance is set when points were awarded.
	NewBalance *int `json:"new_balance,omitempty"`
}

// SubmitTask records a child's completion of a task for today.
//
// Auto, timer and checklist tasks are approved at once and award their
// points. Parent-reviewed tasks wait as pending until approved or until the
// review window passes. A task already submitted today is a conflict unless
// that submission was returned for a fix, in which case it is resubmitted in
// place.
func (s *Service) SubmitTask(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	now := s.clock()
	day := s.today(now)
	res := &SubmitResult{}
	var familyID int64
	var task *model.Task

	err := s.tx(ctx, func(st *store.Stores) error {
		var child *model.Child
		var err error
		task, child, err = taskForChild(ctx, st, in.TaskID, in.ChildID)
		if err != nil {
			return err
		}
		familyID = child.FamilyID

		ev, err := completion.ParseEvidence(*task, in.Evidence)
		if err != nil {
			return err
		}

		existing, err := st.Completions.GetForDay(ctx, task.ID, child.ID, day)
		if err != nil {
			return err
		}
		var c *model.TaskCompletion
		if existing != nil {
			if existing.Status != model.CompletionFixRequested {
				return apperr.Conflict("already submitted today")
			}
			c, err = s.resubmit(ctx, st, task, existing, ev, now)
			res.Resubmitted = true
		} else {
			if !task.Active {
				return apperr.Conflict("task is not active")
			}
			c, err = s.submitNew(ctx, st, task, child, in.InstanceID, ev, day, now)
		}
		if err != nil {
			return err
		}

		if c.Status != model.CompletionFixRequested && task.Frequency == model.FrequencyOneTime && task.Active {
			if err := st.Tasks.SetActive(ctx, task.ID, false); err != nil {
				return err
			}
		}
		if c.PointsAwarded != nil && completion.IsApproved(c.Status) {
			bal, err := st.Ledger.Balance(ctx, child.ID)
			if err != nil {
				return err
			}
			res.NewBalance = &bal
		}
		res.Completion = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := res.Completion
	awarded := 0
	if c.PointsAwarded != nil {
		awarded = *c.PointsAwarded
	}
	s.metrics.Submission(string(c.Status), awarded)
	s.logger.Info("task submitted", "completion_id", c.ID, "task_id", c.TaskID, "child_id", c.ChildID,
		"status", c.Status, "resubmitted", res.Resubmitted)
	s.notify(familyID, "completion", "submitted", c.ID, map[string]any{
		"status":   c.Status,
		"task_id":  c.TaskID,
		"child_id": c.ChildID,
	})
	return res, nil
}

func (s *Service) submitNew(ctx context.Context, st *store.Stores, task *model.Task, child *model.Child, instanceID *int64, ev completion.Evidence, day string, now time.Time) (*model.TaskCompletion, error) {
	status := completion.InitialStatus(task.ApprovalType)
	c := &model.TaskCompletion{
		TaskID:         task.ID,
		ChildID:        child.ID,
		CompletionDate: day,
		Status:         status,
		Evidence:       ev.Record(),
		RequestedAt:    now,
	}
	s.stampOutcome(c, now)

	if instanceID != nil {
		inst, err := st.Instances.GetByID(ctx, *instanceID)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			return nil, apperr.NotFound("task instance not found")
		}
		if inst.TaskID != task.ID || inst.ChildID != child.ID || inst.ScheduledFor != day {
			return nil, apperr.Validation("task instance does not match task, child and day")
		}
		claimed, err := st.Instances.Claim(ctx, inst.ID, completion.InstanceStatusFor(status))
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, apperr.Conflict("task instance already claimed")
		}
		c.InstanceID = &inst.ID
	}

	if err := st.Completions.Create(ctx, c); err != nil {
		return nil, err
	}
	if completion.IsApproved(status) {
		if err := award(ctx, st, c, task, now); err != nil {
			return nil, err
		}
		if err := st.Completions.Save(ctx, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *Service) resubmit(ctx context.Context, st *store.Stores, task *model.Task, c *model.TaskCompletion, ev completion.Evidence, now time.Time) (*model.TaskCompletion, error) {
	to, err := completion.Transition(c.Status, completion.ResubmitAction(task.ApprovalType))
	if err != nil {
		return nil, err
	}
	c.Status = to
	c.Evidence = ev.Record()
	c.FixRequest = ""
	c.FixRequestCount++
	c.RequestedAt = now
	s.stampOutcome(c, now)

	if completion.IsApproved(to) {
		if err := award(ctx, st, c, task, now); err != nil {
			return nil, err
		}
	}
	if err := st.Completions.Save(ctx, c); err != nil {
		return nil, err
	}
	if c.InstanceID != nil {
		if err := st.Instances.SetStatus(ctx, *c.InstanceID, completion.InstanceStatusFor(to)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// stampOutcome sets the timestamps that follow from c.Status.
func (s *Service) stampOutcome(c *model.TaskCompletion, now time.Time) {
	if completion.IsApproved(c.Status) {
		c.ApprovedAt = &now
		c.CompletedAt = &now
		c.AutoApproveAt = nil
		return
	}
	deadline := now.Add(s.approval.AutoApproveAfter)
	c.ApprovedAt = nil
	c.CompletedAt = nil
	c.AutoApproveAt = &deadline
}

// award credits the task's points for an approved completion. The caller
// saves c afterwards.
func award(ctx context.Context, st *store.Stores, c *model.TaskCompletion, task *model.Task, now time.Time) error {
	pts := task.Points
	c.PointsAwarded = &pts
	if pts == 0 {
		return nil
	}
	_, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
		ChildID: c.ChildID, Amount: pts, Type: model.LedgerTaskAward,
		ReferenceType: "task_completion", ReferenceID: c.ID, Description: task.Title, CreatedAt: now,
	})
	return err
}

// ApproveCompletion is a parent approving a pending completion.
func (s *Service) ApproveCompletion(ctx context.Context, id int64) (*model.TaskCompletion, error) {
	c, familyID, err := s.approve(ctx, id, completion.ActionApprove, false)
	if err != nil {
		return nil, err
	}
	s.notify(familyID, "completion", "approved", c.ID, map[string]any{"child_id": c.ChildID, "points": c.PointsAwarded})
	return c, nil
}

// approve moves a pending completion to an approved status and awards its
// points. With onlyIfDue set, completions whose deadline has not passed are
// left alone and c is nil.
func (s *Service) approve(ctx context.Context, id int64, action completion.Action, onlyIfDue bool) (*model.TaskCompletion, int64, error) {
	now := s.clock()
	var c *model.TaskCompletion
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		var err error
		c, err = st.Completions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("completion not found")
		}
		if onlyIfDue && (c.Status != model.CompletionPending || c.AutoApproveAt == nil || c.AutoApproveAt.After(now)) {
			c = nil
			return nil
		}
		to, err := completion.Transition(c.Status, action)
		if err != nil {
			return err
		}
		task, err := st.Tasks.GetByID(ctx, c.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return apperr.NotFound("task not found")
		}
		child, err := st.Children.GetByID(ctx, c.ChildID)
		if err != nil {
			return err
		}
		if child == nil {
			return apperr.NotFound("child not found")
		}
		familyID = child.FamilyID

		c.Status = to
		s.stampOutcome(c, now)
		if err := award(ctx, st, c, task, now); err != nil {
			return err
		}
		if err := st.Completions.Save(ctx, c); err != nil {
			return err
		}
		if c.InstanceID != nil {
			return st.Instances.SetStatus(ctx, *c.InstanceID, model.InstanceCompleted)
		}
		return nil
	})
	if err != nil || c == nil {
		return nil, 0, err
	}
	if c.PointsAwarded != nil {
		s.metrics.PointsAwarded(*c.PointsAwarded)
	}
	s.logger.Info("completion approved", "completion_id", c.ID, "status", c.Status)
	return c, familyID, nil
}

// RequestFix returns a pending completion to the child with a message.
func (s *Service) RequestFix(ctx context.Context, id int64, message string) (*model.TaskCompletion, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("a message explaining the fix is required")
	}
	var c *model.TaskCompletion
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		var err error
		c, err = st.Completions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("completion not found")
		}
		to, err := completion.Transition(c.Status, completion.ActionRequestFix)
		if err != nil {
			return err
		}
		child, err := st.Children.GetByID(ctx, c.ChildID)
		if err != nil {
			return err
		}
		if child != nil {
			familyID = child.FamilyID
		}
		c.Status = to
		c.FixRequest = message
		c.AutoApproveAt = nil
		return st.Completions.Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.notify(familyID, "completion", "fix_requested", c.ID, map[string]any{"child_id": c.ChildID, "message": message})
	return c, nil
}

// DeleteCompletion removes a completion, reversing any points it awarded.
// Reversal fails with InsufficientFunds when the points are already spent.
func (s *Service) DeleteCompletion(ctx context.Context, id int64) error {
	now := s.clock()
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		c, err := st.Completions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("completion not found")
		}
		child, err := st.Children.GetByID(ctx, c.ChildID)
		if err != nil {
			return err
		}
		if child != nil {
			familyID = child.FamilyID
		}
		if completion.IsApproved(c.Status) && c.PointsAwarded != nil && *c.PointsAwarded > 0 {
			_, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
				ChildID: c.ChildID, Amount: -*c.PointsAwarded, Type: model.LedgerTaskReversal,
				ReferenceType: "task_completion", ReferenceID: c.ID, Description: "completion deleted", CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}
		if c.InstanceID != nil {
			if err := st.Instances.SetStatus(ctx, *c.InstanceID, model.InstancePending); err != nil {
				return err
			}
		}
		return st.Completions.Delete(ctx, c.ID)
	})
	if err != nil {
		return err
	}
	s.notify(familyID, "completion", "deleted", id, nil)
	return nil
}

func (s *Service) GetCompletion(ctx context.Context, id int64) (*model.TaskCompletion, error) {
	c, err := s.Stores().Completions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("completion not found")
	}
	return c, nil
}

// ListCompletions returns a child's completions for a day (today when empty).
func (s *Service) ListCompletions(ctx context.Context, childID int64, day string) ([]model.TaskCompletion, error) {
	if day == "" {
		day = s.today(s.clock())
	}
	return s.Stores().Completions.ListByChildDay(ctx, childID, day)
}

func (s *Service) ListPendingReviews(ctx context.Context, familyID int64) ([]model.TaskCompletion, error) {
	return s.Stores().Completions.ListPendingByFamily(ctx, familyID)
}

func (s *Service) ListInstances(ctx context.Context, childID int64, day string) ([]model.TaskInstance, error) {
	if day == "" {
		day = s.today(s.clock())
	}
	return s.Stores().Instances.ListByChildDay(ctx, childID, day)
}
