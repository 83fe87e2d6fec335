package session

import (
	"sync"
	"time"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/domain/entities"
	"github.com/vatbq/lia/pkg/ai"
)

// Reconciler folds analysis results into the session state. Objective
// completion is a one-way ratchet, action items and insights follow the
// complete-list policy: each result's lists replace the previous ones
// wholesale, with locally completed action items kept completed.
type Reconciler struct {
	mu                  sync.RWMutex
	objectives          []entities.Objective
	completedObjectives map[string]struct{}
	actionItems         []entities.ActionItem
	insights            []entities.Insight
	locallyCompleted    map[string]struct{}
}

// Snapshot is a copy of the reconciled session state.
type Snapshot struct {
	Objectives          []entities.Objective
	CompletedObjectives []string
	ActionItems         []entities.ActionItem
	Insights            []entities.Insight
}

// NewReconciler creates a reconciler over the clarified objectives.
func NewReconciler(objectives []entities.Objective) *Reconciler {
	objs := make([]entities.Objective, len(objectives))
	copy(objs, objectives)
	return &Reconciler{
		objectives:          objs,
		completedObjectives: make(map[string]struct{}),
		locallyCompleted:    make(map[string]struct{}),
	}
}

// Apply folds one analysis result into the state.
func (r *Reconciler) Apply(result *ai.AnalysisResult) {
	if result == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range result.Tasks {
		if !task.Completed {
			continue
		}
		for i := range r.objectives {
			if r.objectives[i].ID == task.ID {
				r.objectives[i].MarkCompleted()
				r.completedObjectives[task.ID] = struct{}{}
				break
			}
		}
		// ids that match no objective are dropped
	}

	r.actionItems = r.rebuildActionItems(result.AllActionItems)
	r.insights = rebuildInsights(result.AllInsights)
}

func (r *Reconciler) rebuildActionItems(payloads []ai.ActionItemPayload) []entities.ActionItem {
	items := make([]entities.ActionItem, 0, len(payloads))
	for _, p := range payloads {
		if p.Title == "" {
			continue
		}
		id := p.ID
		if id == "" {
			id = entities.NewActionItemID()
		}
		priority := p.Priority
		if priority == "" {
			priority = entities.ActionItemPriorityMedium
		}
		completed := p.Completed
		if _, ok := r.locallyCompleted[id]; ok {
			completed = true
		}
		items = append(items, entities.ActionItem{
			ID:          id,
			Title:       p.Title,
			Description: p.Description,
			Priority:    priority,
			Completed:   completed,
			Timestamp:   parseTimestamp(p.Timestamp),
		})
	}
	return items
}

func rebuildInsights(payloads []ai.InsightPayload) []entities.Insight {
	insights := make([]entities.Insight, 0, len(payloads))
	for _, p := range payloads {
		if p.Title == "" {
			continue
		}
		id := p.ID
		if id == "" {
			id = entities.NewInsightID()
		}
		kind := p.Type
		if kind == "" {
			kind = entities.InsightTypeNeutral
		}
		insights = append(insights, entities.Insight{
			ID:          id,
			Title:       p.Title,
			Description: p.Description,
			Type:        kind,
			Timestamp:   parseTimestamp(p.Timestamp),
		})
	}
	return insights
}

func parseTimestamp(s string) time.Time {
	if s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

// CompleteActionItem marks an action item done by hand. The completion
// survives later analysis results that still carry the item as open.
func (r *Reconciler) CompleteActionItem(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.actionItems {
		if r.actionItems[i].ID == id {
			r.actionItems[i].Completed = true
			r.locallyCompleted[id] = struct{}{}
			return nil
		}
	}
	return apperrors.ErrNotFound("action item")
}

// IncompleteObjectives returns the objectives not yet completed, in their
// original order.
func (r *Reconciler) IncompleteObjectives() []entities.Objective {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entities.Objective, 0, len(r.objectives))
	for _, o := range r.objectives {
		if _, done := r.completedObjectives[o.ID]; !done {
			out = append(out, o)
		}
	}
	return out
}

// ActionItems returns a copy of the current action items.
func (r *Reconciler) ActionItems() []entities.ActionItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.ActionItem, len(r.actionItems))
	copy(out, r.actionItems)
	return out
}

// Insights returns a copy of the current insights.
func (r *Reconciler) Insights() []entities.Insight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.Insight, len(r.insights))
	copy(out, r.insights)
	return out
}

// Snapshot returns a copy of the whole reconciled state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Objectives:          make([]entities.Objective, len(r.objectives)),
		CompletedObjectives: make([]string, 0, len(r.completedObjectives)),
		ActionItems:         make([]entities.ActionItem, len(r.actionItems)),
		Insights:            make([]entities.Insight, len(r.insights)),
	}
	copy(snap.Objectives, r.objectives)
	copy(snap.ActionItems, r.actionItems)
	copy(snap.Insights, r.insights)
	for _, o := range r.objectives {
		if _, done := r.completedObjectives[o.ID]; done {
			snap.CompletedObjectives = append(snap.CompletedObjectives, o.ID)
		}
	}
	return snap
}
