// Package conversation carries pending parameters and already-supplied
// values across resolution turns.
//
// A Snapshot is the first-class conversational container. Snapshots are
// immutable and versioned: merging a user reply produces a new snapshot and
// leaves the old one valid for concurrent readers. Persistence between turns
// is delegated to a Store implementation; the state machine itself never
// performs I/O.
package conversation

import (
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/resolve"
)

type (
	// Pending is one unanswered parameter question, tagged to the step and
	// operation that raised it.
	Pending struct {
		// StepIndex locates the owning step within the plan.
		StepIndex int
		// ActionID names the owning operation.
		ActionID catalog.ID
		// Name is the missing parameter.
		Name string
		// Prompt is the question to put to the user.
		Prompt string
	}

	// StepValues accumulates the values supplied so far for one step.
	StepValues struct {
		// StepIndex locates the step within the plan.
		StepIndex int
		// ActionID names the operation.
		ActionID catalog.ID
		// Values maps parameter name to the raw supplied value.
		Values map[string]any
	}

	// Snapshot is one immutable turn of conversation state.
	//
	// Contract:
	// - ID is stable across the conversation; Version increments per turn.
	// - Merge never mutates the receiver: it returns a new snapshot.
	// - A snapshot with no pending questions is complete and should be
	//   discarded once its plan resolves.
	Snapshot struct {
		// ID identifies the conversation.
		ID string
		// Version increments on every merge, starting at 1.
		Version int
		// Instruction is the user's original request, kept so later turns
		// can re-prompt the model with full context.
		Instruction string
		// PlanDoc is the raw plan text the conversation is resolving,
		// JSON document or S-expression. Storing the source text keeps
		// snapshots serializable; later turns re-parse it before applying
		// accumulated values.
		PlanDoc string
		// Pending lists the unanswered parameter questions.
		Pending []Pending
		// Supplied accumulates the values provided so far, per step.
		Supplied []StepValues
		// Reply is the latest user reply merged into this snapshot.
		Reply string
		// UpdatedAt records when this snapshot was produced.
		UpdatedAt time.Time
	}
)

// FromResolution builds the first snapshot of a conversation from a pending
// resolution outcome. It returns false when the plan has nothing pending and
// therefore needs no conversation state.
func FromResolution(id, instruction string, resolved *resolve.Plan) (*Snapshot, bool) {
	if resolved.Status != resolve.StatusPending {
		return nil, false
	}
	if id == "" {
		id = uuid.NewString()
	}
	s := &Snapshot{
		ID:          id,
		Version:     1,
		Instruction: instruction,
		UpdatedAt:   time.Now().UTC(),
	}
	for i, step := range resolved.Steps {
		ps, ok := step.(*resolve.PendingStep)
		if !ok {
			continue
		}
		for _, m := range ps.Missing {
			s.Pending = append(s.Pending, Pending{
				StepIndex: i,
				ActionID:  ps.ActionID,
				Name:      m.Name,
				Prompt:    m.Text,
			})
		}
		if len(ps.Supplied) > 0 {
			s.Supplied = append(s.Supplied, StepValues{
				StepIndex: i,
				ActionID:  ps.ActionID,
				Values:    copyValues(ps.Supplied),
			})
		}
	}
	return s, len(s.Pending) > 0
}

// Reconcile rebuilds the question list from a fresh resolution attempt while
// keeping every value accumulated so far. A step that resolved thanks to an
// earlier answer keeps that answer, so later attempts never regress it to
// pending. Values the resolution reports as supplied on still-pending steps
// are folded in as well. It returns false when nothing remains pending.
func (s *Snapshot) Reconcile(resolved *resolve.Plan) (*Snapshot, bool) {
	if resolved.Status != resolve.StatusPending {
		return nil, false
	}
	next := s.clone()
	next.Pending = nil
	for i, step := range resolved.Steps {
		ps, ok := step.(*resolve.PendingStep)
		if !ok {
			continue
		}
		for _, m := range ps.Missing {
			next.Pending = append(next.Pending, Pending{
				StepIndex: i,
				ActionID:  ps.ActionID,
				Name:      m.Name,
				Prompt:    m.Text,
			})
		}
		for name, value := range ps.Supplied {
			next.record(i, ps.ActionID, name, value)
		}
	}
	return next, len(next.Pending) > 0
}

// Complete reports whether no questions remain.
func (s *Snapshot) Complete() bool { return len(s.Pending) == 0 }

// NextQuestion returns the first unanswered prompt, or empty when complete.
func (s *Snapshot) NextQuestion() string {
	if len(s.Pending) == 0 {
		return ""
	}
	return s.Pending[0].Prompt
}

// Merge folds a user reply into a new snapshot. A reply shaped like a JSON
// object fills every pending parameter it names; any other reply answers the
// first pending question verbatim. The receiver is left untouched.
func (s *Snapshot) Merge(reply string) *Snapshot {
	next := s.clone()
	next.Version++
	next.Reply = reply
	next.UpdatedAt = time.Now().UTC()

	answers := parseReply(reply, next.Pending)
	remaining := next.Pending[:0:0]
	for _, p := range next.Pending {
		v, ok := answers[answerKey(p.StepIndex, p.Name)]
		if !ok {
			remaining = append(remaining, p)
			continue
		}
		next.record(p.StepIndex, p.ActionID, p.Name, v)
	}
	next.Pending = remaining
	return next
}

// Apply produces the next resolution attempt's input: a copy of p whose
// steps carry every accumulated value, supplied ones replacing or extending
// the original parameters by name.
func (s *Snapshot) Apply(p *plan.Plan) *plan.Plan {
	out := &plan.Plan{Message: p.Message, Steps: make([]plan.Step, len(p.Steps))}
	for i, step := range p.Steps {
		copied := plan.Step{
			ActionID:    step.ActionID,
			Description: step.Description,
			Params:      append([]plan.Param(nil), step.Params...),
		}
		for _, sv := range s.Supplied {
			if sv.StepIndex != i {
				continue
			}
			for name, value := range sv.Values {
				copied.Params = setParam(copied.Params, name, value)
			}
		}
		out.Steps[i] = copied
	}
	return out
}

// parseReply maps a reply onto pending parameters. JSON object replies match
// by name across all pending steps; plain replies answer the first question.
func parseReply(reply string, pending []Pending) map[string]any {
	answers := make(map[string]any)
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for _, p := range pending {
				if v, ok := obj[p.Name]; ok {
					answers[answerKey(p.StepIndex, p.Name)] = v
				}
			}
			if len(answers) > 0 {
				return answers
			}
		}
	}
	if len(pending) > 0 && trimmed != "" {
		p := pending[0]
		answers[answerKey(p.StepIndex, p.Name)] = trimmed
	}
	return answers
}

func answerKey(step int, name string) string {
	return strconv.Itoa(step) + "/" + name
}

func (s *Snapshot) record(step int, action catalog.ID, name string, value any) {
	for i := range s.Supplied {
		if s.Supplied[i].StepIndex == step {
			s.Supplied[i].Values[name] = value
			return
		}
	}
	s.Supplied = append(s.Supplied, StepValues{
		StepIndex: step,
		ActionID:  action,
		Values:    map[string]any{name: value},
	})
}

func (s *Snapshot) clone() *Snapshot {
	out := *s
	out.Pending = append([]Pending(nil), s.Pending...)
	out.Supplied = make([]StepValues, len(s.Supplied))
	for i, sv := range s.Supplied {
		out.Supplied[i] = StepValues{
			StepIndex: sv.StepIndex,
			ActionID:  sv.ActionID,
			Values:    copyValues(sv.Values),
		}
	}
	return &out
}

func setParam(params []plan.Param, name string, value any) []plan.Param {
	for i := range params {
		if params[i].Name == name {
			params[i].Value = value
			return params
		}
	}
	return append(params, plan.Param{Name: name, Value: value})
}

func copyValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
