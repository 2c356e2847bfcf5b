// Package reconcile keeps a field's link associations in step with its content.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/notebook/internal/linkparse"
	"github.com/emrgen/notebook/internal/metrics"
	"github.com/emrgen/notebook/internal/model"
	"github.com/emrgen/notebook/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrReconciliation wraps storage failures while applying a plan.
var ErrReconciliation = errors.New("link reconciliation failed")

type Mode int

const (
	ModeAutosave Mode = iota
	ModeSave
	ModeCancel
	ModeRestore
)

func (m Mode) String() string {
	switch m {
	case ModeAutosave:
		return "autosave"
	case ModeSave:
		return "save"
	case ModeCancel:
		return "cancel"
	case ModeRestore:
		return "restore"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// creates committed associations
func (m Mode) commits() bool {
	return m == ModeSave || m == ModeRestore
}

type OpKind string

const (
	OpCreate   OpKind = "create"
	OpErase    OpKind = "erase"
	OpDelete   OpKind = "delete"
	OpUndelete OpKind = "undelete"
	OpPromote  OpKind = "promote"
)

// Op is a single change to a field's associations. Link is nil for OpCreate.
type Op struct {
	Kind  OpKind
	Ref   linkparse.Reference
	Link  *model.LinkAssociation
	State model.LinkState
}

// transition gives the next state of an existing association, by whether its target
// is still referenced. ok is false when the row must be erased.
func transition(state model.LinkState, referenced bool, mode Mode) (next model.LinkState, ok bool) {
	switch state {
	case model.LinkStateSpeculative:
		if !referenced {
			return "", false
		}
		if mode.commits() {
			return model.LinkStateCommitted, true
		}
		return model.LinkStateSpeculative, true
	case model.LinkStateCommitted:
		if !referenced {
			return model.LinkStateCommittedDeleted, true
		}
		return model.LinkStateCommitted, true
	case model.LinkStateCommittedDeleted:
		if referenced {
			return model.LinkStateCommitted, true
		}
		return model.LinkStateCommittedDeleted, true
	}

	return state, true
}

// Plan computes the operations moving the existing associations of a field to the
// target reference set.
func Plan(existing []*model.LinkAssociation, next linkparse.Set, mode Mode) []Op {
	var ops []Op
	known := linkparse.NewSet()

	for _, link := range existing {
		ref := linkparse.Reference{Kind: link.Kind, TargetID: link.TargetID}
		if known.Contains(ref) {
			// a duplicate row for the same target, collapse it
			ops = append(ops, Op{Kind: OpErase, Ref: ref, Link: link})
			continue
		}
		known.Add(ref)

		state, ok := transition(link.State, next.Contains(ref), mode)
		switch {
		case !ok:
			ops = append(ops, Op{Kind: OpErase, Ref: ref, Link: link})
		case state == link.State:
		case state == model.LinkStateCommittedDeleted:
			ops = append(ops, Op{Kind: OpDelete, Ref: ref, Link: link, State: state})
		case link.State == model.LinkStateCommittedDeleted:
			ops = append(ops, Op{Kind: OpUndelete, Ref: ref, Link: link, State: state})
		default:
			ops = append(ops, Op{Kind: OpPromote, Ref: ref, Link: link, State: state})
		}
	}

	state := model.LinkStateSpeculative
	if mode.commits() {
		state = model.LinkStateCommitted
	}
	for _, ref := range linkparse.Sorted(next.Difference(known)) {
		ops = append(ops, Op{Kind: OpCreate, Ref: ref, State: state})
	}

	return ops
}

// Result summarises an applied plan.
type Result struct {
	Created   int
	Erased    int
	Deleted   int
	Undeleted int
	Promoted  int
}

func (r Result) Changed() bool {
	return r != Result{}
}

// Reconciler applies plans against the link store.
type Reconciler struct{}

func New() *Reconciler {
	return &Reconciler{}
}

// Reconcile moves the associations of field to the next reference set. previous is
// the reference set the caller considers current; it is only used for logging, the
// rules apply to every stored association. Callers run it inside a transaction so a
// failure leaves no partial change behind.
func (r *Reconciler) Reconcile(ctx context.Context, tx store.LinkStore, field *model.Field, previous, next linkparse.Set, mode Mode) (Result, error) {
	var result Result

	existing, err := tx.ListLinks(ctx, field.ID)
	if err != nil {
		return result, fmt.Errorf("%w: list links of field %s: %w", ErrReconciliation, field.ID, err)
	}

	ops := Plan(existing, next, mode)
	for _, op := range ops {
		if err := apply(ctx, tx, field, op); err != nil {
			return result, fmt.Errorf("%w: %s %s on field %s: %w", ErrReconciliation, op.Kind, op.Ref, field.ID, err)
		}

		metrics.LinkOperations.WithLabelValues(string(op.Kind), mode.String()).Inc()

		switch op.Kind {
		case OpCreate:
			result.Created++
		case OpErase:
			result.Erased++
		case OpDelete:
			result.Deleted++
		case OpUndelete:
			result.Undeleted++
		case OpPromote:
			result.Promoted++
		}
	}

	if result.Changed() {
		logrus.WithFields(logrus.Fields{
			"field":    field.ID,
			"mode":     mode.String(),
			"previous": previous.Cardinality(),
			"next":     next.Cardinality(),
		}).Infof("reconciled links: %+v", result)
	}

	return result, nil
}

func apply(ctx context.Context, tx store.LinkStore, field *model.Field, op Op) error {
	switch op.Kind {
	case OpCreate:
		return tx.CreateLink(ctx, &model.LinkAssociation{
			ID:       uuid.NewString(),
			RecordID: field.RecordID,
			FieldID:  field.ID,
			Kind:     op.Ref.Kind,
			TargetID: op.Ref.TargetID,
			State:    op.State,
		})
	case OpErase:
		return tx.EraseLink(ctx, op.Link.ID)
	case OpDelete, OpUndelete, OpPromote:
		return tx.UpdateLinkState(ctx, op.Link.ID, op.State)
	}

	return fmt.Errorf("unknown op %q", op.Kind)
}
