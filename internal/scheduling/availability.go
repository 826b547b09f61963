package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

// ListWindows returns the windows declared for date, ordered by start time then declaration order.
func (s *Service) ListWindows(ctx context.Context, date time.Time) ([]Window, error) {
	windows, err := s.repo.ListWindows(ctx, timeutil.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	return windows, nil
}

// ProposeWindow declares [start,end) on date. With no same-type overlap the
// window is stored and the proposal is Accepted. Otherwise nothing is written
// and the proposal is Conflict, carrying the free segments for confirmation.
func (s *Service) ProposeWindow(ctx context.Context, date time.Time, start, end int, t WindowType) (p *Proposal, err error) {
	ctx, span := startSpan(ctx, "scheduling.ProposeWindow",
		attribute.String("date", timeutil.FormatDate(date)),
		attribute.String("window.type", string(t)),
	)
	defer func() { endSpan(span, err) }()

	if err := requireType(t); err != nil {
		return nil, err
	}
	if err := timeutil.ValidRange(start, end); err != nil {
		return nil, err
	}

	now := s.now()
	p = &Proposal{
		ID:        uuid.New(),
		Date:      timeutil.DateOf(date),
		Start:     start,
		End:       end,
		Type:      t,
		State:     ProposalProposed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withPartition(ctx, p.Date, t, func(lockCtx context.Context) error {
		existing, err := s.repo.ListWindows(lockCtx, p.Date)
		if err != nil {
			return fmt.Errorf("list windows: %w", err)
		}

		var taken []Segment
		for _, w := range existing {
			if w.Type == t && timeutil.Overlaps(w.Start, w.End, start, end) {
				p.Overlaps = append(p.Overlaps, w)
				taken = append(taken, Segment{Start: w.Start, End: w.End})
			}
		}

		if len(p.Overlaps) > 0 {
			p.Segments = SubtractIntervals(start, end, taken)
			return p.transition(ProposalConflict)
		}

		inserted, err := s.repo.InsertWindows(lockCtx, []Window{{Date: p.Date, Start: start, End: end, Type: t}})
		if err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
		p.Windows = inserted
		return p.transition(ProposalAccepted)
	})
	if err != nil {
		return nil, err
	}

	if err := s.proposals.Save(ctx, *p); err != nil {
		if p.State == ProposalConflict {
			return nil, err
		}
		s.logger.Warn("accepted proposal not saved", "error", err, "proposal_id", p.ID)
	}

	s.metrics.ObserveProposal(string(t), string(p.State))
	s.logger.Info("window proposed",
		"proposal_id", p.ID,
		"date", timeutil.FormatDate(p.Date),
		"range", timeutil.FormatRange(start, end),
		"type", t,
		"state", p.State,
	)
	return p, nil
}

func (s *Service) GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return s.proposals.Get(ctx, id)
}

// ConfirmProposal stores every proposed segment of a Conflict proposal as its
// own window, all or nothing. On a fresh overlap the proposal stays Conflict.
func (s *Service) ConfirmProposal(ctx context.Context, id uuid.UUID) (p *Proposal, err error) {
	ctx, span := startSpan(ctx, "scheduling.ConfirmProposal", attribute.String("proposal.id", id.String()))
	defer func() { endSpan(span, err) }()

	p, err = s.proposals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != ProposalConflict {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, ProposalAccepted)
	}

	err = s.withPartition(ctx, p.Date, p.Type, func(lockCtx context.Context) error {
		windows := make([]Window, 0, len(p.Segments))
		for _, seg := range p.Segments {
			windows = append(windows, Window{Date: p.Date, Start: seg.Start, End: seg.End, Type: p.Type})
		}
		if len(windows) > 0 {
			inserted, err := s.repo.InsertWindows(lockCtx, windows)
			if err != nil {
				if errors.Is(err, ErrDuplicateOverlap) {
					return err
				}
				return fmt.Errorf("insert segments: %w", err)
			}
			p.Windows = inserted
		}
		return p.transition(ProposalAccepted)
	})
	if err != nil {
		return nil, err
	}

	if err := s.proposals.Save(ctx, *p); err != nil {
		s.logger.Warn("confirmed proposal not saved", "error", err, "proposal_id", p.ID)
	}
	s.metrics.ObserveProposal(string(p.Type), string(p.State))
	s.logger.Info("proposal confirmed", "proposal_id", p.ID, "windows", len(p.Windows))
	return p, nil
}

func (s *Service) DiscardProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	p, err := s.proposals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.transition(ProposalDiscarded); err != nil {
		return nil, err
	}
	if err := s.proposals.Save(ctx, *p); err != nil {
		return nil, err
	}
	s.metrics.ObserveProposal(string(p.Type), string(p.State))
	return p, nil
}

// InsertWindow stores w directly, refusing any same-type overlap. The store
// assigns the ID; any ID set by the caller is ignored.
func (s *Service) InsertWindow(ctx context.Context, w Window) (*Window, error) {
	if err := requireType(w.Type); err != nil {
		return nil, err
	}
	if err := timeutil.ValidRange(w.Start, w.End); err != nil {
		return nil, err
	}
	w.ID = uuid.New()
	w.Date = timeutil.DateOf(w.Date)

	var created *Window
	err := s.withPartition(ctx, w.Date, w.Type, func(lockCtx context.Context) error {
		existing, err := s.repo.ListWindows(lockCtx, w.Date)
		if err != nil {
			return fmt.Errorf("list windows: %w", err)
		}
		for _, e := range existing {
			if e.Type == w.Type && timeutil.Overlaps(e.Start, e.End, w.Start, w.End) {
				return ErrDuplicateOverlap
			}
		}
		inserted, err := s.repo.InsertWindows(lockCtx, []Window{w})
		if err != nil {
			return err
		}
		created = &inserted[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateWindow moves a window's bounds. It must not overlap a sibling and must
// keep covering every active booking that started inside it.
func (s *Service) UpdateWindow(ctx context.Context, id uuid.UUID, start, end int) (*Window, error) {
	if err := timeutil.ValidRange(start, end); err != nil {
		return nil, err
	}
	current, err := s.repo.GetWindow(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Window
	err = s.withPartition(ctx, current.Date, current.Type, func(lockCtx context.Context) error {
		w, err := s.repo.UpdateWindow(lockCtx, id, start, end)
		if err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("window updated", "window_id", id, "range", updated.Range())
	return updated, nil
}

// DeleteWindow removes a window unless an active booking of its type starts inside it.
func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	w, err := s.repo.GetWindow(ctx, id)
	if err != nil {
		return err
	}
	err = s.withPartition(ctx, w.Date, w.Type, func(lockCtx context.Context) error {
		return s.repo.DeleteWindowIfUnbooked(lockCtx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("window deleted", "window_id", id, "date", timeutil.FormatDate(w.Date), "range", w.Range())
	return nil
}
