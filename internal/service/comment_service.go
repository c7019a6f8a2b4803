package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/perm"
)

// CommentStore is the ledger's persistence surface.
type CommentStore interface {
	Insert(ctx context.Context, c *model.Comment) error
}

// CommentService is the append-only comment ledger. Comments are
// never edited or removed once written; that property is what lets
// the timeline double as an audit trail.
type CommentService struct {
	comments CommentStore
	orders   OrderStore
	bus      Broadcaster
	log      *zap.Logger
	now      func() time.Time
}

// NewCommentService wires the ledger to its collaborators.
func NewCommentService(comments CommentStore, orders OrderStore, bus Broadcaster, log *zap.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		orders:   orders,
		bus:      bus,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Add appends a typed comment to an order, bumps the order's
// updatedAt and emits comment:added. Comments carry no transition
// rules of their own; the parent order's status is untouched.
func (s *CommentService) Add(ctx context.Context, actor Actor, orderID uint64, ctype model.CommentType, content string) (*model.Comment, error) {
	if !perm.Allowed(actor.Role, perm.ActionAddComment) {
		return nil, ErrDenied
	}
	if !ctype.Valid() {
		return nil, invalid("commentType", "must be DIAGNOSIS, REPAIR, NOTE or FINAL")
	}
	if strings.TrimSpace(content) == "" {
		return nil, invalid("content", "required")
	}
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	now := s.now()
	author := actor.UserID
	c := &model.Comment{
		ServiceOrderID: orderID,
		UserID:         &author,
		CommentType:    ctype,
		Content:        content,
		CreatedAt:      now,
	}
	if err := s.comments.Insert(ctx, c); err != nil {
		return nil, err
	}
	if err := s.orders.Touch(ctx, orderID, now); err != nil {
		// The comment is already persisted; a failed touch only
		// leaves updatedAt stale. Log and carry on.
		s.log.Warn("touch after comment failed", zap.Uint64("order", orderID), zap.Error(err))
	}
	s.log.Info("comment added",
		zap.Uint64("order", orderID), zap.String("type", string(ctype)), zap.Uint64("actor", actor.UserID))
	s.bus.CommentAdded(ctx, c, orderID)
	return c, nil
}
