package repository

import (
	"context"
	"database/sql"

	"github.com/hospmaint/os-manager/internal/model"
)

// CommentRepo appends to and reads the comment ledger. The ledger is
// append-only: there is deliberately no update or delete operation.
type CommentRepo struct {
	db *sql.DB
}

// NewCommentRepo returns a new CommentRepo bound to the given database.
func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{db: db} }

// Insert appends a comment and reads the stored row back so the
// caller receives the generated id, the database timestamp and the
// author summary. A nil UserID records a system-authored note.
func (r *CommentRepo) Insert(ctx context.Context, c *model.Comment) error {
	const q = `INSERT INTO comments (service_order_id, user_id, comment_type, content, created_at)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.ServiceOrderID, c.UserID, c.CommentType, c.Content, c.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	const sel = `SELECT cm.id, cm.service_order_id, cm.user_id, cm.comment_type, cm.content, cm.created_at,
	                    u.username, u.full_name
	             FROM comments cm
	             LEFT JOIN users u ON u.id = cm.user_id
	             WHERE cm.id = ?`
	var (
		userID   sql.NullInt64
		username sql.NullString
		fullName sql.NullString
	)
	err = r.db.QueryRowContext(ctx, sel, id).Scan(
		&c.ID, &c.ServiceOrderID, &userID, &c.CommentType, &c.Content, &c.CreatedAt,
		&username, &fullName,
	)
	if err != nil {
		return err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		c.UserID = &uid
		c.User = &model.UserSummary{ID: uid, Username: username.String, FullName: fullName.String}
	}
	return nil
}

// ListByOrder returns the full timeline of an order, oldest first.
func (r *CommentRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.Comment, error) {
	const q = `SELECT cm.id, cm.service_order_id, cm.user_id, cm.comment_type, cm.content, cm.created_at,
	                  u.username, u.full_name
	           FROM comments cm
	           LEFT JOIN users u ON u.id = cm.user_id
	           WHERE cm.service_order_id = ?
	           ORDER BY cm.created_at ASC, cm.id ASC`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Comment, 0)
	for rows.Next() {
		var (
			cm       model.Comment
			userID   sql.NullInt64
			username sql.NullString
			fullName sql.NullString
		)
		if err := rows.Scan(&cm.ID, &cm.ServiceOrderID, &userID, &cm.CommentType, &cm.Content, &cm.CreatedAt,
			&username, &fullName); err != nil {
			return nil, err
		}
		if userID.Valid {
			uid := uint64(userID.Int64)
			cm.UserID = &uid
			cm.User = &model.UserSummary{ID: uid, Username: username.String, FullName: fullName.String}
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}
