package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/hospmaint/os-manager/internal/model"
)

// OrderRepo provides CRUD operations for service orders. Orders
// returned by the read operations are hydrated: the comment timeline
// is attached in createdAt ascending order and the assigned/creating
// users are embedded as lightweight summaries. All timestamps are
// stored in UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// selectOrder is the base projection shared by every order read. The
// two LEFT JOINs pull the user summaries in the same round trip.
const selectOrder = `SELECT o.id, o.os_number, o.client_name, o.equipment_name, o.equipment_class,
       o.serial_number, o.accessories, o.has_previous_defect, o.previous_defect_description,
       o.optional_description, o.priority, o.current_status,
       o.assigned_to_user_id, o.created_by_user_id,
       o.created_at, o.updated_at, o.completed_at,
       a.username, a.full_name, a.role,
       c.username, c.full_name
FROM service_orders o
LEFT JOIN users a ON a.id = o.assigned_to_user_id
LEFT JOIN users c ON c.id = o.created_by_user_id`

// scanOrder reads one row of the selectOrder projection.
func scanOrder(sc interface{ Scan(...any) error }) (*model.ServiceOrder, error) {
	var (
		o                    model.ServiceOrder
		assignedID           sql.NullInt64
		createdByID          sql.NullInt64
		completedAt          sql.NullTime
		aUser, aName, aRole  sql.NullString
		cUser, cName         sql.NullString
	)
	err := sc.Scan(
		&o.ID, &o.OSNumber, &o.ClientName, &o.EquipmentName, &o.EquipmentClass,
		&o.SerialNumber, &o.Accessories, &o.HasPreviousDefect, &o.PreviousDefectDescription,
		&o.OptionalDescription, &o.Priority, &o.CurrentStatus,
		&assignedID, &createdByID,
		&o.CreatedAt, &o.UpdatedAt, &completedAt,
		&aUser, &aName, &aRole,
		&cUser, &cName,
	)
	if err != nil {
		return nil, err
	}
	if assignedID.Valid {
		id := uint64(assignedID.Int64)
		o.AssignedToUserID = &id
		o.AssignedToUser = &model.UserSummary{ID: id, Username: aUser.String, FullName: aName.String, Role: aRole.String}
	}
	if createdByID.Valid {
		id := uint64(createdByID.Int64)
		o.CreatedByUserID = &id
		o.CreatedByUser = &model.UserSummary{ID: id, Username: cUser.String, FullName: cName.String}
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		o.CompletedAt = &t
	}
	o.Comments = []model.Comment{}
	return &o, nil
}

// Insert persists a new order and reloads the stored row so the
// caller gets the hydrated form back, including generated ID and any
// column defaults. A uniqueness violation on os_number is reported
// as ErrDuplicate.
func (r *OrderRepo) Insert(ctx context.Context, o *model.ServiceOrder) error {
	const q = `INSERT INTO service_orders
		(os_number, client_name, equipment_name, equipment_class, serial_number, accessories,
		 has_previous_defect, previous_defect_description, optional_description,
		 priority, current_status, assigned_to_user_id, created_by_user_id,
		 created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		o.OSNumber, o.ClientName, o.EquipmentName, o.EquipmentClass, o.SerialNumber, o.Accessories,
		o.HasPreviousDefect, o.PreviousDefectDescription, o.OptionalDescription,
		o.Priority, o.CurrentStatus, o.AssignedToUserID, o.CreatedByUserID,
		o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		return mapMySQLError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*o = *stored
	return nil
}

// GetByID returns the hydrated order with the given id, or
// ErrNotFound when no such row exists.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.ServiceOrder, error) {
	row := r.db.QueryRowContext(ctx, selectOrder+` WHERE o.id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, []*model.ServiceOrder{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders matching the filter, hydrated. When no status
// filter is given the open board is assumed and completed orders are
// excluded. The SQL orders by the fixed priority rank with createdAt
// as tie-break; the lifecycle engine re-sorts in memory as well, so
// this ordering is a convenience rather than a contract.
func (r *OrderRepo) List(ctx context.Context, f model.OrderFilter) ([]model.ServiceOrder, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "o.current_status = ?")
		args = append(args, f.Status)
	} else {
		where = append(where, "o.current_status <> ?")
		args = append(args, model.StatusCompleted)
	}
	if f.Priority != "" {
		where = append(where, "o.priority = ?")
		args = append(args, f.Priority)
	}
	if f.ClientName != "" {
		where = append(where, "LOWER(o.client_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.ClientName)+"%")
	}
	if f.EquipmentName != "" {
		where = append(where, "LOWER(o.equipment_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.EquipmentName)+"%")
	}
	q := selectOrder + " WHERE " + strings.Join(where, " AND ") +
		` ORDER BY FIELD(o.priority, 'URGENT', 'HIGH', 'MEDIUM', 'LOW'), o.created_at ASC`
	return r.queryOrders(ctx, q, args...)
}

// ListCompleted returns completed orders, optionally bounded by the
// completion timestamp, newest first. Filter fields constrain the same
// way they do on List; a status filter other than COMPLETED can only
// produce an empty result here.
func (r *OrderRepo) ListCompleted(ctx context.Context, dr model.DateRange, f model.OrderFilter) ([]model.ServiceOrder, error) {
	where := []string{"o.current_status = ?", "o.completed_at IS NOT NULL"}
	args := []any{model.StatusCompleted}
	if dr.Start != nil {
		where = append(where, "o.completed_at >= ?")
		args = append(args, dr.Start.UTC())
	}
	if dr.End != nil {
		where = append(where, "o.completed_at <= ?")
		args = append(args, dr.End.UTC())
	}
	if f.Status != "" && f.Status != model.StatusCompleted {
		where = append(where, "o.current_status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		where = append(where, "o.priority = ?")
		args = append(args, f.Priority)
	}
	if f.ClientName != "" {
		where = append(where, "LOWER(o.client_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.ClientName)+"%")
	}
	if f.EquipmentName != "" {
		where = append(where, "LOWER(o.equipment_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.EquipmentName)+"%")
	}
	q := selectOrder + " WHERE " + strings.Join(where, " AND ") + ` ORDER BY o.completed_at DESC`
	return r.queryOrders(ctx, q, args...)
}

// Update applies a partial update. Only fields present in the delta
// are written. Returns ErrNotFound when the id does not exist and
// ErrDuplicate when a changed os_number collides.
func (r *OrderRepo) Update(ctx context.Context, id uint64, d model.OrderDelta) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if d.OSNumber != nil {
		set("os_number", *d.OSNumber)
	}
	if d.ClientName != nil {
		set("client_name", *d.ClientName)
	}
	if d.EquipmentName != nil {
		set("equipment_name", *d.EquipmentName)
	}
	if d.EquipmentClass != nil {
		set("equipment_class", *d.EquipmentClass)
	}
	if d.SerialNumber != nil {
		set("serial_number", *d.SerialNumber)
	}
	if d.Accessories != nil {
		set("accessories", *d.Accessories)
	}
	if d.HasPreviousDefect != nil {
		set("has_previous_defect", *d.HasPreviousDefect)
	}
	if d.PreviousDefectDescription != nil {
		set("previous_defect_description", *d.PreviousDefectDescription)
	}
	if d.OptionalDescription != nil {
		set("optional_description", *d.OptionalDescription)
	}
	if d.Priority != nil {
		set("priority", *d.Priority)
	}
	if d.CurrentStatus != nil {
		set("current_status", *d.CurrentStatus)
	}
	if d.ClearAssigned {
		sets = append(sets, "assigned_to_user_id = NULL")
	} else if d.AssignedToUserID != nil {
		set("assigned_to_user_id", *d.AssignedToUserID)
	}
	if d.ClearCompleted {
		sets = append(sets, "completed_at = NULL")
	} else if d.CompletedAt != nil {
		set("completed_at", d.CompletedAt.UTC())
	}
	ts := d.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	set("updated_at", ts.UTC())

	q := "UPDATE service_orders SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapMySQLError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Zero affected rows is ambiguous in MySQL (missing row or
		// identical values), so confirm existence explicitly.
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM service_orders WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Touch stamps updated_at without changing anything else. The comment
// ledger uses it so a fresh comment bumps the parent order.
func (r *OrderRepo) Touch(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE service_orders SET updated_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}

// FindByNumberOrTag resolves the dual-key identity used by the legacy
// importer: an order matches either by exact OS number or by the
// origin tag embedded in its optional description. Returns the id and
// current status of the match, or ErrNotFound.
func (r *OrderRepo) FindByNumberOrTag(ctx context.Context, osNumber, tag string) (uint64, model.Status, error) {
	const q = `SELECT id, current_status FROM service_orders
		WHERE os_number = ? OR optional_description LIKE ? LIMIT 1`
	var (
		id     uint64
		status model.Status
	)
	err := r.db.QueryRowContext(ctx, q, osNumber, "%"+tag+"%").Scan(&id, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", err
	}
	return id, status, nil
}

// queryOrders runs a selectOrder-shaped query and hydrates the
// comment timelines of every returned order in a single extra query.
func (r *OrderRepo) queryOrders(ctx context.Context, q string, args ...any) ([]model.ServiceOrder, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ptrs := make([]*model.ServiceOrder, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.ServiceOrder, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out, nil
}

// attachComments loads the timelines for all given orders with one
// IN-clause query and distributes them by order id.
func (r *OrderRepo) attachComments(ctx context.Context, orders []*model.ServiceOrder) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]*model.ServiceOrder, len(orders))
	ids := make([]any, 0, len(orders))
	ph := make([]string, 0, len(orders))
	for _, o := range orders {
		index[o.ID] = o
		ids = append(ids, o.ID)
		ph = append(ph, "?")
	}
	q := `SELECT cm.id, cm.service_order_id, cm.user_id, cm.comment_type, cm.content, cm.created_at,
	             u.username, u.full_name
	      FROM comments cm
	      LEFT JOIN users u ON u.id = cm.user_id
	      WHERE cm.service_order_id IN (` + strings.Join(ph, ",") + `)
	      ORDER BY cm.created_at ASC, cm.id ASC`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cm       model.Comment
			userID   sql.NullInt64
			username sql.NullString
			fullName sql.NullString
		)
		if err := rows.Scan(&cm.ID, &cm.ServiceOrderID, &userID, &cm.CommentType, &cm.Content, &cm.CreatedAt,
			&username, &fullName); err != nil {
			return err
		}
		if userID.Valid {
			uid := uint64(userID.Int64)
			cm.UserID = &uid
			cm.User = &model.UserSummary{ID: uid, Username: username.String, FullName: fullName.String}
		}
		if o, ok := index[cm.ServiceOrderID]; ok {
			o.Comments = append(o.Comments, cm)
		}
	}
	return rows.Err()
}

// mapMySQLError converts driver-level uniqueness violations into the
// domain sentinel so callers can surface "duplicate OS number"-style
// messages; everything else passes through wrapped.
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
	}
	return err
}
