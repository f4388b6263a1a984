package school

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"

	"github.com/xraph/anvil/internal/tx"
)

const (
	teacherColumns = `id, name, department, phone, email`
	clazzColumns   = `id, name, teacher_id, student_count, description`
)

// TeacherRepository stores teachers. Queries run on the transaction in the
// context when there is one.
type TeacherRepository struct {
	DB *sqlx.DB `inject:"db"`
}

func (r *TeacherRepository) exec(ctx context.Context) tx.Executor {
	return tx.ExecutorFrom(ctx, r.DB)
}

func (r *TeacherRepository) List(ctx context.Context) ([]Teacher, error) {
	teachers := []Teacher{}
	err := r.exec(ctx).SelectContext(ctx, &teachers, `SELECT `+teacherColumns+` FROM teacher ORDER BY name`)
	return teachers, err
}

func (r *TeacherRepository) Get(ctx context.Context, id string) (*Teacher, error) {
	var t Teacher
	err := r.exec(ctx).GetContext(ctx, &t, `SELECT `+teacherColumns+` FROM teacher WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeacherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TeacherRepository) Insert(ctx context.Context, t *Teacher) error {
	_, err := r.exec(ctx).ExecContext(ctx,
		`INSERT INTO teacher (`+teacherColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.Department, t.Phone, t.Email)
	return err
}

// Update reports whether a row was changed.
func (r *TeacherRepository) Update(ctx context.Context, t *Teacher) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx,
		`UPDATE teacher SET name = $1, department = $2, phone = $3, email = $4 WHERE id = $5`,
		t.Name, t.Department, t.Phone, t.Email, t.ID)
	return affected(res, err)
}

// Delete reports whether a row was removed.
func (r *TeacherRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM teacher WHERE id = $1`, id)
	return affected(res, err)
}

// Health pings the pool.
func (r *TeacherRepository) Health(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// ClazzRepository stores classes.
type ClazzRepository struct {
	DB *sqlx.DB `inject:"db"`
}

func (r *ClazzRepository) exec(ctx context.Context) tx.Executor {
	return tx.ExecutorFrom(ctx, r.DB)
}

func (r *ClazzRepository) List(ctx context.Context) ([]Clazz, error) {
	clazzes := []Clazz{}
	err := r.exec(ctx).SelectContext(ctx, &clazzes, `SELECT `+clazzColumns+` FROM clazz ORDER BY name`)
	return clazzes, err
}

func (r *ClazzRepository) ListByTeacher(ctx context.Context, teacherID string) ([]Clazz, error) {
	clazzes := []Clazz{}
	err := r.exec(ctx).SelectContext(ctx, &clazzes,
		`SELECT `+clazzColumns+` FROM clazz WHERE teacher_id = $1 ORDER BY name`, teacherID)
	return clazzes, err
}

func (r *ClazzRepository) Get(ctx context.Context, id string) (*Clazz, error) {
	var c Clazz
	err := r.exec(ctx).GetContext(ctx, &c, `SELECT `+clazzColumns+` FROM clazz WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrClazzNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClazzRepository) Insert(ctx context.Context, c *Clazz) error {
	_, err := r.exec(ctx).ExecContext(ctx,
		`INSERT INTO clazz (`+clazzColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.TeacherID, c.StudentCount, c.Description)
	return err
}

func (r *ClazzRepository) Update(ctx context.Context, c *Clazz) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx,
		`UPDATE clazz SET name = $1, teacher_id = $2, description = $3 WHERE id = $4`,
		c.Name, c.TeacherID, c.Description, c.ID)
	return affected(res, err)
}

func (r *ClazzRepository) SetStudentCount(ctx context.Context, id string, count int) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx, `UPDATE clazz SET student_count = $1 WHERE id = $2`, count, id)
	return affected(res, err)
}

// ReassignTeacher moves every class of from to to and returns how many
// moved. An empty to leaves the classes without a teacher.
func (r *ClazzRepository) ReassignTeacher(ctx context.Context, from, to string) (int64, error) {
	res, err := r.exec(ctx).ExecContext(ctx, `UPDATE clazz SET teacher_id = $1 WHERE teacher_id = $2`, to, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ClazzRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM clazz WHERE id = $1`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
