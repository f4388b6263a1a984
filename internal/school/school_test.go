package school

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xraph/anvil/internal/di"
	anvilerrors "github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/tx"
	"github.com/xraph/anvil/internal/txproxy"
	"github.com/xraph/anvil/internal/validation"
)

var errBoom = errors.New("connection reset")

type harness struct {
	mock      sqlmock.Sqlmock
	manager   *tx.Manager
	container di.Container
	teachers  TeacherService
	clazzes   ClazzService
}

func newHarness(t *testing.T, opts ...txproxy.Option) *harness {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, "sqlmock")

	log, _ := logger.NewTestLogger(zapcore.DebugLevel)
	manager := tx.NewManager(db, tx.WithLogger(log))
	factory := txproxy.NewFactory(manager, append([]txproxy.Option{txproxy.WithLogger(log)}, opts...)...)
	BindDecorators(factory)

	reg := di.NewRegistry()
	require.NoError(t, Register(reg, db, log))

	c := di.New(reg, di.WithPostProcessor(factory), di.WithLogger(log))
	require.NoError(t, c.Start(context.Background()))

	t.Cleanup(func() {
		assert.NoError(t, c.Close(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	return &harness{
		mock:      mock,
		manager:   manager,
		container: c,
		teachers:  di.MustByType[TeacherService](c),
		clazzes:   di.Must[ClazzService](c, ClazzServiceName),
	}
}

func teacherRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "department", "phone", "email"})
}

func clazzRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "teacher_id", "student_count", "description"})
}

func TestModule_ServicesAreDecorated(t *testing.T) {
	h := newHarness(t)

	assert.IsType(t, &txTeacherService{}, h.teachers)
	assert.IsType(t, &txClazzService{}, h.clazzes)

	repo, err := di.Get[*TeacherRepository](h.container, TeacherRepositoryName)
	require.NoError(t, err)
	assert.NotNil(t, repo.DB)

	info := h.container.Inspect(ClazzServiceName)
	assert.Equal(t, []string{ClazzRepositoryName, TeacherServiceName}, info.Dependencies)
	assert.Equal(t, "true", info.Metadata[txproxy.MetadataTransactional])

	assert.NoError(t, h.container.Health(context.Background()))
}

func TestTeacherService_DeleteRollsBackPartialWrite(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectExec("UPDATE clazz SET teacher_id").
		WithArgs("", "t-404").
		WillReturnResult(sqlmock.NewResult(0, 2))
	h.mock.ExpectExec("DELETE FROM teacher").
		WithArgs("t-404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectRollback()

	err := h.teachers.Delete(context.Background(), "t-404")

	require.Error(t, err)
	assert.True(t, err == ErrTeacherNotFound, "caller must observe the original error, got %v", err)

	stats := h.manager.Stats()
	assert.Equal(t, int64(1), stats.RolledBack)
	assert.Equal(t, int64(0), stats.Committed)
	assert.Equal(t, int64(0), stats.Active)
}

func TestTeacherService_DeleteCommits(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectExec("UPDATE clazz SET teacher_id").WithArgs("", "t1").WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("DELETE FROM teacher").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	require.NoError(t, h.teachers.Delete(context.Background(), "t1"))
	assert.Equal(t, int64(1), h.manager.Stats().Committed)
}

func TestTeacherService_DeleteDriverErrorRollsBack(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectExec("UPDATE clazz SET teacher_id").WillReturnError(errBoom)
	h.mock.ExpectRollback()

	err := h.teachers.Delete(context.Background(), "t1")

	assert.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "release classes")
}

func TestTeacherService_CreateValidates(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	err := h.teachers.Create(context.Background(), &Teacher{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, anvilerrors.IsValidationError(err))
	assert.ErrorContains(t, err, "name is required")
}

func TestClazzService_CreateRejectsNegativeStudentCount(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	err := h.clazzes.Create(context.Background(), &Clazz{Name: "c", StudentCount: -3})

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorContains(t, err, "studentCount must be at least 0")
	assert.Equal(t, int64(1), h.manager.Stats().RolledBack)
}

func TestServices_ValidateWithoutDecorators(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, "sqlmock")

	teachers := NewTeacherService(&TeacherRepository{DB: db}, &ClazzRepository{DB: db}, nil)
	clazzes := NewClazzService(&ClazzRepository{DB: db}, teachers, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		msg  string
	}{
		{"NilTeacher", func() error { return teachers.Create(ctx, nil) }, "value is required"},
		{"BadEmail", func() error { return teachers.Create(ctx, &Teacher{Name: "Ada", Email: "ada"}) }, "email must be a valid email address"},
		{"UpdateWithoutID", func() error { return teachers.Update(ctx, &Teacher{Name: "Ada"}) }, "teacher id is required"},
		{"BlankDeleteID", func() error { return teachers.Delete(ctx, " ") }, "teacher id is required"},
		{"ReassignWithoutTarget", func() error { _, err := teachers.Reassign(ctx, "t1", ""); return err }, "to is required"},
		{"NegativeCount", func() error { return clazzes.Create(ctx, &Clazz{Name: "c", StudentCount: -3}) }, "studentCount must be at least 0"},
		{"BlankClassName", func() error { return clazzes.Update(ctx, &Clazz{ID: "c1", Name: ""}) }, "name is required"},
		{"BlankClassID", func() error { _, err := clazzes.Get(ctx, ""); return err }, "class id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorContains(t, err, tt.msg)
		})
	}

	// nothing reached the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModule_ValidatingInterceptorRejectsBeforeBegin(t *testing.T) {
	h := newHarness(t, txproxy.WithValidator(validation.Default()))

	err := h.clazzes.Create(context.Background(), &Clazz{Name: "c", StudentCount: -3})
	require.Error(t, err)
	assert.True(t, anvilerrors.IsValidationError(err))
	assert.ErrorContains(t, err, "studentCount must be at least 0")

	err = h.teachers.Update(context.Background(), &Teacher{ID: "t1"})
	assert.True(t, anvilerrors.IsValidationError(err))
	assert.Equal(t, int64(0), h.manager.Stats().Begun)

	h.mock.ExpectBegin()
	h.mock.ExpectExec("INSERT INTO teacher").
		WithArgs(sqlmock.AnyArg(), "Ada", "", "", "ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	require.NoError(t, h.teachers.Create(context.Background(), &Teacher{Name: "Ada", Email: "ada@example.com"}))
	assert.Equal(t, int64(1), h.manager.Stats().Committed)
}

func TestTeacherService_CreateAssignsID(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectExec("INSERT INTO teacher").
		WithArgs(sqlmock.AnyArg(), "Ada", "Maths", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	teacher := &Teacher{Name: "Ada", Department: "Maths"}
	require.NoError(t, h.teachers.Create(context.Background(), teacher))
	assert.Len(t, teacher.ID, 36)
}

func TestTeacherService_ListOutsideTransaction(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectQuery("SELECT .* FROM teacher ORDER BY name").
		WillReturnRows(teacherRows().AddRow("t1", "Ada", "Maths", "", "").AddRow("t2", "Grace", "CS", "", ""))

	teachers, err := h.teachers.List(context.Background())

	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "Grace", teachers[1].Name)

	stats := h.manager.Stats()
	assert.Equal(t, int64(1), stats.Begun, "SUPPORTS without a caller transaction runs non-transactionally")
	assert.Equal(t, int64(0), stats.Committed)
}

func TestTeacherService_Reassign(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("SELECT .* FROM teacher WHERE id").WithArgs("t1").
		WillReturnRows(teacherRows().AddRow("t1", "Ada", "", "", ""))
	h.mock.ExpectQuery("SELECT .* FROM teacher WHERE id").WithArgs("t2").
		WillReturnRows(teacherRows().AddRow("t2", "Grace", "", "", ""))
	h.mock.ExpectExec("UPDATE clazz SET teacher_id").WithArgs("t2", "t1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	h.mock.ExpectCommit()

	moved, err := h.teachers.Reassign(context.Background(), "t1", "t2")

	require.NoError(t, err)
	assert.Equal(t, 3, moved)
}

func TestClazzService_CreateJoinsTeacherLookup(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("SELECT .* FROM teacher WHERE id").WithArgs("t1").
		WillReturnRows(teacherRows().AddRow("t1", "Ada", "", "", ""))
	h.mock.ExpectExec("INSERT INTO clazz").
		WithArgs(sqlmock.AnyArg(), "Algebra", "t1", 0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	clazz := &Clazz{Name: "Algebra", TeacherID: "t1"}
	require.NoError(t, h.clazzes.Create(context.Background(), clazz))
	assert.NotEmpty(t, clazz.ID)

	stats := h.manager.Stats()
	assert.Equal(t, int64(1), stats.Begun)
	assert.Equal(t, int64(1), stats.Joined)
	assert.Equal(t, int64(1), stats.Committed)
}

func TestClazzService_CreateUnknownTeacherRollsBack(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("SELECT .* FROM teacher WHERE id").WithArgs("ghost").
		WillReturnRows(teacherRows())
	h.mock.ExpectRollback()

	err := h.clazzes.Create(context.Background(), &Clazz{Name: "Algebra", TeacherID: "ghost"})

	assert.True(t, err == ErrTeacherNotFound, "got %v", err)
	assert.Equal(t, int64(1), h.manager.Stats().RolledBack)
}

func TestClazzService_DeleteRefusesClassWithStudents(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("SELECT .* FROM clazz WHERE id").WithArgs("c1").
		WillReturnRows(clazzRows().AddRow("c1", "Algebra", "t1", 3, ""))
	h.mock.ExpectRollback()

	err := h.clazzes.Delete(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrClazzHasStudents)
}

func TestClazzService_AdjustStudentCountFloorsAtZero(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("SELECT .* FROM clazz WHERE id").WithArgs("c1").
		WillReturnRows(clazzRows().AddRow("c1", "Algebra", "t1", 2, ""))
	h.mock.ExpectExec("UPDATE clazz SET student_count").WithArgs(0, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	count, err := h.clazzes.AdjustStudentCount(context.Background(), "c1", -5)

	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClazzService_CallerTransactionSpansServices(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectExec("INSERT INTO teacher").WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectQuery("SELECT .* FROM teacher WHERE id").
		WillReturnRows(teacherRows().AddRow("t9", "Ada", "", "", ""))
	h.mock.ExpectExec("INSERT INTO clazz").WillReturnError(errBoom)
	h.mock.ExpectRollback()

	err := h.manager.Execute(context.Background(), tx.Definition{}, func(ctx context.Context) error {
		teacher := &Teacher{ID: "t9", Name: "Ada"}
		if err := h.teachers.Create(ctx, teacher); err != nil {
			return err
		}
		return h.clazzes.Create(ctx, &Clazz{Name: "Algebra", TeacherID: teacher.ID})
	})

	assert.ErrorIs(t, err, errBoom)
	stats := h.manager.Stats()
	assert.Equal(t, int64(1), stats.Begun)
	assert.Equal(t, int64(3), stats.Joined)
	assert.Equal(t, int64(1), stats.RolledBack)
}

func TestRepositories_NotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, "sqlmock")

	mock.ExpectQuery("SELECT .* FROM teacher WHERE id").WillReturnRows(teacherRows())
	mock.ExpectQuery("SELECT .* FROM clazz WHERE id").WillReturnRows(clazzRows())

	_, err = (&TeacherRepository{DB: db}).Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTeacherNotFound)

	_, err = (&ClazzRepository{DB: db}).Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClazzNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS teacher").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(sqlDB, "sqlmock")))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errBoom)
	assert.ErrorIs(t, Migrate(context.Background(), sqlx.NewDb(sqlDB, "sqlmock")), errBoom)

	assert.NoError(t, mock.ExpectationsWereMet())
}
