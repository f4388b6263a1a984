package school

//go:generate go run github.com/xraph/anvil/cmd/anvil-txgen --source service.go --interface TeacherService --interface ClazzService --output service_tx.go

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/tx"
	"github.com/xraph/anvil/internal/txproxy"
	"github.com/xraph/anvil/internal/validation"
)

// TeacherService manages teachers.
type TeacherService interface {
	List(ctx context.Context) ([]Teacher, error)
	Get(ctx context.Context, id string) (*Teacher, error)
	Create(ctx context.Context, t *Teacher) error
	Update(ctx context.Context, t *Teacher) error
	// Delete releases the teacher's classes and removes the teacher.
	Delete(ctx context.Context, id string) error
	// Reassign moves every class of from to to.
	Reassign(ctx context.Context, from, to string) (int, error)
}

// ClazzService manages classes.
type ClazzService interface {
	List(ctx context.Context) ([]Clazz, error)
	Get(ctx context.Context, id string) (*Clazz, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]Clazz, error)
	Create(ctx context.Context, c *Clazz) error
	Update(ctx context.Context, c *Clazz) error
	Delete(ctx context.Context, id string) error
	// AdjustStudentCount adds delta to the student count, never going below
	// zero, and returns the new count.
	AdjustStudentCount(ctx context.Context, id string, delta int) (int, error)
}

var (
	readOnly = tx.Definition{Propagation: tx.Supports, ReadOnly: true}
	write    = tx.Definition{Propagation: tx.Required}
)

var validate = validation.Default()

// checkInput validates the tags of v. Failures match ErrInvalidInput.
func checkInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func checkID(name, id string) error {
	if err := validate.Var(name, id, "required,notblank"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

type teacherService struct {
	teachers *TeacherRepository
	clazzes  *ClazzRepository
	log      logger.Logger
}

// NewTeacherService returns the undecorated service.
func NewTeacherService(teachers *TeacherRepository, clazzes *ClazzRepository, log logger.Logger) TeacherService {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &teacherService{teachers: teachers, clazzes: clazzes, log: log.Named("teachers")}
}

func (s *teacherService) TransactionAttributes() txproxy.Attributes {
	return txproxy.Attributes{}.
		Method("List", readOnly).
		Method("Get", readOnly).
		Method("Create", write).
		Method("Update", write).
		Method("Delete", write).
		Method("Reassign", write)
}

func (s *teacherService) List(ctx context.Context) ([]Teacher, error) {
	return s.teachers.List(ctx)
}

func (s *teacherService) Get(ctx context.Context, id string) (*Teacher, error) {
	if err := checkID("teacher id", id); err != nil {
		return nil, err
	}
	return s.teachers.Get(ctx, id)
}

func (s *teacherService) Create(ctx context.Context, t *Teacher) error {
	if err := checkInput(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.teachers.Insert(ctx, t); err != nil {
		return fmt.Errorf("insert teacher: %w", err)
	}
	s.log.Info("teacher created", logger.String("teacher_id", t.ID))
	return nil
}

func (s *teacherService) Update(ctx context.Context, t *Teacher) error {
	if err := checkInput(t); err != nil {
		return err
	}
	if err := checkID("teacher id", t.ID); err != nil {
		return err
	}
	ok, err := s.teachers.Update(ctx, t)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	if !ok {
		return ErrTeacherNotFound
	}
	return nil
}

func (s *teacherService) Delete(ctx context.Context, id string) error {
	if err := checkID("teacher id", id); err != nil {
		return err
	}

	released, err := s.clazzes.ReassignTeacher(ctx, id, "")
	if err != nil {
		return fmt.Errorf("release classes: %w", err)
	}

	ok, err := s.teachers.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	if !ok {
		return ErrTeacherNotFound
	}

	s.log.Info("teacher deleted",
		logger.String("teacher_id", id),
		logger.Int64("classes_released", released),
	)
	return nil
}

func (s *teacherService) Reassign(ctx context.Context, from, to string) (int, error) {
	if err := checkID("from", from); err != nil {
		return 0, err
	}
	if err := checkID("to", to); err != nil {
		return 0, err
	}
	for _, id := range []string{from, to} {
		if _, err := s.teachers.Get(ctx, id); err != nil {
			return 0, err
		}
	}

	moved, err := s.clazzes.ReassignTeacher(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("reassign classes: %w", err)
	}
	return int(moved), nil
}

type clazzService struct {
	clazzes  *ClazzRepository
	teachers TeacherService
	log      logger.Logger
}

// NewClazzService returns the undecorated service. Teacher lookups go
// through teachers, so a decorated TeacherService joins the caller's
// transaction.
func NewClazzService(clazzes *ClazzRepository, teachers TeacherService, log logger.Logger) ClazzService {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &clazzService{clazzes: clazzes, teachers: teachers, log: log.Named("classes")}
}

func (s *clazzService) TransactionAttributes() txproxy.Attributes {
	return txproxy.Attributes{}.
		Method("List", readOnly).
		Method("Get", readOnly).
		Method("ListByTeacher", readOnly).
		Method("Create", write).
		Method("Update", write).
		Method("Delete", write).
		Method("AdjustStudentCount", write)
}

func (s *clazzService) List(ctx context.Context) ([]Clazz, error) {
	return s.clazzes.List(ctx)
}

func (s *clazzService) Get(ctx context.Context, id string) (*Clazz, error) {
	if err := checkID("class id", id); err != nil {
		return nil, err
	}
	return s.clazzes.Get(ctx, id)
}

func (s *clazzService) ListByTeacher(ctx context.Context, teacherID string) ([]Clazz, error) {
	if err := checkID("teacher id", teacherID); err != nil {
		return nil, err
	}
	return s.clazzes.ListByTeacher(ctx, teacherID)
}

func (s *clazzService) Create(ctx context.Context, c *Clazz) error {
	if err := s.validate(ctx, c); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.clazzes.Insert(ctx, c); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

func (s *clazzService) Update(ctx context.Context, c *Clazz) error {
	if err := checkInput(c); err != nil {
		return err
	}
	if err := checkID("class id", c.ID); err != nil {
		return err
	}
	if _, err := s.clazzes.Get(ctx, c.ID); err != nil {
		return err
	}
	if err := s.validate(ctx, c); err != nil {
		return err
	}
	ok, err := s.clazzes.Update(ctx, c)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if !ok {
		return ErrClazzNotFound
	}
	return nil
}

func (s *clazzService) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.StudentCount > 0 {
		return ErrClazzHasStudents
	}
	ok, err := s.clazzes.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if !ok {
		return ErrClazzNotFound
	}
	return nil
}

func (s *clazzService) AdjustStudentCount(ctx context.Context, id string, delta int) (int, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	count := max(0, c.StudentCount+delta)
	if _, err := s.clazzes.SetStudentCount(ctx, id, count); err != nil {
		return 0, fmt.Errorf("update student count: %w", err)
	}
	return count, nil
}

// validate checks c's tags and that its teacher, if any, exists.
func (s *clazzService) validate(ctx context.Context, c *Clazz) error {
	if err := checkInput(c); err != nil {
		return err
	}
	if c.TeacherID == "" {
		return nil
	}
	_, err := s.teachers.Get(ctx, c.TeacherID)
	return err
}
