package school

import (
	"github.com/jmoiron/sqlx"

	"github.com/xraph/anvil/internal/di"
	"github.com/xraph/anvil/internal/logger"
	"github.com/xraph/anvil/internal/txproxy"
)

// Component names.
const (
	DBName                = "db"
	LoggerName            = "logger"
	TeacherRepositoryName = "teacherRepository"
	ClazzRepositoryName   = "clazzRepository"
	TeacherServiceName    = "teacherService"
	ClazzServiceName      = "clazzService"
)

// Register adds the school components to reg. Services are marked
// transactional, so a container built with a factory from BindDecorators
// hands out decorated instances.
func Register(reg *di.Registry, db *sqlx.DB, log logger.Logger) error {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	if err := di.Value(reg, DBName, db); err != nil {
		return err
	}
	if err := di.Value(reg, LoggerName, log); err != nil {
		return err
	}
	if err := di.Component[*TeacherRepository](reg, TeacherRepositoryName); err != nil {
		return err
	}
	if err := di.Component[*ClazzRepository](reg, ClazzRepositoryName); err != nil {
		return err
	}

	err := di.Provide(reg, TeacherServiceName, func(r di.Resolver) (TeacherService, error) {
		teachers, err := di.Get[*TeacherRepository](r, TeacherRepositoryName)
		if err != nil {
			return nil, err
		}
		clazzes, err := di.Get[*ClazzRepository](r, ClazzRepositoryName)
		if err != nil {
			return nil, err
		}
		return NewTeacherService(teachers, clazzes, optionalLogger(r)), nil
	},
		di.DependsOn(TeacherRepositoryName, ClazzRepositoryName),
		txproxy.Transactional(),
	)
	if err != nil {
		return err
	}

	return di.Provide(reg, ClazzServiceName, func(r di.Resolver) (ClazzService, error) {
		clazzes, err := di.Get[*ClazzRepository](r, ClazzRepositoryName)
		if err != nil {
			return nil, err
		}
		teachers, err := di.Get[TeacherService](r, TeacherServiceName)
		if err != nil {
			return nil, err
		}
		return NewClazzService(clazzes, teachers, optionalLogger(r)), nil
	},
		di.DependsOn(ClazzRepositoryName, TeacherServiceName),
		txproxy.Transactional(),
	)
}

// BindDecorators binds the generated decorators to f.
func BindDecorators(f *txproxy.Factory) {
	BindTeacherService(f)
	BindClazzService(f)
}

func optionalLogger(r di.Resolver) logger.Logger {
	log, err := di.Get[logger.Logger](r, LoggerName)
	if err != nil {
		return logger.NewNoopLogger()
	}
	return log
}
