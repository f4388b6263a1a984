package anvil

import (
	"github.com/xraph/anvil/internal/tx"
	"github.com/xraph/anvil/internal/txproxy"
	"github.com/xraph/anvil/internal/validation"
)

// Transaction types.
type (
	TransactionManager    = tx.Manager
	TransactionDefinition = tx.Definition
	TransactionStatus     = tx.Status
	TransactionStats      = tx.Stats
	TransactionOption     = tx.Option
	TxFunc                = tx.TxFunc
	Propagation           = tx.Propagation
	Isolation             = tx.Isolation
	DataSource            = tx.DataSource
	Executor              = tx.Executor
	TransactionAttributes = txproxy.Attributes
	AttributeSource       = txproxy.AttributeSource
	Interceptor           = txproxy.Interceptor
	TransactionalFactory  = txproxy.Factory
	TransactionalOption   = txproxy.Option
)

// Propagation behaviors.
const (
	Required     = tx.Required
	RequiresNew  = tx.RequiresNew
	Supports     = tx.Supports
	NotSupported = tx.NotSupported
	Never        = tx.Never
	Mandatory    = tx.Mandatory
)

// Isolation levels.
const (
	IsolationDefault = tx.IsolationDefault
	ReadUncommitted  = tx.ReadUncommitted
	ReadCommitted    = tx.ReadCommitted
	RepeatableRead   = tx.RepeatableRead
	Serializable     = tx.Serializable
)

// ErrUnexpectedRollback is returned by a commit that found the transaction
// marked rollback-only.
var ErrUnexpectedRollback = tx.ErrUnexpectedRollback

// Transaction helpers.
var (
	NewTransactionManager = tx.NewManager
	NewTransactionMetrics = tx.NewMetrics
	WithTxLogger          = tx.WithLogger
	WithTxMetrics         = tx.WithMetrics
	WithAcquireTimeout    = tx.WithAcquireTimeout
	WithDefaultTimeout    = tx.WithDefaultTimeout
	CurrentTransaction    = tx.Current
	InTransaction         = tx.InTransaction
	TransactionDepth      = tx.Depth
	DetachTransaction     = tx.Detach
	ExecutorFrom          = tx.ExecutorFrom
	ParsePropagation      = tx.ParsePropagation
	ParseIsolation        = tx.ParseIsolation
)

// Declarative transaction helpers.
var (
	NewTransactionalFactory = txproxy.NewFactory
	NewInterceptor          = txproxy.NewInterceptor
	Transactional           = txproxy.Transactional
	TransactionalForType    = txproxy.ForType
	AttributesOf            = txproxy.AttributesOf
	WithInterceptorLogger   = txproxy.WithLogger
	WithTracerProvider      = txproxy.WithTracerProvider
	WithArgumentValidator   = txproxy.WithValidator
)

// Validator checks validate struct tags on service input.
type Validator = validation.Validator

// Validation helpers.
var (
	NewValidator     = validation.New
	DefaultValidator = validation.Default
)

// BindTransactional registers the decorator constructor for interface I.
func BindTransactional[I any](f *TransactionalFactory, ctor func(target I, ic *Interceptor) I) {
	txproxy.Bind(f, ctor)
}
