package tx

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Definition describes the transactional behavior of one unit of work. The
// zero value is Required propagation with the driver's default isolation.
type Definition struct {
	Propagation Propagation   `yaml:"propagation"`
	Isolation   Isolation     `yaml:"isolation"`
	ReadOnly    bool          `yaml:"read_only"`
	Timeout     time.Duration `yaml:"timeout"`

	// RollbackFor, when non-empty, limits rollback to errors matching one of
	// its entries (errors.Is). Other errors commit.
	RollbackFor []error `yaml:"-"`
	// NoRollbackFor lists errors that commit regardless of RollbackFor.
	NoRollbackFor []error `yaml:"-"`
}

// ShouldRollback applies the rollback rules to a failed invocation.
func (d Definition) ShouldRollback(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range d.NoRollbackFor {
		if errors.Is(err, target) {
			return false
		}
	}
	if len(d.RollbackFor) == 0 {
		return true
	}
	for _, target := range d.RollbackFor {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (d Definition) txOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: d.Isolation.Level(),
		ReadOnly:  d.ReadOnly,
	}
}

func (d Definition) String() string {
	s := fmt.Sprintf("%s,%s", d.Propagation, d.Isolation)
	if d.ReadOnly {
		s += ",readOnly"
	}
	if d.Timeout > 0 {
		s += ",timeout=" + d.Timeout.String()
	}
	return s
}
