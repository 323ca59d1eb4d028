package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/setoff/internal/domain/shared"
	"gorm.io/gorm"
)

// translate maps driver errors onto the domain taxonomy. Record-not-found
// becomes a NotFoundError for resource/id, unique violations become
// ErrAlreadyExists and everything else is an InfrastructureError.
func translate(op, resource string, id fmt.Stringer, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", resource, shared.ErrAlreadyExists)
	}
	return shared.WrapInfrastructure(op, err)
}

// wrap is translate for statements that cannot miss a row
func wrap(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, shared.ErrAlreadyExists)
	}
	return shared.WrapInfrastructure(op, err)
}

// key adapts a composite key to the fmt.Stringer taken by the error constructors
type key string

func (k key) String() string { return string(k) }
