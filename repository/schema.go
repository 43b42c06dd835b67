package repository

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Schema validates a record before it is persisted. Every write funnels
// through the repository's bound schema, so no record reachable through a
// repository violates its declared shape.
type Schema[T any] interface {
	Validate(ctx context.Context, record T) error
}

// SchemaFunc adapts a plain function to the Schema interface.
type SchemaFunc[T any] func(ctx context.Context, record T) error

func (f SchemaFunc[T]) Validate(ctx context.Context, record T) error {
	return f(ctx, record)
}

// Rules returns a Schema backed by the record's own ozzo-validation
// rules. Records implement validation.Validatable (or the context-aware
// variant) by declaring field rules with validation.ValidateStruct;
// records that implement neither pass validation untouched.
func Rules[T any]() Schema[T] {
	return SchemaFunc[T](func(ctx context.Context, record T) error {
		switch v := any(record).(type) {
		case validation.ValidatableWithContext:
			return v.ValidateWithContext(ctx)
		case validation.Validatable:
			return v.Validate()
		default:
			return nil
		}
	})
}

// Schemaless returns a Schema with no validation capability. Intended
// for lightweight test doubles; production repositories bind Rules.
func Schemaless[T any]() Schema[T] {
	return SchemaFunc[T](func(context.Context, T) error { return nil })
}
