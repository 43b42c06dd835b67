// Package repos contains the entity-specific repositories: thin wrappers
// adding domain query methods on top of the generic repository.
package repos

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/repository"
)

// Plan names accepted on a user account.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// User is an account record. Users are soft-deleted so accounts can be
// restored and deactivated accounts stay out of every normal read.
type User struct {
	repository.Model `msgpack:",inline"`

	Email string `msgpack:"email" json:"email"`
	Name  string `msgpack:"name" json:"name"`
	Plan  string `msgpack:"plan" json:"plan"`
}

// Validate declares the user schema; the repository runs it on every write.
func (u *User) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Email, validation.Required, is.Email),
		validation.Field(&u.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&u.Plan, validation.Required, validation.In(PlanFree, PlanPro, PlanEnterprise)),
	)
}

// Users provides query access to the users collection.
type Users struct {
	repository.Repository[*User]
}

// UserConfig returns the repository binding for the users collection.
func UserConfig() repository.Config[*User] {
	return repository.Config[*User]{
		Collection: "users",
		Schema:     repository.Rules[*User](),
		Handlers:   repository.ModelHandlers[*User]{NewRecord: func() *User { return &User{} }},
		SoftDelete: true,
	}
}

// NewUsers builds a Users repository over the given store.
func NewUsers(store docstore.Store) (*Users, error) {
	base, err := repository.New(store, UserConfig())
	if err != nil {
		return nil, err
	}
	return &Users{Repository: base}, nil
}

// WrapUsers builds a Users repository around an existing generic
// repository, typically a cached one.
func WrapUsers(base repository.Repository[*User]) *Users {
	return &Users{Repository: base}
}

// FindByEmail resolves a user by email address.
func (u *Users) FindByEmail(ctx context.Context, email string) (*User, bool, error) {
	return u.FindOne(ctx, docstore.Filter{"email": email})
}

// FindByPlan lists users on the given plan, oldest first.
func (u *Users) FindByPlan(ctx context.Context, plan string) ([]*User, error) {
	return u.Find(ctx, docstore.Filter{"plan": plan}, repository.WithSort("createdAt", false))
}

// ChangePlan moves a user to a different plan.
func (u *Users) ChangePlan(ctx context.Context, id, plan string) (*User, bool, error) {
	return u.UpdateOne(ctx, id, docstore.Document{"plan": plan})
}

// CountByPlan reports how many active users sit on each plan.
func (u *Users) CountByPlan(ctx context.Context) (map[string]int64, error) {
	docs, err := u.Aggregate(ctx, docstore.Pipeline{
		docstore.MatchStage{Filter: docstore.Filter{"deletedAt": docstore.Exists(false)}},
		docstore.GroupStage{By: "plan"},
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(docs))
	for _, doc := range docs {
		plan, _ := doc["_id"].(string)
		out[plan] = asInt64(doc["count"])
	}
	return out, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
