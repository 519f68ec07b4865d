package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-lifeline/types"
)

type UserRepository struct {
	client *firestore.Client
}

func NewUserRepository(client *firestore.Client) *UserRepository {
	return &UserRepository{client: client}
}

func (r *UserRepository) Get(ctx context.Context, uid string) (types.User, error) {
	snap, err := r.client.Collection(types.CollectionUsers).Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return types.User{}, ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	var u types.User
	if err := snap.DataTo(&u); err != nil {
		return types.User{}, fmt.Errorf("decode user %s: %w", uid, err)
	}
	u.ID = snap.Ref.ID
	if u.Type == "" {
		u.Type = types.ResponderUser
	}
	return u, nil
}

// Put writes a user profile, merging into any existing document.
func (r *UserRepository) Put(ctx context.Context, u types.User) error {
	if u.ID == "" {
		return fmt.Errorf("put user: empty id")
	}
	doc := map[string]any{
		"type":         string(u.Type),
		"name":         u.Name,
		"phone":        u.Phone,
		"email":        u.Email,
		"organization": u.Organization,
		"updatedAt":    firestore.ServerTimestamp,
	}
	if _, err := r.client.Collection(types.CollectionUsers).Doc(u.ID).Set(ctx, doc, firestore.MergeAll); err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}
