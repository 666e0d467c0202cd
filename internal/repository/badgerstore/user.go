package badgerstore

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.StorageLimit == 0 {
		user.StorageLimit = models.DefaultStorageLimit
	}

	if existing, err := r.getByEmail(user.Email); err == nil && existing != nil {
		return pkg.ErrDuplicateName.WithDetails(map[string]interface{}{"email": user.Email})
	}

	if err := r.store.put(userKey(user.ID), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.getByID(id)
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var users []*models.User
	err := r.store.scan(userPrefix, func(val []byte) (bool, error) {
		var user models.User
		if err := bson.Unmarshal(val, &user); err != nil {
			return false, err
		}
		users = append(users, &user)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, err := r.getByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkg.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepository) UpdateStorageUsed(ctx context.Context, id primitive.ObjectID, delta int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, err := r.getByID(id)
	if err != nil {
		return err
	}

	next := user.StorageUsed + delta
	if next < 0 {
		return pkg.ErrQuotaUnderflow.WithDetails(map[string]interface{}{"delta": delta})
	}

	user.StorageUsed = next
	user.UpdatedAt = time.Now()

	if err := r.store.put(userKey(id), user); err != nil {
		return fmt.Errorf("failed to update storage used: %w", err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existed, err := r.store.delete(userKey(id))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !existed {
		return pkg.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) getByID(id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.store.get(userKey(id), &user); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, pkg.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) getByEmail(email string) (*models.User, error) {
	var found *models.User
	err := r.store.scan(userPrefix, func(val []byte) (bool, error) {
		var user models.User
		if err := bson.Unmarshal(val, &user); err != nil {
			return false, err
		}
		if user.Email == email {
			found = &user
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return found, nil
}
