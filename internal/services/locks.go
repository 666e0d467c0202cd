package services

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userLocks serializes tree mutations per user. Path propagation rewrites
// many records under one logical operation, so two concurrent renames in
// the same account must not interleave. Different accounts never contend.
type userLocks struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[primitive.ObjectID]*sync.Mutex)}
}

func (l *userLocks) lock(userID primitive.ObjectID) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
