package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
)

type CustomerDirectory struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewCustomerDirectory(emails map[string]string) *CustomerDirectory {
	d := &CustomerDirectory{emails: make(map[string]string, len(emails))}
	for k, v := range emails {
		d.emails[k] = v
	}
	return d
}

func (d *CustomerDirectory) Email(ctx context.Context, userID string) (string, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	email, ok := d.emails[userID]
	if !ok || email == "" {
		return "", notification.ErrCustomerNotFound
	}
	return email, nil
}

func (d *CustomerDirectory) Set(userID, email string) {
	d.mu.Lock()
	d.emails[userID] = email
	d.mu.Unlock()
}
