package fakeaccountrepo

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/users"
)

var _ users.AccountRepo = (*FakeAccountRepo)(nil)

// FakeAccountRepo keeps accounts in memory. Accounts are copied in and out so
// callers never share a pointer with the repo.
type FakeAccountRepo struct {
	accounts map[string]*users.Account
	emailIds map[string]string // email to account id
	lock     sync.RWMutex
}

func NewFakeAccountRepo() users.AccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Upsert(account *users.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	email := normaliseEmail(account.Email)
	if existingID, ok := ar.emailIds[email]; ok && existingID != account.ID {
		return errors.Wrapf(errors.ErrUnsupported, "email %s belongs to another account", email)
	}
	if previous, ok := ar.accounts[account.ID]; ok {
		delete(ar.emailIds, normaliseEmail(previous.Email))
	}
	ar.accounts[account.ID] = copyAccount(account)
	ar.emailIds[email] = account.ID
	return nil
}

func (ar *FakeAccountRepo) Delete(email string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	email = normaliseEmail(email)
	accountID, ok := ar.emailIds[email]
	if !ok {
		return errors.ErrNotFound
	}
	delete(ar.emailIds, email)
	delete(ar.accounts, accountID)
	return nil
}

func (ar *FakeAccountRepo) GetByEmail(email string) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	accountID, ok := ar.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return copyAccount(ar.accounts[accountID]), nil
}

func (ar *FakeAccountRepo) GetByID(id string) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	account, ok := ar.accounts[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return copyAccount(account), nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyAccount(a *users.Account) *users.Account {
	c := &users.Account{
		User:         *a.User.Clone(),
		PasswordHash: a.PasswordHash,
	}
	if a.SavedIDs != nil {
		c.SavedIDs = append([]string(nil), a.SavedIDs...)
	}
	return c
}
