// Package tenant derives the billing account a portal user belongs to from
// their CRM contact.
package tenant

import (
	"context"
	"fmt"

	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/upstream"
)

// Source names which contact field supplied the account identifier.
type Source string

const (
	SourceAccountName Source = "account_name"
	SourceCompany     Source = "company"
	SourceContactID   Source = "contact_id"
)

// Account is the resolved tenant for cache keys and upstream scoping.
type Account struct {
	ID     string
	Source Source
}

// ResolveAccount applies the account precedence rule to a contact:
// AccountName, then Company, then the contact ID itself. The rule is fixed;
// callers must not reimplement the fallback inline.
func ResolveAccount(contact upstream.Contact) Account {
	switch {
	case contact.AccountName != "":
		return Account{ID: contact.AccountName, Source: SourceAccountName}
	case contact.Company != "":
		return Account{ID: contact.Company, Source: SourceCompany}
	default:
		return Account{ID: contact.ID, Source: SourceContactID}
	}
}

// ContactFinder is the slice of the upstream client the resolver needs.
type ContactFinder interface {
	FindContactByEmail(ctx context.Context, email string) (*upstream.Contact, error)
}

// Resolver resolves portal users to accounts via their CRM contact.
type Resolver struct {
	crm ContactFinder
}

// NewResolver constructs a Resolver.
func NewResolver(crm ContactFinder) *Resolver {
	return &Resolver{crm: crm}
}

// AccountForEmail looks up the CRM contact for the email and resolves its
// account. A user without a CRM contact maps to shared.ErrNotFound.
func (r *Resolver) AccountForEmail(ctx context.Context, email string) (Account, *upstream.Contact, error) {
	contact, err := r.crm.FindContactByEmail(ctx, email)
	if err != nil {
		return Account{}, nil, fmt.Errorf("tenant: find contact: %w", err)
	}
	if contact == nil {
		return Account{}, nil, fmt.Errorf("tenant: no contact for %s: %w", email, shared.ErrNotFound)
	}
	return ResolveAccount(*contact), contact, nil
}
