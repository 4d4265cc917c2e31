// Package domain encodes the marketplace settlement entities: wallets and
// their ledger entries, gateway transactions, orders, and support tickets.
package domain

import (
	"time"
)

// OwnerType distinguishes who a wallet belongs to. The intermediary wallet is
// the platform-owned escrow account that holds buyer funds until settlement.
type OwnerType string

const (
	OwnerUser         OwnerType = "USER"
	OwnerCompany      OwnerType = "COMPANY"
	OwnerIntermediary OwnerType = "INTERMEDIARY"
)

// WalletOwner is the (id, type) pair a wallet is keyed by. Exactly one wallet
// exists per owner.
type WalletOwner struct {
	ID   string
	Type OwnerType
}

func NewWalletOwner(id string, ownerType OwnerType) (WalletOwner, error) {
	if id == "" {
		return WalletOwner{}, NewMissingRequiredFieldError("owner id")
	}
	switch ownerType {
	case OwnerUser, OwnerCompany, OwnerIntermediary:
	default:
		return WalletOwner{}, NewMissingRequiredFieldError("owner type")
	}
	return WalletOwner{ID: id, Type: ownerType}, nil
}

// Wallet carries a single balance in minor currency units. The balance never
// goes negative; a debit that would underflow fails the whole enclosing
// operation.
type Wallet struct {
	ID        string
	Owner     WalletOwner
	Balance   int64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryKind tags a ledger entry with the movement it records.
type EntryKind string

const (
	EntryCredit          EntryKind = "CREDIT"
	EntryDebit           EntryKind = "DEBIT"
	EntryBlock           EntryKind = "BLOCK"
	EntryReleaseRefund   EntryKind = "RELEASE_REFUND"
	EntryReleaseTransfer EntryKind = "RELEASE_TRANSFER"
)

// LedgerEntry is one row of the append-only audit trail. Every balance
// mutation writes exactly one entry in the same database transaction, so the
// entries always reconcile against wallet balances.
type LedgerEntry struct {
	ID            string
	Owner         WalletOwner
	Kind          EntryKind
	Amount        int64
	CorrelationID string
	OrderID       *string
	TicketID      *string
	Reason        string
	CreatedAt     time.Time
}

// EntryMeta carries the correlation data an entry is tagged with.
type EntryMeta struct {
	CorrelationID string
	OrderID       *string
	TicketID      *string
	Reason        string
}

func NewLedgerEntry(id string, owner WalletOwner, kind EntryKind, amount int64, meta EntryMeta) (*LedgerEntry, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("entry id")
	}
	if amount <= 0 {
		return nil, NewInvalidAmountError(amount)
	}
	return &LedgerEntry{
		ID:            id,
		Owner:         owner,
		Kind:          kind,
		Amount:        amount,
		CorrelationID: meta.CorrelationID,
		OrderID:       meta.OrderID,
		TicketID:      meta.TicketID,
		Reason:        meta.Reason,
		CreatedAt:     time.Now(),
	}, nil
}

// ValidateAmount rejects zero and negative movement amounts before any
// mutation happens.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return NewInvalidAmountError(amount)
	}
	return nil
}
