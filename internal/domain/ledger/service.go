package ledger

import (
	"bytes"
	"context"

	"txboundary/internal/core/apperror"
	"txboundary/internal/core/event"
	"txboundary/internal/core/id"
	"txboundary/internal/core/tx"
	"txboundary/internal/core/types"
	"txboundary/pkg/logger"
)

const (
	DefaultEntriesLimit = 50
	MaxEntriesLimit     = 500
)

// Service provides ledger operations. Every mutating method runs in a
// transaction boundary, so methods compose: a method called from inside
// another one joins its transaction.
type Service struct {
	repo   Repository
	txm    tx.Manager
	events event.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes domain events through p. Events are published inside
// the operation's transaction; a publish failure rolls the operation back.
func WithEvents(p event.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService creates a new ledger service.
//
// Panics if repo or txm is nil.
func NewService(repo Repository, txm tx.Manager, opts ...Option) *Service {
	if repo == nil || txm == nil {
		panic("ledger.NewService: repo and txm must not be nil")
	}
	s := &Service{repo: repo, txm: txm}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenAccount creates an account, optionally with an opening balance.
func (s *Service) OpenAccount(ctx context.Context, name string, opening types.Money) (*Account, error) {
	acc, err := NewAccount(name)
	if err != nil {
		return nil, err
	}
	if opening.IsNegative() {
		return nil, apperror.NewValidation("opening balance must not be negative")
	}
	if !opening.IsZero() {
		if err := validateAmount(opening); err != nil {
			return nil, err
		}
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateAccount(ctx, acc); err != nil {
			return err
		}
		if opening.IsZero() {
			return nil
		}
		return s.post(ctx, acc, EntryOpening, opening, "opening balance", nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "account opened", "account_id", acc.ID, "balance", acc.Balance.String())
	return acc, nil
}

// GetAccount returns an account by id.
func (s *Service) GetAccount(ctx context.Context, accountID id.ID) (*Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// Entries returns the latest entries of an account, newest first.
func (s *Service) Entries(ctx context.Context, accountID id.ID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultEntriesLimit
	}
	if limit > MaxEntriesLimit {
		limit = MaxEntriesLimit
	}
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, accountID, limit)
}

// Deposit credits amount to an account.
func (s *Service) Deposit(ctx context.Context, accountID id.ID, amount types.Money, memo string) (*Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.deposit(ctx, accountID, amount, memo, nil)
}

// Withdraw debits amount from an account. The balance never goes negative.
func (s *Service) Withdraw(ctx context.Context, accountID id.ID, amount types.Money, memo string) (*Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.withdraw(ctx, accountID, amount, memo, nil)
}

// Transfer moves amount between two accounts atomically. The withdrawal and
// the deposit join the transfer's transaction; if either fails, nothing is
// written.
func (s *Service) Transfer(ctx context.Context, fromID, toID id.ID, amount types.Money, memo string) (*Transfer, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, apperror.NewValidation("cannot transfer to the same account")
	}

	transfer := &Transfer{ID: id.New(), Amount: amount}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// Lock in id order so opposite transfers cannot deadlock.
		first, second := fromID, toID
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		for _, accountID := range []id.ID{first, second} {
			if _, err := s.repo.GetAccountForUpdate(ctx, accountID); err != nil {
				return err
			}
		}

		var err error
		if transfer.From, err = s.withdraw(ctx, fromID, amount, memo, &transfer.ID); err != nil {
			return err
		}
		if transfer.To, err = s.deposit(ctx, toID, amount, memo, &transfer.ID); err != nil {
			return err
		}
		return s.publish(ctx, event.Event{
			AggregateType: "transfer",
			AggregateID:   transfer.ID,
			Type:          EventTransferCompleted,
			Payload: TransferCompleted{
				TransferID: transfer.ID,
				From:       fromID,
				To:         toID,
				Amount:     amount,
				Memo:       memo,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer completed",
		"transfer_id", transfer.ID,
		"from", fromID,
		"to", toID,
		"amount", amount.String(),
	)
	return transfer, nil
}

func (s *Service) deposit(ctx context.Context, accountID id.ID, amount types.Money, memo string, transferID *id.ID) (*Account, error) {
	return tx.Within(ctx, s.txm, func(ctx context.Context) (*Account, error) {
		acc, err := s.repo.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := s.post(ctx, acc, EntryDeposit, amount, memo, transferID); err != nil {
			return nil, err
		}
		return acc, nil
	})
}

func (s *Service) withdraw(ctx context.Context, accountID id.ID, amount types.Money, memo string, transferID *id.ID) (*Account, error) {
	return tx.Within(ctx, s.txm, func(ctx context.Context) (*Account, error) {
		acc, err := s.repo.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if acc.Balance.LessThan(amount) {
			return nil, apperror.NewInsufficientFunds(acc.ID.String(), amount.String(), acc.Balance.String())
		}
		if err := s.post(ctx, acc, EntryWithdrawal, amount.Neg(), memo, transferID); err != nil {
			return nil, err
		}
		return acc, nil
	})
}

func (s *Service) publish(ctx context.Context, e event.Event) error {
	if s.events == nil {
		return nil
	}
	return s.events.Publish(ctx, e)
}

// post applies amount to acc and records the entry. Must run inside a transaction.
func (s *Service) post(ctx context.Context, acc *Account, kind EntryKind, amount types.Money, memo string, transferID *id.ID) error {
	acc.Apply(amount)
	if err := s.repo.UpdateBalance(ctx, acc); err != nil {
		return err
	}
	return s.repo.InsertEntry(ctx, &Entry{
		ID:         id.New(),
		AccountID:  acc.ID,
		TransferID: transferID,
		Kind:       kind,
		Amount:     amount,
		Memo:       memo,
		CreatedAt:  acc.UpdatedAt,
	})
}
