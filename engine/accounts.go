package engine

import (
	"context"
	"strings"

	"github.com/warp/tally/account"
	"github.com/warp/tally/generic"
)

func (s *Service) loadAccount(ctx context.Context, id generic.EntityID) (*account.Account, error) {
	events, err := s.scan(ctx, generic.ForEntity(id, account.Types...))
	if err != nil {
		return nil, err
	}
	state, ok := s.accounts.Project(events)[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// OpenAccount creates an account.
func (s *Service) OpenAccount(ctx context.Context, key string, in account.OpenInput) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		if id := generic.EntityID(strings.TrimSpace(in.AccountID)); id != "" {
			existing, err := s.loadAccount(ctx, id)
			if err != nil {
				return generic.Event{}, err
			}
			if existing != nil {
				return generic.Event{}, generic.NewValidationError("accountId", "%s already exists", id)
			}
		}
		return account.NewOpenedEvent(in, s.now())
	})
}

// RecordTransaction moves an account balance by a signed amount.
func (s *Service) RecordTransaction(ctx context.Context, key string, id generic.EntityID, in account.RecordInput) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadAccount(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return account.NewRecordedEvent(current, id, in, s.now())
	})
}

func (s *Service) RenameAccount(ctx context.Context, key string, id generic.EntityID, name string) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadAccount(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return account.NewRenamedEvent(current, id, name, s.now())
	})
}

func (s *Service) CloseAccount(ctx context.Context, key string, id generic.EntityID) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadAccount(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return account.NewClosedEvent(current, id, s.now())
	})
}

// Accounts returns accounts with derived balances, ordered by name.
func (s *Service) Accounts(ctx context.Context, includeClosed bool) ([]account.Account, error) {
	events, err := s.scan(ctx, generic.ForTypes(account.Types...))
	if err != nil {
		return nil, err
	}
	return account.Select(s.accounts.Project(events), includeClosed), nil
}
