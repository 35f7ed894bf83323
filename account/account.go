// Package account derives account balances from the event log.
//
// An account is opened by accountOpened, renamed by accountUpdated, moved
// by transactionRecorded and terminated by accountClosed. The balance is
// openingBalance plus every recorded amount; it is never stored.
package account

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/tally/generic"
)

const (
	TypeOpened   generic.EventType = "accountOpened"
	TypeUpdated  generic.EventType = "accountUpdated"
	TypeRecorded generic.EventType = "transactionRecorded"
	TypeClosed   generic.EventType = "accountClosed"
)

var Types = []generic.EventType{TypeOpened, TypeUpdated, TypeRecorded, TypeClosed}

const Kind = "account"

// DefaultKind is used when an opened event carries no kind.
const DefaultKind = "checking"

// Account is the derived state of one account.
type Account struct {
	ID               generic.EntityID `json:"accountId"`
	Name             string           `json:"name"`
	Kind             string           `json:"kind"`
	OpeningBalance   decimal.Decimal  `json:"openingBalance"`
	Balance          decimal.Decimal  `json:"balance"`
	TransactionCount int              `json:"transactionCount"`
	OpenedAt         time.Time        `json:"openedAt"`
	ClosedAt         *time.Time       `json:"closedAt,omitempty"`
}

func (a Account) Open() bool { return a.ClosedAt == nil }

// =============================================================================
// PAYLOADS
// =============================================================================

type Payload interface{ accountID() generic.EntityID }

type Opened struct {
	ID             generic.EntityID
	Name           string
	Kind           string
	OpeningBalance decimal.Decimal
}

type Updated struct {
	ID   generic.EntityID
	Name *string
	Kind *string
}

type Recorded struct {
	ID            generic.EntityID
	TransactionID string
	Amount        decimal.Decimal
	Memo          string
}

type Closed struct{ ID generic.EntityID }

func (p Opened) accountID() generic.EntityID   { return p.ID }
func (p Updated) accountID() generic.EntityID  { return p.ID }
func (p Recorded) accountID() generic.EntityID { return p.ID }
func (p Closed) accountID() generic.EntityID   { return p.ID }

// Decode reads an account event leniently: missing amounts are zero.
func Decode(evt generic.Event) (Payload, error) {
	f, err := generic.PayloadFields(evt)
	if err != nil {
		return nil, err
	}
	id := f.ID("accountId")
	if id == "" {
		id = evt.EntityID
	}
	if id == "" {
		return nil, &generic.DecodeError{EventID: evt.ID, Type: evt.Type, Err: fmt.Errorf("missing accountId")}
	}

	switch evt.Type {
	case TypeOpened:
		p := Opened{ID: id, Name: f.StringOr("name", ""), Kind: f.StringOr("kind", DefaultKind)}
		p.OpeningBalance, _ = f.Decimal("openingBalance")
		return p, nil
	case TypeUpdated:
		p := Updated{ID: id}
		if s, ok := f.String("name"); ok {
			p.Name = &s
		}
		if s, ok := f.String("kind"); ok {
			p.Kind = &s
		}
		return p, nil
	case TypeRecorded:
		p := Recorded{ID: id, TransactionID: f.StringOr("transactionId", string(evt.ID)), Memo: f.StringOr("memo", "")}
		p.Amount, _ = f.Decimal("amount")
		return p, nil
	case TypeClosed:
		return Closed{ID: id}, nil
	}
	return nil, &generic.DecodeError{EventID: evt.ID, Type: evt.Type, Err: fmt.Errorf("not an account event")}
}

// =============================================================================
// PROJECTOR
// =============================================================================

type Projector struct {
	Logger zerolog.Logger
}

func (p Projector) Project(events []generic.Event) map[generic.EntityID]Account {
	return generic.Fold(events, make(map[generic.EntityID]Account), func(states map[generic.EntityID]Account, evt generic.Event) map[generic.EntityID]Account {
		payload, err := Decode(evt)
		if err != nil {
			p.Logger.Warn().Err(err).Str("event_id", string(evt.ID)).Msg("skipping undecodable account event")
			return states
		}
		id := payload.accountID()
		current, exists := states[id]

		switch pl := payload.(type) {
		case Opened:
			next := Account{
				ID:             id,
				Name:           pl.Name,
				Kind:           pl.Kind,
				OpeningBalance: pl.OpeningBalance,
				Balance:        pl.OpeningBalance,
				OpenedAt:       evt.OccurredAt,
			}
			if exists {
				next.Balance = pl.OpeningBalance.Add(current.Balance.Sub(current.OpeningBalance))
				next.TransactionCount = current.TransactionCount
				next.ClosedAt = current.ClosedAt
			}
			states[id] = next
		case Updated:
			if !exists || !current.Open() {
				return states
			}
			if pl.Name != nil {
				current.Name = *pl.Name
			}
			if pl.Kind != nil {
				current.Kind = *pl.Kind
			}
			states[id] = current
		case Recorded:
			if !exists || !current.Open() {
				return states
			}
			current.Balance = current.Balance.Add(pl.Amount)
			current.TransactionCount++
			states[id] = current
		case Closed:
			if !exists || !current.Open() {
				return states
			}
			at := evt.OccurredAt
			current.ClosedAt = &at
			states[id] = current
		}
		return states
	})
}

// Select returns accounts ordered by name then id.
func Select(states map[generic.EntityID]Account, includeClosed bool) []Account {
	out := make([]Account, 0, len(states))
	for _, a := range states {
		if includeClosed || a.Open() {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Account) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// =============================================================================
// COMMANDS
// =============================================================================

type OpenInput struct {
	AccountID      string
	Name           string
	Kind           string
	OpeningBalance decimal.Decimal
}

func NewOpenedEvent(in OpenInput, at time.Time) (generic.Event, error) {
	if strings.TrimSpace(in.Name) == "" {
		return generic.Event{}, generic.NewValidationError("name", "must not be empty")
	}
	id := generic.EntityID(strings.TrimSpace(in.AccountID))
	if id == "" {
		id = generic.NewEntityID()
	}
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		kind = DefaultKind
	}
	return generic.NewEvent(TypeOpened, id, map[string]any{
		"accountId":      string(id),
		"name":           strings.TrimSpace(in.Name),
		"kind":           kind,
		"openingBalance": in.OpeningBalance,
	}, at)
}

type RecordInput struct {
	Amount decimal.Decimal
	Memo   string
}

// NewRecordedEvent records a signed amount (negative for spending).
func NewRecordedEvent(current *Account, id generic.EntityID, in RecordInput, at time.Time) (generic.Event, error) {
	if err := requireOpen(current, id); err != nil {
		return generic.Event{}, err
	}
	if in.Amount.IsZero() {
		return generic.Event{}, generic.NewValidationError("amount", "must not be zero")
	}
	return generic.NewEvent(TypeRecorded, id, map[string]any{
		"accountId":     string(id),
		"transactionId": string(generic.NewEntityID()),
		"amount":        in.Amount,
		"memo":          in.Memo,
	}, at)
}

func NewRenamedEvent(current *Account, id generic.EntityID, name string, at time.Time) (generic.Event, error) {
	if err := requireOpen(current, id); err != nil {
		return generic.Event{}, err
	}
	if strings.TrimSpace(name) == "" {
		return generic.Event{}, generic.NewValidationError("name", "must not be empty")
	}
	return generic.NewEvent(TypeUpdated, id, map[string]any{"accountId": string(id), "name": strings.TrimSpace(name)}, at)
}

func NewClosedEvent(current *Account, id generic.EntityID, at time.Time) (generic.Event, error) {
	if err := requireOpen(current, id); err != nil {
		return generic.Event{}, err
	}
	return generic.NewEvent(TypeClosed, id, map[string]any{"accountId": string(id)}, at)
}

func requireOpen(current *Account, id generic.EntityID) error {
	if current == nil {
		return &generic.NotFoundError{Kind: Kind, ID: id}
	}
	if !current.Open() {
		return &generic.TerminalError{Kind: Kind, ID: id, At: *current.ClosedAt}
	}
	return nil
}
