package recurring

import (
	"fmt"
	"strings"

	"github.com/warp/tally/generic"
)

// Decode turns a stored event into its typed payload.
//
// Decoding is lenient by design of the log: a missing amount is zero and a
// missing or unknown cadence falls back to DefaultCadence on genesis. Only
// an unreadable payload, a missing recurringId or a foreign type is an
// error, and the projector skips such events.
func Decode(evt generic.Event) (Payload, error) {
	f, err := generic.PayloadFields(evt)
	if err != nil {
		return nil, err
	}
	id := f.ID("recurringId")
	if id == "" {
		id = evt.EntityID
	}
	if id == "" {
		return nil, &generic.DecodeError{EventID: evt.ID, Type: evt.Type, Err: fmt.Errorf("missing recurringId")}
	}

	switch evt.Type {
	case TypeScheduled:
		p := Scheduled{
			ID:         id,
			Name:       strings.TrimSpace(f.StringOr("name", "")),
			CategoryID: f.StringOr("categoryId", ""),
			EnvelopeID: f.StringOr("envelopeId", ""),
			AccountID:  f.StringOr("accountId", ""),
			Cadence:    DefaultCadence,
		}
		p.Amount, _ = f.Decimal("amount")
		p.NextDueAt, _ = f.Millis("nextDueAt")
		if c, ok := parseCadenceField(f); ok {
			p.Cadence = c
		}
		return p, nil

	case TypeUpdated, TypeUpdatedLegacy:
		p := Updated{ID: id}
		if s, ok := f.String("name"); ok {
			s = strings.TrimSpace(s)
			p.Name = &s
		}
		if d, ok := f.Decimal("amount"); ok {
			p.Amount = &d
		}
		if c, ok := parseCadenceField(f); ok {
			p.Cadence = &c
		}
		if t, ok := f.Millis("nextDueAt"); ok {
			p.NextDueAt = &t
		}
		p.CategoryID = optionalString(f, "categoryId")
		p.EnvelopeID = optionalString(f, "envelopeId")
		p.AccountID = optionalString(f, "accountId")
		return p, nil

	case TypePosted:
		p := Posted{ID: id}
		p.PostedAt, _ = f.Millis("postedAt")
		if p.PostedAt.IsZero() {
			p.PostedAt = evt.OccurredAt
		}
		p.NextDueAt, _ = f.Millis("nextDueAt")
		return p, nil

	case TypeCanceled, TypeCanceledLegacy:
		return Canceled{ID: id, Reason: f.StringOr("reason", "")}, nil
	}

	return nil, &generic.DecodeError{EventID: evt.ID, Type: evt.Type, Err: fmt.Errorf("not a recurring event")}
}

func parseCadenceField(f generic.Fields) (Cadence, bool) {
	s, ok := f.String("cadence")
	if !ok {
		return "", false
	}
	return ParseCadence(s)
}

func optionalString(f generic.Fields, name string) *string {
	s, ok := f.String(name)
	if !ok {
		return nil
	}
	return &s
}
