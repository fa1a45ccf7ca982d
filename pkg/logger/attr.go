package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AccountID records the account identifier under the key "account_id".
// If id is nil, it returns an empty Attr.
func AccountID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("account_id", id)
}

// PlanID records the membership plan identifier under the key "plan_id".
func PlanID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("plan_id", id)
}

// Status records an account payment status under the key "status".
func Status[S ~string](s S) slog.Attr {
	return slog.String("status", string(s))
}

// Transition groups the from/to states and triggering event of a lifecycle change.
func Transition[S ~string, E ~string](from, to S, event E) slog.Attr {
	return slog.Group("transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("event", string(event)),
	)
}

// InvoiceNumber records a billing invoice number under the key "invoice_number".
func InvoiceNumber(n string) slog.Attr {
	return slog.String("invoice_number", n)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
