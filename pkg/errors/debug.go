package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v82"
)

// ErrorDump flattens an error chain into log fields, including driver and
// payment provider diagnostics when present.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	StripeType        string `json:"stripe_type,omitempty"`
	StripeCode        string `json:"stripe_code,omitempty"`
	StripeDeclineCode string `json:"stripe_decline_code,omitempty"`
	StripeRequestID   string `json:"stripe_request_id,omitempty"`
	StripeStatus      int    `json:"stripe_status,omitempty"`
}

// Fields returns the non-empty parts of the dump for structured logging.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	for k, v := range map[string]string{
		"pg_code":             d.PGCode,
		"pg_constraint":       d.PGConstraint,
		"pg_table":            d.PGTable,
		"pg_column":           d.PGColumn,
		"pg_detail":           d.PGDetail,
		"pg_message":          d.PGMessage,
		"stripe_type":         d.StripeType,
		"stripe_code":         d.StripeCode,
		"stripe_decline_code": d.StripeDeclineCode,
		"stripe_request_id":   d.StripeRequestID,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	if d.StripeStatus != 0 {
		fields["stripe_status"] = d.StripeStatus
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		d.StripeType = string(stripeErr.Type)
		d.StripeCode = string(stripeErr.Code)
		d.StripeDeclineCode = string(stripeErr.DeclineCode)
		d.StripeRequestID = stripeErr.RequestID
		d.StripeStatus = stripeErr.HTTPStatusCode
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}
	return d
}
