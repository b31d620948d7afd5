// Package syncer keeps the entity stores and the remote document store in
// step: it converts records to documents, loads and subscribes to owner
// scoped collections, serializes writes per record and queues writes made
// while the remote is unreachable.
package syncer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/docstore"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// Every record carries these date fields.
var timestampFields = []string{"createdAt", "updatedAt"}

// Codec maps one entity type to its remote collection. DateFields are the
// JSON paths (dot separated for nested objects) holding dates, which travel
// as docstore.Timestamp values.
type Codec[T model.Record] struct {
	Collection string
	OrderBy    string
	DateFields []string
	Descending bool
}

// Codecs for every synced entity type.
var (
	WalletCodec      = Codec[model.Wallet]{Collection: "wallets"}
	TransactionCodec = Codec[model.Transaction]{
		Collection: "transactions",
		DateFields: []string{"date", "recurringPattern.endDate"},
		OrderBy:    "date",
		Descending: true,
	}
	BudgetCodec     = Codec[model.Budget]{Collection: "budgets", DateFields: []string{"startDate", "endDate"}}
	GoalCodec       = Codec[model.Goal]{Collection: "goals", DateFields: []string{"deadline"}}
	BillCodec       = Codec[model.Bill]{Collection: "bills", DateFields: []string{"dueDate", "paidDate"}}
	InvestmentCodec = Codec[model.Investment]{
		Collection: "investments",
		DateFields: []string{"startDate", "maturityDate"},
	}
	InsuranceCodec = Codec[model.LifeInsurance]{
		Collection: "insurance",
		DateFields: []string{"startDate", "endDate", "nextPremiumDate"},
	}
	UserCodec = Codec[model.User]{Collection: docstore.UsersCollection}
)

// Encode converts rec to its document form. Dates become Timestamps; unset
// optional dates stay null.
func (c Codec[T]) Encode(rec T) (service.Document, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", c.Collection, rec.RecordID(), err)
	}
	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", c.Collection, rec.RecordID(), err)
	}

	for _, path := range c.dateFields() {
		err := rewrite(doc, path, func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return v, nil
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, err
			}
			return docstore.TimestampOf(t), nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", c.Collection, path, err)
		}
	}
	return doc, nil
}

// Decode converts a document back into a record. Timestamps become UTC
// times with their full precision.
func (c Codec[T]) Decode(doc service.Document) (T, error) {
	var rec T

	work := make(service.Document, len(doc))
	for k, v := range doc {
		work[k] = v
	}
	for _, path := range c.dateFields() {
		err := rewrite(work, path, func(v any) (any, error) {
			ts, ok, err := docstore.AsTimestamp(v)
			if err != nil || !ok {
				return v, err
			}
			return ts.Time(), nil
		})
		if err != nil {
			return rec, fmt.Errorf("failed to decode %s.%s of %s: %w", c.Collection, path, doc.ID(), err)
		}
	}

	data, err := json.Marshal(work)
	if err != nil {
		return rec, fmt.Errorf("failed to decode %s %s: %w", c.Collection, doc.ID(), err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode %s %s: %w", c.Collection, doc.ID(), err)
	}
	return rec, nil
}

func (c Codec[T]) dateFields() []string {
	return append(append([]string(nil), timestampFields...), c.DateFields...)
}

func (c Codec[T]) query(owner string) service.Query {
	return service.Query{
		Collection: c.Collection,
		OwnerID:    owner,
		OrderBy:    c.OrderBy,
		Descending: c.Descending,
	}
}

// rewrite replaces the value at a dotted path with fn's result. Missing or
// null values, and paths through missing objects, are left alone. Nested
// maps are copied before being written.
func rewrite(doc map[string]any, path string, fn func(any) (any, error)) error {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := doc[head]
	if !ok || v == nil {
		return nil
	}
	if !nested {
		out, err := fn(v)
		if err != nil {
			return err
		}
		doc[head] = out
		return nil
	}

	inner, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	cp := make(map[string]any, len(inner))
	for k, iv := range inner {
		cp[k] = iv
	}
	if err := rewrite(cp, rest, fn); err != nil {
		return err
	}
	doc[head] = cp
	return nil
}

func decode(data []byte) (service.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc service.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
