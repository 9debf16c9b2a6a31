// Package storetest provides test doubles and a conformance suite for store.Client.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

// ErrInjected is returned by failing calls unless a rule supplies its own error.
var ErrInjected = errors.New("storetest: injected failure")

// Method names a store.Client call.
type Method string

// Client methods that can be failed.
const (
	MethodSelect Method = "select"
	MethodInsert Method = "insert"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
	MethodUpsert Method = "upsert"
)

// Rule describes which calls fail. Build one with Faulty.Fail.
type Rule struct {
	method    Method
	table     store.Table
	err       error
	skip      int
	remaining int // <0 means unlimited
}

// After lets the first n matching calls succeed.
func (r *Rule) After(n int) *Rule {
	r.skip = n
	return r
}

// Times limits the rule to n failures.
func (r *Rule) Times(n int) *Rule {
	r.remaining = n
	return r
}

// With replaces the returned error.
func (r *Rule) With(err error) *Rule {
	r.err = err
	return r
}

// Faulty wraps a client and fails calls according to its rules.
type Faulty struct {
	store.Client

	mu    sync.Mutex
	rules []*Rule
	calls map[Method]map[store.Table]int
}

// Wrap returns a Faulty around c with no rules.
func Wrap(c store.Client) *Faulty {
	return &Faulty{Client: c, calls: make(map[Method]map[store.Table]int)}
}

// Fail adds a rule failing every matching call until limited.
// An empty table matches all tables.
func (f *Faulty) Fail(method Method, table store.Table) *Rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &Rule{method: method, table: table, err: ErrInjected, remaining: -1}
	f.rules = append(f.rules, r)
	return r
}

// Heal removes every rule.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

// Calls reports how many times method was invoked on table, failures included.
func (f *Faulty) Calls(method Method, table store.Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method][table]
}

func (f *Faulty) check(method Method, table store.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls[method] == nil {
		f.calls[method] = make(map[store.Table]int)
	}
	f.calls[method][table]++

	for _, r := range f.rules {
		if r.method != method || (r.table != "" && r.table != table) || r.remaining == 0 {
			continue
		}
		if r.skip > 0 {
			r.skip--
			continue
		}
		if r.remaining > 0 {
			r.remaining--
		}
		return r.err
	}
	return nil
}

// Select implements store.Client.
func (f *Faulty) Select(ctx context.Context, table store.Table, q store.Query) ([]store.Row, error) {
	if err := f.check(MethodSelect, table); err != nil {
		return nil, err
	}
	return f.Client.Select(ctx, table, q)
}

// Insert implements store.Client.
func (f *Faulty) Insert(ctx context.Context, table store.Table, rows ...store.Row) ([]store.Row, error) {
	if err := f.check(MethodInsert, table); err != nil {
		return nil, err
	}
	return f.Client.Insert(ctx, table, rows...)
}

// Update implements store.Client.
func (f *Faulty) Update(ctx context.Context, table store.Table, patch store.Row, filters ...store.Filter) error {
	if err := f.check(MethodUpdate, table); err != nil {
		return err
	}
	return f.Client.Update(ctx, table, patch, filters...)
}

// Delete implements store.Client.
func (f *Faulty) Delete(ctx context.Context, table store.Table, filters ...store.Filter) error {
	if err := f.check(MethodDelete, table); err != nil {
		return err
	}
	return f.Client.Delete(ctx, table, filters...)
}

// Upsert implements store.Client.
func (f *Faulty) Upsert(ctx context.Context, table store.Table, row store.Row, conflictKey ...string) error {
	if err := f.check(MethodUpsert, table); err != nil {
		return err
	}
	return f.Client.Upsert(ctx, table, row, conflictKey...)
}
