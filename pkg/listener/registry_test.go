package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type member struct{ name string }

func TestAddRemoveAreIdempotent(t *testing.T) {
	a, b, c := &member{"a"}, &member{"b"}, &member{"c"}
	tests := []struct {
		name string
		ops  func(r *Registry[*member])
		want []*member
	}{
		{"add twice", func(r *Registry[*member]) { r.Add(a); r.Add(a) }, []*member{a}},
		{"remove absent", func(r *Registry[*member]) { r.Add(a); r.Remove(b) }, []*member{a}},
		{"insertion order", func(r *Registry[*member]) { r.Add(c); r.Add(a); r.Add(b) }, []*member{c, a, b}},
		{"remove then re-add moves to end", func(r *Registry[*member]) { r.Add(a); r.Add(b); r.Remove(a); r.Add(a) }, []*member{b, a}},
		{"remove all", func(r *Registry[*member]) { r.Add(a); r.Remove(a); r.Remove(a) }, []*member{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry[*member]()
			tt.ops(r)
			assert.Equal(t, tt.want, append([]*member{}, r.Snapshot()...))
			assert.Equal(t, len(tt.want), r.Len())
		})
	}
}

func TestAddRemoveReportChanges(t *testing.T) {
	r := NewRegistry[*member]()
	a := &member{"a"}
	assert.True(t, r.Add(a))
	assert.False(t, r.Add(a))
	assert.True(t, r.Contains(a))
	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	assert.False(t, r.Contains(a))
}

func TestSnapshotIsDetached(t *testing.T) {
	r := NewRegistry[*member]()
	a, b := &member{"a"}, &member{"b"}
	r.Add(a)
	snap := r.Snapshot()
	r.Add(b)
	assert.Len(t, snap, 1)
}

type greeter interface{ Greet() string }

type byValue struct{ names []string }

func (b byValue) Greet() string { return "hi" }

type byPointer struct{ name string }

func (b *byPointer) Greet() string { return b.name }

func TestIncomparableListenersAreRejected(t *testing.T) {
	r := NewRegistry[greeter]()
	p := &byPointer{"p"}
	assert.True(t, r.Add(p))

	v := byValue{names: []string{"a"}}
	assert.NotPanics(t, func() {
		assert.False(t, r.Add(v))
		assert.False(t, r.Add(byValue{}))
		assert.False(t, r.Contains(v))
		assert.False(t, r.Remove(v))
	})
	assert.Equal(t, []greeter{p}, r.Snapshot())
}
