package kv

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateCommit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.Set("a", []byte("1")); err != nil {
			return err
		}
		return tx.Set("b", []byte("2"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = m.View(ctx, func(tx Tx) error {
		v, ok, err := tx.Get("a")
		if err != nil || !ok || string(v) != "1" {
			t.Fatalf("get a: v=%q ok=%v err=%v", v, ok, err)
		}
		has, err := tx.Has("b")
		if err != nil || !has {
			t.Fatalf("has b: %v %v", has, err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateRollbackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.Set("a", []byte("1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty store after rollback, have %d keys", m.Len())
	}
}

func TestStagedReadsSeeOwnWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Update(ctx, func(tx Tx) error {
		return tx.Set("k", []byte("old"))
	}); err != nil {
		t.Fatal(err)
	}

	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.Set("k", []byte("new")); err != nil {
			return err
		}
		v, ok, err := tx.Get("k")
		if err != nil || !ok || string(v) != "new" {
			t.Fatalf("staged read: v=%q ok=%v err=%v", v, ok, err)
		}
		if err := tx.Delete("k"); err != nil {
			return err
		}
		has, err := tx.Has("k")
		if err != nil {
			return err
		}
		if has {
			t.Fatal("key visible after staged delete")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected delete to commit, have %d keys", m.Len())
	}
}

func TestViewRejectsWrites(t *testing.T) {
	m := NewMemory()
	err := m.View(context.Background(), func(tx Tx) error {
		return tx.Set("x", nil)
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestValueCopiesAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Update(ctx, func(tx Tx) error {
		return tx.Set("k", []byte("abc"))
	}); err != nil {
		t.Fatal(err)
	}
	_ = m.View(ctx, func(tx Tx) error {
		v, _, _ := tx.Get("k")
		v[0] = 'z'
		return nil
	})
	_ = m.View(ctx, func(tx Tx) error {
		v, _, _ := tx.Get("k")
		if string(v) != "abc" {
			t.Fatalf("stored value mutated through returned slice: %q", v)
		}
		return nil
	})
}
