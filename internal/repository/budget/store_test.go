package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/casequery/internal/db"
)

type expireCall struct {
	key string
	ttl time.Duration
	nx  bool
}

type mockKV struct {
	data     map[string][]byte
	incr     map[string]int64
	expires  []expireCall
	getErr   error
	incrErr  error
	expirErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}, incr: map[string]int64{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	m.incr[key] += val
	return nil
}

func (m *mockKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.expires = append(m.expires, expireCall{key, ttl, nx})
	return m.expirErr
}

func TestIncrBy_SetsTTLByKeyKind(t *testing.T) {
	kv := newMockKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)

	daily := "casequery:budget:openai:daily:2026-03-14"
	monthly := "casequery:budget:openai:monthly:2026-03"
	if err := s.IncrBy(context.Background(), daily, 10); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrBy(context.Background(), monthly, 10); err != nil {
		t.Fatal(err)
	}

	want := []expireCall{{daily, 48 * time.Hour, true}, {monthly, 62 * 24 * time.Hour, true}}
	if len(kv.expires) != 2 || kv.expires[0] != want[0] || kv.expires[1] != want[1] {
		t.Errorf("expires = %+v, want %+v", kv.expires, want)
	}
	if kv.incr[daily] != 10 {
		t.Errorf("incr = %d", kv.incr[daily])
	}
}

func TestIncrBy_Errors(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("down")
	if err := New(kv, time.Hour, time.Hour).IncrBy(context.Background(), "k", 1); err == nil {
		t.Error("expected incr error")
	}

	kv = newMockKV()
	kv.expirErr = errors.New("down")
	if err := New(kv, time.Hour, time.Hour).IncrBy(context.Background(), "k", 1); err == nil {
		t.Error("expected expire error")
	}
}

func TestGet(t *testing.T) {
	kv := newMockKV()
	kv.data["k"] = []byte("1234")
	s := New(kv, time.Hour, time.Hour)

	if v, err := s.Get(context.Background(), "k"); err != nil || v != 1234 {
		t.Errorf("Get = %d, %v", v, err)
	}
	if v, err := s.Get(context.Background(), "missing"); err != nil || v != 0 {
		t.Errorf("Get(missing) = %d, %v", v, err)
	}

	kv.data["bad"] = []byte("x")
	if _, err := s.Get(context.Background(), "bad"); err == nil {
		t.Error("expected parse error")
	}

	kv.getErr = errors.New("down")
	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Error("expected store error")
	}
}
