package cachemanager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type itemID uint64

func TestMemory(t *testing.T) {
	m := NewMemory[itemID, string]("owners", DefaultTTL)

	_, ok := m.Get(4)
	require.False(t, ok)

	m.Set(4, "Volumes")
	m.Set(5, "Models")
	got, ok := m.Get(4)
	require.True(t, ok)
	require.Equal(t, "Volumes", got)
	require.Equal(t, 2, m.Len())

	m.Delete(4, 99)
	_, ok = m.Get(4)
	require.False(t, ok)
	require.Equal(t, 1, m.Len())

	m.Flush()
	require.Zero(t, m.Len())
}

func TestMemory_NoExpiration(t *testing.T) {
	m := NewMemory[string, int]("counts", 0)
	m.Set("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

type mockStore struct {
	mock.Mock
}

func (s *mockStore) Get(key itemID) (string, bool) {
	args := s.Called(key)
	return args.String(0), args.Bool(1)
}

func (s *mockStore) Set(key itemID, value string) { s.Called(key, value) }
func (s *mockStore) Delete(keys ...itemID)        { s.Called(keys) }
func (s *mockStore) Flush()                       { s.Called() }
func (s *mockStore) Len() int                     { return s.Called().Int(0) }

func TestMemo_HitSkipsCompute(t *testing.T) {
	s := &mockStore{}
	s.On("Get", itemID(3)).Return("Volumes", true).Once()
	s.On("Len").Return(1)

	m := NewMemo[itemID, string](s)
	v, err := m.Lookup(3, func() (string, error) {
		t.Fatal("compute called on a hit")
		return "", nil
	})
	require.NoError(t, err)
	require.Equal(t, "Volumes", v)
	require.Equal(t, MemoStats{Hits: 1, Entries: 1}, m.Stats())
	s.AssertExpectations(t)
}

func TestMemo_MissStores(t *testing.T) {
	s := &mockStore{}
	s.On("Get", itemID(3)).Return("", false).Once()
	s.On("Set", itemID(3), "Models").Once()
	s.On("Len").Return(1)

	m := NewMemo[itemID, string](s)
	v, err := m.Lookup(3, func() (string, error) { return "Models", nil })
	require.NoError(t, err)
	require.Equal(t, "Models", v)
	require.Equal(t, MemoStats{Misses: 1, Entries: 1}, m.Stats())
	s.AssertExpectations(t)
}

func TestMemo_FailedComputeIsNotStored(t *testing.T) {
	s := &mockStore{}
	s.On("Get", itemID(3)).Return("", false).Once()
	boom := errors.New("boom")

	m := NewMemo[itemID, string](s)
	_, err := m.Lookup(3, func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	s.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestMemo_ForgetAndReset(t *testing.T) {
	s := &mockStore{}
	s.On("Delete", []itemID{2, 3}).Once()
	s.On("Flush").Once()

	m := NewMemo[itemID, string](s)
	m.Forget(2, 3)
	m.Forget()
	m.Reset()
	s.AssertExpectations(t)
}

func TestMemo_Disabled(t *testing.T) {
	m := NewMemo[itemID, string](nil)
	require.False(t, m.Enabled())

	calls := 0
	for range 3 {
		_, err := m.Lookup(3, func() (string, error) { calls++; return "Volumes", nil })
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)
	m.Forget(3)
	m.Reset()
	require.Equal(t, MemoStats{Misses: 3}, m.Stats())
}
