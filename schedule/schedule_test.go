package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleFiresAfterDuration(t *testing.T) {
	s := New()
	defer s.Close()

	s.Schedule("escrow-1", KindJoinTimeout, 20*time.Millisecond)

	select {
	case f := <-s.Fires():
		require.Equal(t, "escrow-1", f.EscrowID)
		require.Equal(t, KindJoinTimeout, f.Kind)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := New()
	defer s.Close()

	s.Schedule("escrow-1", KindMessageTTL, 20*time.Millisecond)
	s.Cancel("escrow-1", KindMessageTTL)

	select {
	case f := <-s.Fires():
		t.Fatalf("unexpected fire: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRescheduleReplacesPriorTimer(t *testing.T) {
	s := New()
	defer s.Close()

	s.Schedule("escrow-1", KindInactivityTimeout, 10*time.Millisecond)
	s.Schedule("escrow-1", KindInactivityTimeout, 50*time.Millisecond)

	start := time.Now()
	select {
	case <-s.Fires():
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestCancelAllRemovesEveryKind(t *testing.T) {
	s := New()
	defer s.Close()

	s.Schedule("escrow-1", KindJoinTimeout, 20*time.Millisecond)
	s.Schedule("escrow-1", KindRecycleGrace, 20*time.Millisecond)
	s.CancelAll("escrow-1")

	select {
	case f := <-s.Fires():
		t.Fatalf("unexpected fire: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}
