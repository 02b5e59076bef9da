package locks

import "testing"

func TestTryAcquireGrantsFreeAccount(t *testing.T) {
	q := NewAccountQueues()
	if !q.TryAcquire(7, 100) {
		t.Fatal("expected free account to be granted immediately")
	}
	if !q.IsLocked(7) {
		t.Fatal("expected account to be locked after acquire")
	}
}

func TestTryAcquireQueuesWhenHeld(t *testing.T) {
	q := NewAccountQueues()
	if !q.TryAcquire(7, 100) {
		t.Fatal("first acquire should succeed")
	}
	if q.TryAcquire(7, 200) {
		t.Fatal("second acquire on a held account should be queued, not granted")
	}
	if q.QueueLen(7) != 1 {
		t.Fatalf("expected 1 waiter, got %d", q.QueueLen(7))
	}
}

func TestReleaseDequeuesFIFO(t *testing.T) {
	q := NewAccountQueues()
	q.TryAcquire(7, 100)
	q.TryAcquire(7, 200)
	q.TryAcquire(7, 300)

	next, ok := q.Release(7)
	if !ok || next != 200 {
		t.Fatalf("expected tx 200 to be dequeued next, got %d ok=%v", next, ok)
	}
	if !q.IsLocked(7) {
		t.Fatal("account should remain locked for the handed-off transaction")
	}

	next, ok = q.Release(7)
	if !ok || next != 300 {
		t.Fatalf("expected tx 300 to be dequeued next, got %d ok=%v", next, ok)
	}

	next, ok = q.Release(7)
	if ok {
		t.Fatalf("expected queue to be empty, got tx %d", next)
	}
	if q.IsLocked(7) {
		t.Fatal("account should be free once the queue drains")
	}
}

func TestIndependentAccountsDoNotBlockEachOther(t *testing.T) {
	q := NewAccountQueues()
	if !q.TryAcquire(1, 10) {
		t.Fatal("account 1 should be free")
	}
	if !q.TryAcquire(2, 20) {
		t.Fatal("account 2 should be free regardless of account 1's lock")
	}
}
