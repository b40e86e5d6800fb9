package buffer

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestNew(t *testing.T) {
	logger := testLogger()
	defer logger.Sync()

	buf := New[int](10, logger)
	if buf.Capacity() != 10 {
		t.Errorf("Expected capacity 10, got %d", buf.Capacity())
	}
	if buf.Size() != 0 {
		t.Errorf("Expected size 0, got %d", buf.Size())
	}

	if New[int](0, logger).Capacity() != 1 {
		t.Error("Expected zero capacity to be raised to 1")
	}
}

func TestAdd_Overflow(t *testing.T) {
	logger := testLogger()
	defer logger.Sync()

	buf := New[int](3, logger)
	for i := 1; i <= 5; i++ {
		buf.Add(i)
	}

	size, capacity, dropped := buf.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("Expected size 3 capacity 3, got %d %d", size, capacity)
	}
	if dropped != 2 {
		t.Errorf("Expected 2 dropped, got %d", dropped)
	}

	items := buf.GetAllAndClear()
	expected := []int{3, 4, 5}
	if len(items) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(items))
	}
	for i, item := range items {
		if item != expected[i] {
			t.Errorf("Expected item[%d]=%d, got %d", i, expected[i], item)
		}
	}
}

func TestGetAllAndClear_Empty(t *testing.T) {
	buf := New[int](5, zap.NewNop())
	if items := buf.GetAllAndClear(); items != nil {
		t.Errorf("Expected nil for empty buffer, got %v", items)
	}
}

func TestGetAllAndClear_OrderingAndReuse(t *testing.T) {
	buf := New[int](5, zap.NewNop())
	for _, v := range []int{1, 2, 3} {
		buf.Add(v)
	}

	items := buf.GetAllAndClear()
	for i, want := range []int{1, 2, 3} {
		if items[i] != want {
			t.Errorf("Expected item[%d]=%d, got %d", i, want, items[i])
		}
	}
	if buf.Size() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", buf.Size())
	}

	buf.Add(10)
	if got := buf.GetAllAndClear(); len(got) != 1 || got[0] != 10 {
		t.Errorf("Expected [10] after reuse, got %v", got)
	}
}

func TestAddAll_RequeueKeepsOrder(t *testing.T) {
	buf := New[string](4, zap.NewNop())
	buf.Add("new")
	buf.AddAll([]string{"a", "b"})

	items := buf.GetAllAndClear()
	expected := []string{"new", "a", "b"}
	if len(items) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(items))
	}
	for i := range expected {
		if items[i] != expected[i] {
			t.Errorf("Expected item[%d]=%s, got %s", i, expected[i], items[i])
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	buf := New[int](100, zap.NewNop())
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				buf.Add(val*10 + j)
			}
		}(i)
	}
	wg.Wait()

	if size := buf.Size(); size != 100 {
		t.Errorf("Expected size 100, got %d", size)
	}
	if items := buf.GetAllAndClear(); len(items) != 100 {
		t.Errorf("Expected 100 items, got %d", len(items))
	}
}
