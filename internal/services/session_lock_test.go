package services

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	locks := newKeyedMutex()
	counters := map[string]int{}
	var guard sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()
			guard.Lock()
			v := counters[key]
			guard.Unlock()
			guard.Lock()
			counters[key] = v + 1
			guard.Unlock()
		}(key)
	}
	wg.Wait()

	if counters["a"] != 25 || counters["b"] != 25 {
		t.Fatalf("expected 25 increments per key, got %v", counters)
	}
	if locks.size() != 0 {
		t.Fatalf("expected idle entries dropped, got %d", locks.size())
	}
}
