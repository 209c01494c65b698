package di

import (
	"sync"
	"testing"
)

type greeter struct{ name string }

func TestContainer_LazySingleton(t *testing.T) {
	c := NewContainer()
	c.Register("name", "dex")

	calls := 0
	tok := NewToken[*greeter]("greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) *greeter {
		calls++
		return &greeter{name: sr.Get("name").(string)}
	})

	if calls != 0 {
		t.Fatalf("factory should not run before first Get")
	}

	var wg sync.WaitGroup
	results := make([]*greeter, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetToken(c, tok)
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
	for _, g := range results {
		if g != results[0] {
			t.Fatal("expected the same instance for every Get")
		}
	}
	if results[0].name != "dex" {
		t.Errorf("expected dependency to be resolved, got %q", results[0].name)
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	NewContainer().Get("missing")
}
