package proxypool

import "testing"

func TestNewPoolEmpty(t *testing.T) {
	_, err := NewPool(nil)
	if err != ErrEmptyPool {
		t.Fatalf("want ErrEmptyPool, got %v", err)
	}
}

func TestPoolDistribution(t *testing.T) {
	urls := []string{"http://p1:8080", "http://p2:8080", "socks5://p3:1080"}
	p, err := NewPool(urls)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	const k = 4
	n := len(urls)
	counts := make(map[string]int)
	var order []string
	for i := 0; i < n*k; i++ {
		d := p.Next()
		counts[d.Host]++
		order = append(order, d.Host)
	}
	for _, u := range urls {
		d, _ := Parse(u)
		if counts[d.Host] != k {
			t.Fatalf("host %s returned %d times, want %d", d.Host, counts[d.Host], k)
		}
	}
	// Fixed order: p1,p2,p3,p1,p2,p3,...
	want := []string{"p1", "p2", "p3"}
	for i, host := range order {
		if host != want[i%3] {
			t.Fatalf("order[%d] = %s, want %s", i, host, want[i%3])
		}
	}
}

func TestPoolAlternative(t *testing.T) {
	p, err := NewPool([]string{"http://p1:8080", "http://p2:8080"})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	alt, ok := p.Alternative(0)
	if !ok {
		t.Fatalf("want alternative present")
	}
	if alt == p.GetAt(0) {
		t.Fatalf("Alternative(0) must not equal GetAt(0)")
	}
	if alt != p.GetAt(1) {
		t.Fatalf("Alternative(0) = %+v, want GetAt(1) = %+v", alt, p.GetAt(1))
	}
}

func TestPoolAlternativeSingleEntry(t *testing.T) {
	p, err := NewPool([]string{"http://p1:8080"})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	_, ok := p.Alternative(0)
	if ok {
		t.Fatalf("want no alternative for single-entry pool")
	}
}

func TestPoolResetAndIntrospection(t *testing.T) {
	p, err := NewPool([]string{"http://p1:8080", "http://p2:8080"})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}
	p.Next()
	p.Reset()
	first := p.Next()
	if first != p.GetAt(0) {
		t.Fatalf("after Reset, Next() should return GetAt(0)")
	}
	if len(p.All()) != 2 {
		t.Fatalf("All() length = %d, want 2", len(p.All()))
	}
}
