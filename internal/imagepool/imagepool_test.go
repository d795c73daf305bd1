package imagepool

import "testing"

func TestPool_ReusesSameSizeBuffer(t *testing.T) {
	p := New()
	a := p.Get(64, 32)
	p.Put(a)
	b := p.Get(64, 32)
	if a != b {
		t.Fatal("Get after Put did not reuse the same buffer")
	}
}

func TestPool_DifferentSizesDoNotAlias(t *testing.T) {
	p := New()
	a := p.Get(64, 32)
	p.Put(a)
	b := p.Get(32, 64)
	if a == b {
		t.Fatal("Get with a different size returned a pooled buffer of the wrong dimensions")
	}
}
