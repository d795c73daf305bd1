// Package imagepool provides pooled *image.RGBA canvases keyed by
// dimensions, used by SelectionPipeline's merge canvases (Objects mode and
// re-tile frame reconstruction) to avoid an allocation per decoded frame.
package imagepool

import (
	"image"
	"sync"
)

// Pool hands out *image.RGBA canvases of a requested size, reusing a
// same-sized buffer from a prior Put when one is available.
type Pool struct {
	mu     sync.Mutex
	bySize map[[2]int][]*image.RGBA
}

// New builds an empty Pool.
func New() *Pool {
	return &Pool{bySize: make(map[[2]int][]*image.RGBA)}
}

// Get returns an *image.RGBA of exactly (width, height), either reused
// from the pool or freshly allocated. Its contents are not zeroed;
// callers that need a blank canvas must clear it themselves.
func (p *Pool) Get(width, height int) *image.RGBA {
	key := [2]int{width, height}

	p.mu.Lock()
	bucket := p.bySize[key]
	if n := len(bucket); n > 0 {
		img := bucket[n-1]
		p.bySize[key] = bucket[:n-1]
		p.mu.Unlock()
		return img
	}
	p.mu.Unlock()

	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// Put returns img to the pool for reuse by a future Get of the same size.
func (p *Pool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := [2]int{b.Dx(), b.Dy()}

	p.mu.Lock()
	p.bySize[key] = append(p.bySize[key], img)
	p.mu.Unlock()
}
