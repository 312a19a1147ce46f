package gpioirq

import "sync"

// SoftPin is a Pin driven from software: the host simulator maps keys to
// it and tests use it to inject edges.
type SoftPin struct {
	mu      sync.Mutex
	level   bool
	edge    Edge
	handler func()
}

func (p *SoftPin) ConfigureInput(pull Pull) error {
	p.mu.Lock()
	p.level = pull == PullUp
	p.mu.Unlock()
	return nil
}

func (p *SoftPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SoftPin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	p.edge, p.handler = edge, handler
	p.mu.Unlock()
	return nil
}

func (p *SoftPin) ClearIRQ() error {
	p.mu.Lock()
	p.edge, p.handler = EdgeNone, nil
	p.mu.Unlock()
	return nil
}

// Set drives the level and raises the interrupt if the transition matches
// the armed edge.
func (p *SoftPin) Set(level bool) {
	p.mu.Lock()
	prev := p.level
	p.level = level
	h, e := p.handler, p.edge
	p.mu.Unlock()

	if h == nil || prev == level {
		return
	}
	rising := level
	if e == EdgeBoth || (e == EdgeRising && rising) || (e == EdgeFalling && !rising) {
		h()
	}
}

// Press models an active-low button: a falling then a rising edge.
func (p *SoftPin) Press() {
	p.Set(false)
	p.Set(true)
}
