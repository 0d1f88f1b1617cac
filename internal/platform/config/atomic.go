package config

import "sync/atomic"

// atomicDoc is a typed wrapper over atomic.Pointer[Document] so Store.Get
// never takes a lock on the hot path.
type atomicDoc struct {
	p atomic.Pointer[Document]
}

func (a *atomicDoc) store(d Document) {
	a.p.Store(&d)
}

func (a *atomicDoc) load() Document {
	p := a.p.Load()
	if p == nil {
		return Document{}
	}
	return *p
}
