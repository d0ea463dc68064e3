package store

import "sync"

type seqGenerator struct {
	mu     sync.Mutex
	perKey map[string]int64
}

func newSeqGenerator() *seqGenerator {
	return &seqGenerator{perKey: make(map[string]int64)}
}

func (g *seqGenerator) next(key string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.perKey[key]++
	return g.perKey[key]
}
