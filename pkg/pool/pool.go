package pool

import (
	"sync"
)

// ObjectPools содержит пулы буферов для переиспользования
type ObjectPools struct {
	float64SlicePool sync.Pool
	byteSlicePool    sync.Pool
}

// Global пулы объектов
var Global = &ObjectPools{
	float64SlicePool: sync.Pool{
		New: func() interface{} {
			s := make([]float64, 0, 64)
			return &s
		},
	},
	byteSlicePool: sync.Pool{
		New: func() interface{} {
			b := make([]byte, 0, 1024)
			return &b
		},
	},
}

// GetFloat64Slice возвращает обнуленный слайс длины n
func (p *ObjectPools) GetFloat64Slice(n int) *[]float64 {
	sp := p.float64SlicePool.Get().(*[]float64)
	if cap(*sp) < n {
		*sp = make([]float64, n)
		return sp
	}
	s := (*sp)[:n]
	for i := range s {
		s[i] = 0
	}
	*sp = s
	return sp
}

// PutFloat64Slice возвращает слайс в пул
func (p *ObjectPools) PutFloat64Slice(sp *[]float64) {
	p.float64SlicePool.Put(sp)
}

// GetByteSlice получает []byte нулевой длины из пула
func (p *ObjectPools) GetByteSlice() *[]byte {
	bp := p.byteSlicePool.Get().(*[]byte)
	*bp = (*bp)[:0]
	return bp
}

// PutByteSlice возвращает []byte в пул
func (p *ObjectPools) PutByteSlice(bp *[]byte) {
	// большие буферы не удерживаем
	if cap(*bp) > 1<<20 {
		return
	}
	p.byteSlicePool.Put(bp)
}
