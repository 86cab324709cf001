package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 5, buf.Available())

	buf.Pop(2)
	assert.Equal(t, []byte{3, 4, 5}, buf.Data())

	buf.Pop(10)
	assert.Zero(t, buf.Available())
}

func TestScratchOutputPatchAndOverflow(t *testing.T) {
	s := NewScratchOutput()
	s.Output([]byte{1, 2, 3})
	s.Output([]byte{4, 5})
	assert.Equal(t, 5, s.CurPosition())

	s.Update(0, 99)
	s.Update(7, 42) // Past the end, ignored
	assert.Equal(t, []byte{99, 2, 3, 4, 5}, s.Result())
	assert.Equal(t, []byte{3, 4, 5}, s.DataSince(2))
	assert.Nil(t, s.DataSince(6))

	s.Output(make([]byte, MessageMax))
	assert.Equal(t, MessageMax, s.CurPosition(), "writes past capacity are dropped")
	assert.Zero(t, s.Free())

	s.Reset()
	assert.Zero(t, s.CurPosition())
	assert.Equal(t, MessageMax, s.Free())
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)
	assert.True(t, fifo.IsEmpty())

	assert.Equal(t, 5, fifo.Write([]byte{1, 2, 3, 4, 5}))
	got := make([]byte, 3)
	assert.Equal(t, 3, fifo.Read(got))
	assert.Equal(t, []byte{1, 2, 3}, got)

	fifo.Pop(1)
	assert.Equal(t, []byte{5}, fifo.Data())

	fifo.Reset()
	assert.Equal(t, 9, fifo.Write(make([]byte, 12)), "one slot stays free")
	assert.Zero(t, fifo.Free())
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))

	assert.Equal(t, 2, fifo.Write([]byte{5, 6}))
	assert.Equal(t, []byte{3, 4, 5, 6}, fifo.Data(), "wrapped data comes back contiguous")

	fifo.Pop(3)
	assert.Equal(t, []byte{6}, fifo.Data())
	fifo.Pop(5)
	assert.True(t, fifo.IsEmpty())
}
