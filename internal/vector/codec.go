package vector

import (
	"github.com/pgvector/pgvector-go"
)

// Float is any provider element type the codec accepts.
type Float interface {
	~float32 | ~float64
}

// Narrow converts each element to float32 by direct conversion. There is no
// scaling or normalization, so values outside float32 range become ±Inf.
func Narrow[T Float](values []T) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// Encode turns a provider vector into the value bound to the vector column.
// Width is not checked here; the column's declared dimension is the guard.
func Encode[T Float](values []T) pgvector.Vector {
	return pgvector.NewVector(Narrow(values))
}

// EncodeBatch encodes vectors in order.
func EncodeBatch[T Float](vectors [][]T) []pgvector.Vector {
	out := make([]pgvector.Vector, len(vectors))
	for i, v := range vectors {
		out[i] = Encode(v)
	}
	return out
}
