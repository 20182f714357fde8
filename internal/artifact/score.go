package artifact

import (
	"github.com/viterin/vek/vek32"
)

// Epsilon подставляется вместо нулевой нормы, чтобы не делить на ноль.
const Epsilon float32 = 1e-6

// Score — косинусная близость q и v.
// Векторы должны быть одной длины.
func Score(q, v []float32) float32 {
	return scoreWithNorms(q, norm(q), v, norm(v))
}

func scoreWithNorms(q []float32, qNorm float32, v []float32, vNorm float32) float32 {
	return vek32.Dot(q, v) / (qNorm * vNorm)
}

func dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// norm возвращает L2-норму, заменяя ноль на Epsilon.
func norm(v []float32) float32 {
	n := vek32.Norm(v)
	if n == 0 {
		return Epsilon
	}

	return n
}

// Normalize возвращает копию v единичной длины. Нулевой вектор остаётся нулевым.
func Normalize(v []float32) []float32 {
	n := vek32.Norm(v)
	if n == 0 {
		return make([]float32, len(v))
	}

	return vek32.MulNumber(v, 1/n)
}
