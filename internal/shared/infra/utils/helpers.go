package utils

// Ternary devuelve ifTrue si condition se cumple y ifFalse en otro caso.
func Ternary[T any](condition bool, ifTrue, ifFalse T) T {
	if condition {
		return ifTrue
	}
	return ifFalse
}
