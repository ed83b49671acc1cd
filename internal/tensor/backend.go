package tensor

// Backend defines the operations a compute backend provides. Implementations
// panic on programmer errors such as incompatible shapes, matching the
// behaviour of slice indexing.
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D tensors: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Transpose swaps the axes of a 2D tensor.
	Transpose(x *RawTensor) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Square(x *RawTensor) *RawTensor

	// Sum reduces all elements to a scalar.
	Sum(x *RawTensor) *RawTensor

	// Reshape returns a tensor with the same elements and a new shape.
	Reshape(x *RawTensor, shape Shape) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
