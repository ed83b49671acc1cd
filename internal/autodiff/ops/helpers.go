package ops

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// reduceBroadcast sums a gradient down to targetShape, undoing any
// broadcasting from the forward pass.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (summed along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, _ tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	result, err := tensor.NewRaw(targetShape, grad.DType(), grad.Device())
	if err != nil {
		panic(fmt.Sprintf("reduceBroadcast: %v", err))
	}

	gradStrides := gradShape.ComputeStrides()
	targetStrides := tensor.BroadcastStrides(targetShape, gradShape)

	switch grad.DType() {
	case tensor.Float32:
		accumulate(result.AsFloat32(), grad.AsFloat32(), gradStrides, targetStrides)
	case tensor.Float64:
		accumulate(result.AsFloat64(), grad.AsFloat64(), gradStrides, targetStrides)
	default:
		panic(fmt.Sprintf("reduceBroadcast: unsupported dtype %s", grad.DType()))
	}

	return result
}

func accumulate[T tensor.DType](dst, src []T, srcStrides, dstStrides []int) {
	for i, v := range src {
		idx, rem := 0, i
		for d := range srcStrides {
			idx += (rem / srcStrides[d]) * dstStrides[d]
			rem %= srcStrides[d]
		}
		dst[idx] += v
	}
}
