// Package checkpoint saves and loads named float64 parameter tensors in the
// SafeTensors layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, one entry per tensor plus optional __metadata__]
//	[tensor data: little-endian F64, tensors in name order]
//
// Files written here carry the SHA-256 of the data section in the
// "sha256" metadata key; Load verifies it when present, so files produced
// by other SafeTensors writers still load.
//
// Example:
//
//	err := checkpoint.Save("fit.safetensors", []checkpoint.Tensor{
//		{Name: "m", Data: []float64{2}},
//		{Name: "b", Data: []float64{0}},
//	}, map[string]string{"model": "linear"})
//
//	f, err := checkpoint.Load("fit.safetensors")
//	m, ok := f.Get("m")
package checkpoint
