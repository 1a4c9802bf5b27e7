// Package kirsch implements the Kirsch compass edge operator: a bank of eight
// rotated 3x3 derivative masks, per-pixel direction selection, thresholding,
// direction colouring and block replication into the output image.
//
// Everything here is pure and allocation-light so the same per-pixel function
// can be driven sequentially, row-sharded across a worker pool, or fused into
// an accelerated kernel.
package kirsch
