// Package dtw aligns two keypoint-frame sequences of possibly different
// length and speed with dynamic time warping.
//
// The cost matrix D has (na+1)x(nb+1) cells with D[0][0] = 0 and every other
// border cell at +Inf:
//
//	D[i][j] = fd[i-1][j-1] + min(D[i-1][j-1], D[i-1][j], D[i][j-1])
//
// where fd is the precomputed frame-distance matrix. The optimal path is
// recovered by walking back from (na, nb), preferring the diagonal, then up,
// then left on equal cost.
//
// When a short live buffer is matched against a long reference, Window
// restricts the reference to a neighbourhood of the current playback index so
// the match stays temporally local and the fill stays near linear.
package dtw
