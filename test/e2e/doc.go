// Package e2e exercises the sampler, parser, resampler and chart renderer
// together through real log files on disk.
package e2e
