// Package hotness tracks how often each spatial bucket is requested.
package hotness

type Interface interface {
	Inc(bucket string)
	Score(bucket string) float64
}
