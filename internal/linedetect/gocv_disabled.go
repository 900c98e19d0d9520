//go:build !gocv

package linedetect

func newGoCVSegmenter(Config) (segmenter, error) {
	return nil, ErrBackendUnavailable
}
