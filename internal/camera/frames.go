package camera

import (
	"bytes"
	"image/jpeg"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/xiewu/frigate/internal/logger"
)

// FrameSource hands out the latest JPEG frame for a camera, or nil when
// no frame is available.
type FrameSource interface {
	LatestFrame(camera string) []byte
}

// FrameStore is an in-memory FrameSource fed by the capture pipeline.
type FrameStore struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

func NewFrameStore() *FrameStore {
	return &FrameStore{frames: make(map[string][]byte)}
}

func (s *FrameStore) SetFrame(camera string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[camera] = data
}

func (s *FrameStore) LatestFrame(camera string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames[camera]
}

// DownscaleJPEG fits the image within maxDim on its longest side before it
// is shipped to a vision model. Decode or encode failures fall back to the
// original bytes.
func DownscaleJPEG(data []byte, maxDim int) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debugf("Failed to decode frame for downscaling: %v", err)
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return data
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		logger.Debugf("Failed to encode downscaled frame: %v", err)
		return data
	}
	return buf.Bytes()
}
