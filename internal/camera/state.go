// Package camera exposes the live camera state that the chat layer reads:
// tracked objects per camera, latest frames, and the caller's access scope.
package camera

import "sync"

// AccessScope is the set of cameras a chat request may see. A nil
// AllowedCameras means unrestricted access.
type AccessScope struct {
	AllowedCameras []string
}

func (s AccessScope) Allows(camera string) bool {
	if s.AllowedCameras == nil {
		return true
	}
	for _, allowed := range s.AllowedCameras {
		if allowed == camera {
			return true
		}
	}
	return false
}

// TrackedObject is one object currently tracked on a camera.
type TrackedObject struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	SubLabel     string   `json:"sub_label,omitempty"`
	CurrentZones []string `json:"current_zones,omitempty"`
	Stationary   bool     `json:"stationary"`
	FrameTime    float64  `json:"frame_time"`
}

// State is the mutable live state of one camera. Writers are the tracking
// pipeline; readers are chat tools, which must only use Snapshot.
type State struct {
	mu        sync.Mutex
	objects   map[string]TrackedObject
	frameTime float64
}

func NewState() *State {
	return &State{objects: make(map[string]TrackedObject)}
}

func (s *State) Update(frameTime float64, objects []TrackedObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameTime = frameTime
	for _, object := range objects {
		s.objects[object.ID] = object
	}
}

func (s *State) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
}

// Snapshot copies the tracked objects and current frame time under the
// lock. Callers format and filter on the copy, keeping the critical
// section short.
func (s *State) Snapshot() (map[string]TrackedObject, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects := make(map[string]TrackedObject, len(s.objects))
	for id, object := range s.objects {
		objects[id] = object
	}
	return objects, s.frameTime
}

// StateStore holds per-camera live state.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]*State)}
}

// State returns the camera's state, creating it on first use.
func (s *StateStore) State(camera string) *State {
	s.mu.RLock()
	state, ok := s.states[camera]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok = s.states[camera]; ok {
		return state
	}
	state = NewState()
	s.states[camera] = state
	return state
}
