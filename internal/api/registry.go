package api

import (
	"sort"
	"sync"

	"github.com/stepshot/stepshot/internal/models"
)

// VideoRegistry tracks uploaded videos for the lifetime of the process.
// Finished procedures are persisted elsewhere; this only bridges upload to
// segmentation and alignment requests.
type VideoRegistry struct {
	mu     sync.RWMutex
	videos map[string]*models.Video
}

func NewVideoRegistry() *VideoRegistry {
	return &VideoRegistry{videos: make(map[string]*models.Video)}
}

func (r *VideoRegistry) Add(v *models.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = v
}

func (r *VideoRegistry) Get(id string) (*models.Video, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	return v, ok
}

func (r *VideoRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
}

// List returns all registered videos, newest first.
func (r *VideoRegistry) List() []*models.Video {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Video, 0, len(r.videos))
	for _, v := range r.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadTime.After(out[j].UploadTime)
	})
	return out
}
