package core

import (
	"sync"
)

// DefaultResources are the fallback textures and sampler bound wherever a
// material leaves a slot empty.
type DefaultResources struct {
	Black   TextureID
	Normal  TextureID
	White   TextureID
	Sampler SamplerID
}

// Fallback returns the texture substituted for an empty slot.
func (d DefaultResources) Fallback(slot int) TextureID {
	switch slot {
	case TextureNormal:
		return d.Normal
	case TextureEmissive:
		return d.Black
	}
	return d.White
}

type DefaultsFactory interface {
	CreateDefaults() (DefaultResources, error)
	DestroyDefaults(DefaultResources)
}

type idOnlyFactory struct{}

func (idOnlyFactory) CreateDefaults() (DefaultResources, error) {
	return DefaultResources{
		Black:   NewTextureID(),
		Normal:  NewTextureID(),
		White:   NewTextureID(),
		Sampler: NewSamplerID(),
	}, nil
}

func (idOnlyFactory) DestroyDefaults(DefaultResources) {}

var defaults struct {
	mu      sync.Mutex
	factory DefaultsFactory
	res     *DefaultResources
}

// InitDefaults installs the factory used on first acquisition. Passing nil
// installs a factory that only mints IDs, which is enough for headless runs.
// Resources created by a previous factory are torn down first.
func InitDefaults(f DefaultsFactory) {
	TeardownDefaults()
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	if f == nil {
		f = idOnlyFactory{}
	}
	defaults.factory = f
}

// Defaults is the single acquisition point. Resources are created once, on
// first use, by the installed factory.
func Defaults() (DefaultResources, error) {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	if defaults.res != nil {
		return *defaults.res, nil
	}
	if defaults.factory == nil {
		defaults.factory = idOnlyFactory{}
	}
	res, err := defaults.factory.CreateDefaults()
	if err != nil {
		return DefaultResources{}, err
	}
	defaults.res = &res
	return res, nil
}

// TeardownDefaults destroys the shared resources. A later Defaults call
// recreates them.
func TeardownDefaults() {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	if defaults.res != nil && defaults.factory != nil {
		defaults.factory.DestroyDefaults(*defaults.res)
	}
	defaults.res = nil
}
