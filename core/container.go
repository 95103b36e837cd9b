package core

// Container is the resolved session: settings per container key.
type Container struct {
	settings map[ContainerKey]Settings
}

func NewContainer(settings map[ContainerKey]Settings) *Container {
	copied := make(map[ContainerKey]Settings, len(settings))
	for key, value := range settings {
		if value == nil {
			continue
		}
		copied[key.Normalize()] = value
	}
	return &Container{settings: copied}
}

func (c *Container) Get(key ContainerKey) (Settings, bool) {
	if c == nil {
		return nil, false
	}
	settings, ok := c.settings[key.Normalize()]
	return settings, ok
}

func (c *Container) Has(key ContainerKey) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the container keys in sorted order.
func (c *Container) Keys() []ContainerKey {
	if c == nil {
		return nil
	}
	return sortedKeys(c.settings)
}

func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.settings)
}

// All returns a copy of the settings map.
func (c *Container) All() map[ContainerKey]Settings {
	out := map[ContainerKey]Settings{}
	if c == nil {
		return out
	}
	for key, value := range c.settings {
		out[key] = value
	}
	return out
}

// SettingsAs returns the settings for key asserted to T.
func SettingsAs[T Settings](c *Container, key ContainerKey) (T, bool) {
	var zero T
	settings, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := settings.(T)
	return typed, ok
}
