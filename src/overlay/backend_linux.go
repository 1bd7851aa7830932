package overlay

func newNativeFactory() (Factory, error) { return NewX11Factory() }
