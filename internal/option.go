package internal

// Option customizes the application before Run wires it together.
type Option func(*application)

// application collects the settings Run assembles the server from.
type application struct {
	config *Config
}

// WithConfig supplies the loaded configuration. Run refuses to start
// without one.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
