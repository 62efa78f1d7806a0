package main

// RunFlags decouples cobra from logic for testing.
type RunFlags struct {
	ConfigPath    string
	Headless      bool
	DisableGPU    bool
	NoUpdateCheck bool
	LogLevel      string
}
