package config

// DefaultShapeCapacity is how many bottom stack slots keep their markers
const DefaultShapeCapacity = 16

// FixtureFileExt is the primary fixture extension
const FixtureFileExt = ".yaml"

// FixtureFileExtensions are all recognized fixture file extensions
var FixtureFileExtensions = []string{".yaml", ".yml"}

// SettingsFileNames are searched, in order, by FindSettings
var SettingsFileNames = []string{"ilstack.yaml", "ilstack.yml"}

// Colour modes of the report renderer
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Log levels accepted in settings
const (
	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)
