package options

const (
	// General
	Config   = "config"
	LogLevel = "log-level"
	Json     = "json"

	// Cluster
	Root             = "root"
	Cidr             = "cidr"
	Nodes            = "nodes"
	ContainerRuntime = "container-runtime"
	Overlay          = "overlay"
	Packages         = "packages"
	NoShell          = "no-shell"
)
