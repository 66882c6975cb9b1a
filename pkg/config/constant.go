package config

const (
	Root             = "cluster.root"
	Cidr             = "cluster.cidr"
	Nodes            = "cluster.nodes"
	ContainerRuntime = "cluster.container_runtime"
	Overlay          = "cluster.overlay"
	Packages         = "cluster.packages"
	NoShell          = "cluster.no_shell"
)
