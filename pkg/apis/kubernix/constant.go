package kubernix

type ClusterState int16

const (
	Undefined ClusterState = iota
	Init
	Preparing
	StartingCore
	StartingNodes
	Ready
	Stopping
	Done
	Failed
)

const (
	GroupName           = "kubernix.dev"
	V1alpha1Version     = "v1alpha1"
	KubernixClusterKind = "KubernixCluster"
)

func (s ClusterState) String() string {
	switch s {
	case Undefined:
		return "Undefined"
	case Init:
		return "Init"
	case Preparing:
		return "Preparing"
	case StartingCore:
		return "StartingCore"
	case StartingNodes:
		return "StartingNodes"
	case Ready:
		return "Ready"
	case Stopping:
		return "Stopping"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

func (s *ClusterState) Set(value string) {
	switch value {
	case "Undefined":
		*s = Undefined
	case "Init":
		*s = Init
	case "Preparing":
		*s = Preparing
	case "StartingCore":
		*s = StartingCore
	case "StartingNodes":
		*s = StartingNodes
	case "Ready":
		*s = Ready
	case "Stopping":
		*s = Stopping
	case "Done":
		*s = Done
	case "Failed":
		*s = Failed
	}
}

func (s ClusterState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *ClusterState) UnmarshalJSON(data []byte) error {
	value := string(data)
	value = value[1 : len(value)-1]
	s.Set(value)
	return nil
}
