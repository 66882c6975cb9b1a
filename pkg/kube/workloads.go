package kube

// cSpell: words clientcmd clientconfig restconfig kstatus restmapper
// cSpell: disable
import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/cli-runtime/pkg/resource"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"

	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
)

// cSpell: enable

type RESTClientGetter struct {
	clientconfig clientcmd.ClientConfig
}

func (config *Config) RESTClient() *RESTClientGetter {
	return &RESTClientGetter{clientcmd.NewDefaultClientConfig(api.Config(*config), nil)}
}

func (r *RESTClientGetter) ToRESTConfig() (*rest.Config, error) {
	restConfig, err := r.clientconfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config: %w", err)
	}
	return restConfig, nil
}

func (r *RESTClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	restconfig, err := r.clientconfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config for discovery: %w", err)
	}
	dc, err := discovery.NewDiscoveryClientForConfig(restconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	return memory.NewMemCacheClient(dc), nil
}

func (r *RESTClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := r.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

func (r *RESTClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return r.clientconfig
}

// AllWorkloadStates fetches the deployed workloads and computes their
// readiness with kstatus.
func (client *RESTClientGetter) AllWorkloadStates() (result []*v1alpha1.WorkloadState, err error) {
	var _result []*v1alpha1.WorkloadState

	r := resource.NewBuilder(client).
		Unstructured().
		AllNamespaces(true).
		ResourceTypeOrNameArgs(true, "deployments,statefulsets,daemonsets").
		ContinueOnError().
		Flatten().
		Do()

	var infos []*resource.Info
	if infos, err = r.Infos(); err != nil {
		return result, fmt.Errorf("failed to get resource infos: %w", err)
	}

	for _, info := range infos {
		var u map[string]any
		if u, err = runtime.DefaultUnstructuredConverter.ToUnstructured(info.Object); err != nil {
			return result, fmt.Errorf("failed to convert object to unstructured: %w", err)
		}

		var res *status.Result
		if res, err = status.Compute(&unstructured.Unstructured{Object: u}); err != nil {
			return result, fmt.Errorf("failed to compute workload status: %w", err)
		}

		_result = append(_result, &v1alpha1.WorkloadState{
			Namespace: info.Namespace,
			Name:      info.ObjectName(),
			Ok:        res.Status == status.CurrentStatus,
			Message:   strings.TrimSuffix(res.Message, "\n"),
		})
	}
	sort.SliceStable(_result, func(i, j int) bool {
		return _result[i].String() < _result[j].String()
	})
	result = _result
	return result, nil
}

type WorkloadStateCallbackFunc func(state bool, total int, ready []*v1alpha1.WorkloadState, unready []*v1alpha1.WorkloadState, iteration int) bool

func AreWorkloadsReady(config *Config, callback WorkloadStateCallbackFunc) wait.ConditionWithContextFunc {
	client := config.RESTClient()
	iteration := 0
	return func(ctx context.Context) (bool, error) {
		states, err := client.AllWorkloadStates()
		if err != nil {
			return false, err
		}
		result := true
		var ready, unready []*v1alpha1.WorkloadState
		for _, state := range states {
			if !state.Ok {
				result = false
				unready = append(unready, state)
			} else {
				ready = append(ready, state)
			}
		}
		log.WithFields(log.Fields{
			"total":   len(states),
			"ready":   len(ready),
			"unready": len(unready),
		}).Infof("Workloads total: %d, ready: %d, unready:%d", len(states), len(ready), len(unready))

		if callback != nil {
			result = callback(result, len(states), ready, unready, iteration)
		}
		iteration++

		return result, nil
	}
}

func (config *Config) WaitForWorkloads(ctx context.Context, timeout time.Duration, callback WorkloadStateCallbackFunc) error {
	if timeout > 0 {
		if err := wait.PollUntilContextTimeout(ctx, time.Second*time.Duration(2), timeout, true, AreWorkloadsReady(config, callback)); err != nil {
			return fmt.Errorf("failed to wait for workloads (timeout): %w", err)
		}
		return nil
	} else {
		if err := wait.PollUntilContextCancel(ctx, time.Second*time.Duration(2), true, AreWorkloadsReady(config, callback)); err != nil {
			return fmt.Errorf("failed to wait for workloads: %w", err)
		}
		return nil
	}
}

// NodesReady returns how many cluster nodes report the Ready condition.
func (config *Config) NodesReady(ctx context.Context) (ready int, total int, err error) {
	client, err := config.Client()
	if err != nil {
		return 0, 0, err
	}
	nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list nodes: %w", err)
	}
	total = len(nodes.Items)
	for _, node := range nodes.Items {
		for _, condition := range node.Status.Conditions {
			if condition.Type == corev1.NodeReady && condition.Status == corev1.ConditionTrue {
				ready++
			}
		}
	}
	return ready, total, nil
}
